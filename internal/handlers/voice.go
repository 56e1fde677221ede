package handlers

import (
	"net/http"
)

func VoiceToken(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelId")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := users.GetByID(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := voiceService.IssueToken(r.Context(), channelID, user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func VoiceRoom(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelId")
	if err != nil {
		writeError(w, err)
		return
	}

	room, err := voiceService.RoomInfo(r.Context(), channelID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}
