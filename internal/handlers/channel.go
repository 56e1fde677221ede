package handlers

import (
	"net/http"

	"guildchat-backend/internal/channels"
	"guildchat-backend/internal/hub"
)

type channelIDPayload struct {
	ServerID  int64 `json:"serverId,string"`
	ChannelID int64 `json:"channelId,string"`
}

func GetChannelList(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := channelService.List(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func CreateChannel(w http.ResponseWriter, r *http.Request) {
	type NewChannel struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}

	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	var newChannel NewChannel
	if !decodeBody(w, r, &newChannel) {
		return
	}

	channel, err := channelService.Create(r.Context(), serverID, userIDFrom(r), newChannel.Name, newChannel.Type, newChannel.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ChannelCreated, hub.KindServer, serverID, channel)
	writeJSON(w, http.StatusCreated, channel)
}

func UpdateChannel(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}
	channelID, err := pathID(r, "channelId")
	if err != nil {
		writeError(w, err)
		return
	}

	var patch channels.Patch
	if !decodeBody(w, r, &patch) {
		return
	}

	channel, err := channelService.Update(r.Context(), serverID, channelID, userIDFrom(r), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ChannelModified, hub.KindServer, serverID, channel)
	writeJSON(w, http.StatusOK, channel)
}

func DeleteChannel(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}
	channelID, err := pathID(r, "channelId")
	if err != nil {
		writeError(w, err)
		return
	}

	err = channelService.Delete(r.Context(), serverID, channelID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ChannelDeleted, hub.KindServer, serverID, channelIDPayload{ServerID: serverID, ChannelID: channelID})
	writeMessage(w, http.StatusOK, "Channel deleted successfully")
}
