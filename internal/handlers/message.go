package handlers

import (
	"net/http"
	"strconv"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/hub"
	"guildchat-backend/internal/messages"
)

type messageBody struct {
	Message string `json:"message"`
}

type messageIDPayload struct {
	ChannelID int64 `json:"channelId,string"`
	MessageID int64 `json:"messageId,string"`
}

// queryInt returns fallback for a missing parameter, the service clamps the rest.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.Validation("Invalid " + name)
	}
	return parsed, nil
}

func GetMessageList(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := queryInt(r, "page", messages.DefaultPage)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", messages.DefaultLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := messageService.Page(r.Context(), channelID, userIDFrom(r), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func CreateMessage(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}

	message, err := messageService.Append(r.Context(), channelID, userIDFrom(r), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageCreated, hub.KindChannel, channelID, message)
	writeJSON(w, http.StatusCreated, message)
}

func EditMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}

	message, err := messageService.Edit(r.Context(), messageID, userIDFrom(r), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageModified, hub.KindChannel, message.ChannelID, message)
	writeJSON(w, http.StatusOK, message)
}

func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	message, err := messageService.Delete(r.Context(), messageID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageDeleted, hub.KindChannel, message.ChannelID, messageIDPayload{ChannelID: message.ChannelID, MessageID: message.ID})
	writeMessage(w, http.StatusOK, "Message deleted successfully")
}
