package handlers

import (
	"net/http"
	"path"

	"guildchat-backend/internal/fileHandlers"
	"guildchat-backend/internal/hub"
)

// multipart framing on top of the picture itself
const multipartOverhead = 64 << 10

func avatarURL(relative string) string {
	return path.Join("/cdn", relative)
}

func readAvatar(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, fileHandlers.MaxBytes()+multipartOverhead)

	relative, err := fileHandlers.HandleAvatarPicture(r)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return avatarURL(relative), true
}

func UploadUserAvatar(w http.ResponseWriter, r *http.Request) {
	avatar, ok := readAvatar(w, r)
	if !ok {
		return
	}

	err := users.SetAvatar(r.Context(), userIDFrom(r), avatar)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "User avatar uploaded successfully",
		"avatarPath": avatar,
	})
}

// DeleteUserAvatar only unlinks the picture, the file may be shared with others.
func DeleteUserAvatar(w http.ResponseWriter, r *http.Request) {
	err := users.SetAvatar(r.Context(), userIDFrom(r), "")
	if err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "User avatar removed")
}

func UploadServerAvatar(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	// check ownership before storing anything
	_, err = servers.RequireOwner(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	avatar, ok := readAvatar(w, r)
	if !ok {
		return
	}

	server, err := servers.SetAvatar(r.Context(), serverID, userIDFrom(r), avatar)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ServerModified, hub.KindServer, serverID, server)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Server avatar uploaded successfully",
		"avatarPath": avatar,
	})
}
