package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"guildchat-backend/internal/hub"
	"guildchat-backend/internal/membership"
)

type serverIDPayload struct {
	ServerID int64 `json:"serverId,string"`
}

func GetServerList(w http.ResponseWriter, r *http.Request) {
	list, err := servers.ListServersForUser(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func GetServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	server, err := servers.GetServer(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, server)
}

func CreateServer(w http.ResponseWriter, r *http.Request) {
	type NewServer struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	var newServer NewServer
	if !decodeBody(w, r, &newServer) {
		return
	}

	server, err := servers.CreateServer(r.Context(), userIDFrom(r), newServer.Name, newServer.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, server)
}

func UpdateServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	var patch membership.Patch
	if !decodeBody(w, r, &patch) {
		return
	}

	server, err := servers.UpdateServer(r.Context(), serverID, userIDFrom(r), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ServerModified, hub.KindServer, serverID, server)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Server updated successfully",
		"server":  server,
	})
}

func DeleteServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	err = servers.DeleteServer(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ServerDeleted, hub.KindServer, serverID, serverIDPayload{ServerID: serverID})
	writeMessage(w, http.StatusOK, "Server deleted successfully")
}

func JoinServer(w http.ResponseWriter, r *http.Request) {
	inviteCode := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "inviteCode")))

	userID := userIDFrom(r)
	server, err := servers.JoinByInviteCode(r.Context(), inviteCode, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	emitMemberJoined(server.ID, userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully joined server",
		"server":  server,
	})
}

func RegenerateInvite(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	inviteCode, err := servers.RegenerateInvite(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Invite code regenerated",
		"inviteCode": inviteCode,
	})
}
