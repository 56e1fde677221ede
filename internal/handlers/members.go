package handlers

import (
	"context"
	"net/http"

	"guildchat-backend/internal/hub"
)

type memberPayload struct {
	ServerID int64 `json:"serverId,string"`
	UserID   int64 `json:"userId,string"`
}

func emitMemberJoined(serverID int64, userID int64) {
	emit(hub.MemberJoined, hub.KindServer, serverID, memberPayload{ServerID: serverID, UserID: userID})
}

// emitMemberLeft also drops the live subscriptions of the user who lost access, the
// server itself and every channel in it.
func emitMemberLeft(ctx context.Context, serverID int64, userID int64) {
	emit(hub.MemberLeft, hub.KindServer, serverID, memberPayload{ServerID: serverID, UserID: userID})
	hub.RecheckUser(ctx, userID)
}

func GetMemberList(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := servers.ListMembers(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func AddMember(w http.ResponseWriter, r *http.Request) {
	type NewMember struct {
		UserID   int64   `json:"userId,string" validate:"required"`
		Nickname *string `json:"nickname"`
	}

	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	var newMember NewMember
	if !decodeBody(w, r, &newMember) {
		return
	}

	member, err := servers.AddMember(r.Context(), serverID, userIDFrom(r), newMember.UserID, newMember.Nickname)
	if err != nil {
		writeError(w, err)
		return
	}

	emitMemberJoined(serverID, member.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Member added successfully",
		"member":  member,
	})
}

func RemoveMember(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}
	targetUserID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	err = servers.RemoveMember(r.Context(), serverID, userIDFrom(r), targetUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	emitMemberLeft(r.Context(), serverID, targetUserID)
	writeMessage(w, http.StatusOK, "Member removed successfully")
}

func LeaveServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverId")
	if err != nil {
		writeError(w, err)
		return
	}

	userID := userIDFrom(r)
	err = servers.LeaveServer(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	emitMemberLeft(r.Context(), serverID, userID)
	writeMessage(w, http.StatusOK, "Left server successfully")
}
