package handlers

import (
	"net/http"
	"strings"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/hub"
	"guildchat-backend/internal/keyValue"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/validator"
)

func GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := users.GetByID(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	type Profile struct {
		DisplayName string `json:"displayName"`
	}

	var profile Profile
	if !decodeBody(w, r, &profile) {
		return
	}

	displayName := strings.TrimSpace(profile.DisplayName)
	err := validator.DisplayName(displayName)
	if err != nil {
		writeError(w, apperrors.Validation(err.Error()))
		return
	}

	userID := userIDFrom(r)
	err = users.UpdateProfile(r.Context(), userID, displayName)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// GetUser shows other users only their public profile.
func GetUser(w http.ResponseWriter, r *http.Request) {
	requestedUserID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := users.GetByID(r.Context(), requestedUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	if requestedUserID == userIDFrom(r) {
		writeJSON(w, http.StatusOK, user)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

func ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// DeleteUser lets users delete themselves, admins may delete anyone.
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetUserID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	callerID := userIDFrom(r)
	if targetUserID != callerID {
		caller, err := users.GetByID(r.Context(), callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		if caller.Role != models.RoleAdmin {
			writeError(w, apperrors.Forbidden("You can only delete your own account"))
			return
		}
	}

	err = users.Delete(r.Context(), targetUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	// access tokens of the deleted user stop working on the next request
	err = keyValue.Del(userExistsKey(targetUserID))
	if err != nil {
		sugar.Error(err)
	}
	hub.RecheckUser(r.Context(), targetUserID)

	writeMessage(w, http.StatusOK, "User deleted successfully")
}

func SetUserRole(w http.ResponseWriter, r *http.Request) {
	type Role struct {
		Role string `json:"role" validate:"required,oneof=user admin"`
	}

	targetUserID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var role Role
	if !decodeBody(w, r, &role) {
		return
	}

	err = users.SetRole(r.Context(), targetUserID, role.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Role updated successfully")
}
