package handlers

import (
	"errors"
	"net/http"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/jwt"
)

type loginResponse struct {
	Message     string `json:"message"`
	User        any    `json:"user"`
	AccessToken string `json:"accessToken"`
}

func Register(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		UserName string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var registration Registration
	if !decodeBody(w, r, &registration) {
		return
	}

	user, err := auth.Register(r.Context(), registration.UserName, registration.Email, registration.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	sugar.Infof("User %s registered with ID %d", user.UserName, user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

func Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		// username or email
		UserName string `json:"username"`
		Password string `json:"password"`
	}

	var login Login
	if !decodeBody(w, r, &login) {
		return
	}

	session, err := auth.Login(r.Context(), login.UserName, login.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSession(w, session, "Login successful")
}

func LoginOIDC(w http.ResponseWriter, r *http.Request) {
	type OIDCLogin struct {
		Provider string `json:"provider" validate:"required"`
		IDToken  string `json:"idToken" validate:"required"`
	}

	var login OIDCLogin
	if !decodeBody(w, r, &login) {
		return
	}

	session, err := auth.LoginWithOIDC(r.Context(), login.Provider, login.IDToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSession(w, session, "Login successful")
}

func writeSession(w http.ResponseWriter, session *credentials.Session, message string) {
	http.SetCookie(w, jwt.RefreshCookie(session.RefreshToken))
	writeJSON(w, http.StatusOK, loginResponse{
		Message:     message,
		User:        session.User,
		AccessToken: session.AccessToken,
	})
}

func refreshCookieValue(r *http.Request) string {
	cookie, err := r.Cookie(jwt.RefreshCookieName)
	if err != nil {
		if !errors.Is(err, http.ErrNoCookie) {
			sugar.Debug(err)
		}
		return ""
	}
	return cookie.Value
}

func RequestRefreshToken(w http.ResponseWriter, r *http.Request) {
	session, err := auth.Refresh(r.Context(), refreshCookieValue(r))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindForbidden {
			http.SetCookie(w, jwt.ClearRefreshCookie())
		}
		writeError(w, err)
		return
	}

	http.SetCookie(w, jwt.RefreshCookie(session.RefreshToken))
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": session.AccessToken})
}

func Logout(w http.ResponseWriter, r *http.Request) {
	err := auth.Logout(r.Context(), refreshCookieValue(r))
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, jwt.ClearRefreshCookie())
	writeMessage(w, http.StatusOK, "Logged out successfully")
}
