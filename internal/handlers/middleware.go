package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/jwt"
	"guildchat-backend/internal/keyValue"
	"guildchat-backend/internal/models"
)

type UserIDKeyType struct{}
type ClaimsKeyType struct{}

const userExistsTTL = 15 * time.Minute

func userExistsKey(userID int64) string {
	return fmt.Sprintf("user_exists:%d", userID)
}

func AllowCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(cfg.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken reads the Authorization header, the scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// websocketToken also accepts the access_token query parameter, browsers can't set
// headers on websocket upgrades.
func websocketToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return r.URL.Query().Get("access_token")
}

func UserVerifier(next http.Handler) http.Handler {
	return verifyUser(next, bearerToken)
}

func WebSocketVerifier(next http.Handler) http.Handler {
	return verifyUser(next, websocketToken)
}

func verifyUser(next http.Handler, tokenFrom func(r *http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFrom(r)
		if tokenString == "" {
			writeError(w, apperrors.Unauthenticated("No access token was provided"))
			return
		}

		claims, err := jwt.VerifyAccessToken(tokenString)
		if err != nil {
			sugar.Debug(err)
			writeError(w, apperrors.Unauthenticated("Invalid or expired access token"))
			return
		}

		// check if user exists
		key := userExistsKey(claims.UserID)

		cached, err := keyValue.Exists(key)
		if err != nil {
			writeError(w, apperrors.Internal(err))
			return
		}

		if !cached {
			userFound, err := users.Exists(r.Context(), claims.UserID)
			if err != nil {
				writeError(w, err)
				return
			}

			// the account was deleted while the token was still valid
			if !userFound {
				sugar.Debugf("User ID %d was not found in database", claims.UserID)
				http.SetCookie(w, jwt.ClearRefreshCookie())
				writeError(w, apperrors.Unauthenticated("User no longer exists"))
				return
			}

			err = keyValue.Set(key, "y", userExistsTTL)
			if err != nil {
				writeError(w, apperrors.Internal(err))
				return
			}
			sugar.Debugf("User ID %d was found in database and was cached", claims.UserID)
		}

		// this passes the authenticated user to the next handler
		ctx := context.WithValue(r.Context(), UserIDKeyType{}, claims.UserID)
		ctx = context.WithValue(ctx, ClaimsKeyType{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin checks the stored role, not the one in the token, so demotions apply
// right away.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := users.GetByID(r.Context(), userIDFrom(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if user.Role != models.RoleAdmin {
			writeError(w, apperrors.Forbidden("Admin access required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func userIDFrom(r *http.Request) int64 {
	return r.Context().Value(UserIDKeyType{}).(int64)
}
