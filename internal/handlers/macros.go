package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/hub"
	"guildchat-backend/internal/snowflake"
	"guildchat-backend/internal/validator"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		sugar.Error(err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError turns any error into the {message, error?} envelope. Details are only
// shown in development.
func writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)

	if appErr.Kind == apperrors.KindInternal {
		sugar.Error(err)
	} else {
		sugar.Debug(err)
	}

	response := errorResponse{Message: appErr.Message}
	if cfg.IsDevelopment() && appErr.Err != nil {
		response.Error = appErr.Err.Error()
	}
	writeJSON(w, appErr.HTTPStatus(), response)
}

func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request", Fields: fields})
}

// decodeBody reads a json body into v and runs the validate tags, it writes the error
// response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		writeError(w, apperrors.Validation("Invalid request body"))
		return false
	}

	fields, err := validator.Struct(v)
	if err != nil {
		writeError(w, apperrors.Internal(err))
		return false
	}
	if fields != nil {
		writeFieldErrors(w, fields)
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := snowflake.Parse(chi.URLParam(r, name))
	if err != nil {
		return 0, apperrors.Validation(fmt.Sprintf("Invalid %s", name))
	}
	return id, nil
}

// emit publishes a realtime event, failures only get logged since the change itself
// already happened.
func emit(messageType string, kind string, id int64, payload any) {
	err := hub.Emit(messageType, kind, id, payload)
	if err != nil {
		sugar.Error(err)
	}
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			sugar.Errorw("Recovered from panic", "panic", rec, "method", r.Method, "path", r.URL.Path)
			writeError(w, apperrors.Internal(fmt.Errorf("panic: %v", rec)))
		}()

		next.ServeHTTP(w, r)
	})
}
