package handlers

import (
	"net/http"
)

// Health reports whether the database answers.
func Health(w http.ResponseWriter, r *http.Request) {
	err := db.PingContext(r.Context())
	if err != nil {
		sugar.Error(err)
		writeMessage(w, http.StatusServiceUnavailable, "Database is unavailable")
		return
	}

	writeMessage(w, http.StatusOK, "ok")
}
