package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/dmitrijs2005/exposureshield/internal/server/services"
)

const (
	msgInternal    = "Internal server error"
	msgInvalidJSON = "Invalid JSON body"
	msgUserExists  = "User already exists"
	msgNoUser      = "User not found"
	msgNoBearer    = "Missing or invalid Authorization header"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// decodeJSON reads a JSON object body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := decodeInto(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

func decodeInto(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError maps a service error onto a status and a client-safe
// message. Anything unexpected is logged in full and reported as a 500.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, common.ErrorConfiguration):
		s.logger.Error(r.Context(), "configuration error", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, services.MsgInvalidToken)
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, msgNoUser)
	case errors.Is(err, common.ErrorConflict):
		writeError(w, http.StatusConflict, msgUserExists)
	default:
		s.logger.Error(r.Context(), "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
