package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// maxJSONBody caps request bodies on the JSON endpoints. Media uploads go
// through the multipart path and are limited separately.
const maxJSONBody = 1 << 20

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeServiceError maps a service error onto an HTTP status using its marker
// and answers with the standard error envelope.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, statusForError(err), services.Code(err), services.Message(err))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrReferencedAsset):
		return http.StatusConflict
	case errors.Is(err, services.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON request body into dst. Decode failures come
// back as validation errors so handlers can pass them straight to
// writeServiceError.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode",
			fmt.Sprintf("failed to read request body: %v", err), err)
	}
	if len(body) > maxJSONBody {
		return services.Wrap(services.ErrValidation, "api", "decode",
			"request body too large", nil)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode",
			fmt.Sprintf("invalid JSON body: %v", err), err)
	}
	return nil
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
