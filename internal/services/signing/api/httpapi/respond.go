package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

const genericTokenMessage = "signing link is not valid"

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps a domain error onto the HTTP surface. When redactToken is
// set, token-security failures collapse to one generic unauthorized body so
// link holders cannot probe token state.
func writeError(w http.ResponseWriter, err error, redactToken bool) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	if redactToken && code.TokenSecurity() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
			Code:    string(apperrors.CodeTokenGrantInvalid),
			Message: genericTokenMessage,
		}})
		return
	}

	body := errorBody{Code: string(code), Message: err.Error()}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		body.Message = domainErr.Message
		body.Metadata = domainErr.Metadata
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		body.Message = "internal error"
		body.Metadata = nil
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    string(apperrors.CodeUnknown),
			Message: "invalid request body",
		}})
		return false
	}
	return true
}
