package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
)

// envelope is the body of every JSON response.
type envelope struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Pagination any    `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", StatusCode: http.StatusOK, Message: "Operation successful", Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Status: "success", StatusCode: http.StatusCreated, Message: "Created", Data: data})
}

// jsonPage writes a paginated list; p is one of the feed pagination blocks.
func jsonPage(w http.ResponseWriter, data, p any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", StatusCode: http.StatusOK, Message: "Operation successful", Data: data, Pagination: p})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	var data any
	if code == http.StatusServiceUnavailable {
		data = []any{}
	}
	writeJSON(w, code, envelope{Status: "error", StatusCode: code, Message: msg, Data: data})
}

// writeError maps a service error to its status. Internal causes are logged
// and never shown to the caller.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	e := apperr.As(err)
	code := e.HTTPStatus()
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("request failed")
	}
	msg := e.Message
	if e.Kind == apperr.KindInternal {
		msg = "internal server error"
	}
	jsonError(w, msg, code)
}

// validationMessage renders validator errors as one line naming each field.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "invalid request"
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, "invalid "+fe.Field())
	}
	return strings.Join(parts, ", ")
}
