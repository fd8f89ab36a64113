package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/consejo/internal/common"
)

// ReasonRateLimited is reported when the throttle refuses an attempt. It is
// produced by this layer only, the core never throttles.
const ReasonRateLimited = "rate_limited"

const maxBodyBytes = 1 << 20

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

var statusByReason = map[string]int{
	common.ReasonValidation:               http.StatusBadRequest,
	common.ReasonDuplicateUsername:        http.StatusConflict,
	common.ReasonUserNotFound:             http.StatusNotFound,
	common.ReasonSecurityNotConfigured:    http.StatusUnprocessableEntity,
	common.ReasonAnswerMismatch:           http.StatusUnauthorized,
	common.ReasonCurrentPasswordIncorrect: http.StatusForbidden,
	common.ReasonUnauthenticated:          http.StatusUnauthorized,
	common.ReasonAuthFailed:               http.StatusUnauthorized,
	ReasonRateLimited:                     http.StatusTooManyRequests,
	common.ReasonStoreFailure:             http.StatusInternalServerError,
}

// A wrong recovery answer reads exactly like a failed login.
const genericCredentialsMessage = "usuario o credenciales inválidas"

var messageByReason = map[string]string{
	common.ReasonValidation:               "datos inválidos",
	common.ReasonDuplicateUsername:        "el nombre de usuario ya está registrado",
	common.ReasonUserNotFound:             "usuario no encontrado",
	common.ReasonSecurityNotConfigured:    "el usuario no tiene pregunta de seguridad configurada",
	common.ReasonAnswerMismatch:           genericCredentialsMessage,
	common.ReasonCurrentPasswordIncorrect: "la contraseña actual es incorrecta",
	common.ReasonUnauthenticated:          "sesión inválida o expirada",
	common.ReasonAuthFailed:               genericCredentialsMessage,
	ReasonRateLimited:                     "demasiados intentos, intente más tarde",
	common.ReasonStoreFailure:             "servicio no disponible, intente más tarde",
}

func messageFor(code string) string {
	return messageByReason[code]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, code, message string) {
	status, ok := statusByReason[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeServiceError renders an error returned by the core.
func writeServiceError(w http.ResponseWriter, err error) {
	code := common.ReasonCode(err)
	body := errorBody{Code: code, Message: messageFor(code)}
	for _, ve := range common.ValidationErrors(err) {
		body.Fields = append(body.Fields, fieldError{Field: ve.Field, Reason: ve.Reason})
	}
	writeJSON(w, statusByReason[code], body)
}

// decode reads a JSON request body into dst. A malformed body is reported as
// a validation error on the "body" field.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		reason := "malformed JSON"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = "too large"
		}
		writeServiceError(w, common.NewValidationError("body", reason))
		return false
	}
	return true
}
