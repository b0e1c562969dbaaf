package handlers

import (
	"log"
	"net/http"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
	"github.com/xivicWon/ssh-monitor/internal/sshinfo"
)

// InfoSvc is set from main.go during init.
var InfoSvc *sshinfo.Service

type validationResponse struct {
	Valid      bool                    `json:"valid"`
	Message    string                  `json:"message"`
	ServerInfo *sshinfo.ValidationInfo `json:"serverInfo,omitempty"`
	ErrorCode  string                  `json:"errorCode,omitempty"`
}

// ValidateConnection handles POST /api/connections/validate.
func ValidateConnection(w http.ResponseWriter, r *http.Request) {
	var req sshinfo.Request
	if err := decodeJSON(r, &req); err != nil {
		writeConnectionError(w, apperr.New(apperr.InvalidRequest, "Invalid request body"))
		return
	}

	info, err := InfoSvc.Validate(r.Context(), req, sshaudit.ExtractSourceIP(r))
	if err != nil {
		writeConnectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validationResponse{
		Valid:      true,
		Message:    "Connection successful",
		ServerInfo: info,
	})
}

// GetConnectionInfo handles POST /api/connections/info.
func GetConnectionInfo(w http.ResponseWriter, r *http.Request) {
	var req sshinfo.Request
	if err := decodeJSON(r, &req); err != nil {
		writeConnectionError(w, apperr.New(apperr.InvalidRequest, "Invalid request body"))
		return
	}

	info, err := InfoSvc.Info(r.Context(), req, sshaudit.ExtractSourceIP(r))
	if err != nil {
		writeConnectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeConnectionError(w http.ResponseWriter, err error) {
	status, code, msg := connectionFailure(err)
	writeJSON(w, status, validationResponse{Valid: false, Message: msg, ErrorCode: string(code)})
}

// connectionFailure maps err to an HTTP status, error code and message.
// Errors without a code are unexpected and reported generically.
func connectionFailure(err error) (int, apperr.Code, string) {
	code, ok := apperr.CodeOf(err)
	if !ok {
		log.Printf("[sshinfo] unexpected error: %v", err)
		return http.StatusInternalServerError, apperr.NetworkError, "An unexpected error occurred"
	}

	msg := apperr.MessageOf(err)
	switch code {
	case apperr.AuthFailed, apperr.InvalidRequest:
		return http.StatusBadRequest, code, msg
	case apperr.Timeout:
		return http.StatusRequestTimeout, code, msg
	case apperr.SessionLimit:
		return http.StatusTooManyRequests, code, msg
	case apperr.SessionExpired:
		return http.StatusGone, code, msg
	default:
		return http.StatusServiceUnavailable, code, msg
	}
}
