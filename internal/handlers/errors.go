package handlers

import (
	"net/http"

	"achieveit/internal/apperr"
	"achieveit/internal/logger"

	"go.uber.org/zap"
)

// handleAppError writes err as an error response. Errors that carry no
// application code become 500 with defaultMessage.
func handleAppError(w http.ResponseWriter, r *http.Request, err error, defaultMessage string) {
	appErr, ok := apperr.As(err)
	if !ok {
		logger.Error("HTTP: unexpected error", err,
			zap.String("path", r.URL.Path),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, "INTERNAL", defaultMessage)
		return
	}

	statusCode := mapAppErrorToHTTP(appErr.Code)
	logger.Warn("HTTP: application error",
		zap.String("error_code", appErr.Code),
		zap.Int("http_status", statusCode),
		zap.String("path", r.URL.Path))

	details := appErr.Details
	if len(details) == 0 {
		details = nil
	}
	responseWithJSON(w, statusCode,
		toPayload("error", appErr.Code),
		toPayload("message", appErr.Message),
		toPayload("details", details),
	)
}

func mapAppErrorToHTTP(code string) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeUnauthenticated, apperr.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case apperr.CodePermissionDenied, apperr.CodeRequiresRecentLogin:
		return http.StatusForbidden
	case apperr.CodeAccountExists, apperr.CodeCredentialAlreadyInUse:
		return http.StatusConflict
	case apperr.CodeRemoteUnavailable:
		return http.StatusServiceUnavailable
	case apperr.CodeLinkFailed, apperr.CodeFetchFailed, apperr.CodeSuggestionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
