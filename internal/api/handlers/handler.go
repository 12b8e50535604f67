package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rohits-web03/chainforge/internal/api/services"
	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/utils"
	"go.uber.org/zap"
)

// Handler serves the HTTP API on top of the services.
type Handler struct {
	Sessions  *services.SessionService
	Contracts *services.ContractService
	Deployer  *services.DeployService
	Assistant *services.ChatService
	Compiler  compiler.Compiler
	Log       *zap.Logger

	// SecureCookies marks the session cookie Secure and SameSite=None.
	SecureCookies bool
	TokenTTL      time.Duration
}

// writeError maps a service error onto a status code and the JSON envelope.
// Unexpected errors are logged and hidden behind a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "Internal server error"
	}
	utils.JSONResponse(w, status, utils.Payload{
		Success: false,
		Message: msg,
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "You do not own this contract"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "Contract not found"
	case errors.Is(err, common.ErrNotCompiled):
		return http.StatusBadRequest, "Contract must be compiled before deployment"
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrCompilation),
		errors.Is(err, compiler.ErrNoContract):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrExternalService):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, common.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, ""
}

func badRequest(w http.ResponseWriter, msg string) {
	utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
		Success: false,
		Message: msg,
	})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
