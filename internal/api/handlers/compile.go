package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/utils"
	"go.uber.org/zap"
)

type compileRequest struct {
	SourceCode string `json:"sourceCode"`
	ContractID *uint  `json:"contractId,omitempty"`
}

type deployRequest struct {
	ContractID uint `json:"contractId"`
}

// Compile godoc
// @Summary Compile Solidity
// @Description Compiles sourceCode, or the stored source of contractId when sourceCode is empty. With a contractId the ABI and bytecode are saved on that file.
// @Tags Compile
// @Accept json
// @Produce json
// @Param body body compileRequest true "Source and optional contract"
// @Success 200 {object} utils.Payload{data=compiler.Result}
// @Failure 400 {object} utils.Payload "Compiler errors in details.errors"
// @Failure 404 {object} utils.Payload
// @Router /api/compile [post]
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	var input compileRequest
	if err := utils.DecodeJSON(r, &input); err != nil {
		badRequest(w, "Invalid input")
		return
	}
	ctx := r.Context()
	caller := middleware.WalletFrom(ctx)

	source := input.SourceCode
	if input.ContractID != nil {
		// Ownership is checked before any work is done.
		view, err := h.Contracts.Get(ctx, caller, *input.ContractID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if strings.TrimSpace(source) == "" && view.SourceCode != nil {
			source = *view.SourceCode
		}
	}
	if strings.TrimSpace(source) == "" {
		badRequest(w, "sourceCode is required")
		return
	}

	res, err := h.Compiler.Compile(ctx, source)
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Compilation failed",
			Details: map[string]any{"errors": cerr.Diagnostics},
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if input.ContractID != nil {
		if _, err := h.Contracts.RecordCompilation(ctx, caller, *input.ContractID, res); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.Log.Info("compiled",
		zap.String("contract", res.ContractName),
		zap.Int("warnings", len(res.Warnings)))

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Compilation successful",
		Data:    res,
	})
}

// Deploy godoc
// @Summary Prepare a deployment
// @Description Returns the stored ABI and bytecode for the wallet to deploy, with the gas buffer and confirmation count the client should use. Marks the contract pending.
// @Tags Deploy
// @Accept json
// @Produce json
// @Param body body deployRequest true "Contract to deploy"
// @Success 200 {object} utils.Payload{data=services.DeploymentPackage}
// @Failure 400 {object} utils.Payload "Not compiled"
// @Failure 404 {object} utils.Payload
// @Router /api/deploy [post]
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	var input deployRequest
	if err := utils.DecodeJSON(r, &input); err != nil || input.ContractID == 0 {
		badRequest(w, "contractId is required")
		return
	}

	pkg, err := h.Deployer.Prepare(r.Context(), middleware.WalletFrom(r.Context()), input.ContractID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Ready to deploy",
		Data:    pkg,
	})
}
