package handlers

import (
	"net/http"

	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rohits-web03/chainforge/internal/api/services"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/utils"
)

// ListContracts godoc
// @Summary List contracts
// @Description Returns every folder plus the caller's own files. Anonymous callers only see folders.
// @Tags Contracts
// @Produce json
// @Param type query string false "file or folder"
// @Param name query string false "Exact name"
// @Success 200 {object} utils.Payload{data=[]models.Contract}
// @Failure 400 {object} utils.Payload
// @Router /api/contracts [get]
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Contracts.List(r.Context(),
		middleware.WalletFrom(r.Context()),
		models.ContractType(q.Get("type")),
		q.Get("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Contracts retrieved",
		Data:    list,
	})
}

// ContractTree godoc
// @Summary Contract tree
// @Description Same visibility as the list, nested by parent.
// @Tags Contracts
// @Produce json
// @Success 200 {object} utils.Payload{data=[]services.TreeNode}
// @Router /api/contracts/tree [get]
func (h *Handler) ContractTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Contracts.Tree(r.Context(), middleware.WalletFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Tree retrieved",
		Data:    tree,
	})
}

// CreateContract godoc
// @Summary Create a file or folder
// @Description Files are owned by the caller. A parentId that no longer exists is replaced by the root folder.
// @Tags Contracts
// @Accept json
// @Produce json
// @Param x-wallet-address header string false "Wallet address (trusted header mode)"
// @Param body body services.CreateContractInput true "New record"
// @Success 201 {object} utils.Payload{data=models.Contract}
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/contracts [post]
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var input services.CreateContractInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		badRequest(w, "Invalid input")
		return
	}

	c, err := h.Contracts.Create(r.Context(), middleware.WalletFrom(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Contract created",
		Data:    c,
	})
}

// GetContract godoc
// @Summary Get one contract
// @Description Folders are visible to anyone; files only to their owner. Someone else's file is reported as not found.
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} utils.Payload{data=services.ContractView}
// @Failure 404 {object} utils.Payload
// @Router /api/contracts/{id} [get]
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid contract id")
		return
	}

	view, err := h.Contracts.Get(r.Context(), middleware.WalletFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Contract retrieved",
		Data:    view,
	})
}

// UpdateContract godoc
// @Summary Update a contract
// @Description Partial update. Files can only be changed by their owner; folders accept name, path and parentId.
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param body body services.ContractPatch true "Fields to change"
// @Success 200 {object} utils.Payload{data=models.Contract}
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/contracts/{id} [patch]
func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid contract id")
		return
	}
	var patch services.ContractPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		badRequest(w, "Invalid input")
		return
	}

	c, err := h.Contracts.Update(r.Context(), middleware.WalletFrom(r.Context()), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Contract updated",
		Data:    c,
	})
}

// DeleteContract godoc
// @Summary Delete a contract
// @Description Deletes a file, or a folder with everything under it. Refused when the folder holds another wallet's files.
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/contracts/{id} [delete]
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid contract id")
		return
	}

	n, err := h.Contracts.Delete(r.Context(), middleware.WalletFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Contract deleted",
		Data:    map[string]int64{"deleted": n},
	})
}

// ContractArtifact godoc
// @Summary Download link for the compiled artifact
// @Description Returns a presigned URL valid for 15 minutes.
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Not compiled"
// @Failure 404 {object} utils.Payload
// @Failure 503 {object} utils.Payload "Artifact storage not configured"
// @Router /api/contracts/{id}/artifact [get]
func (h *Handler) ContractArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid contract id")
		return
	}

	url, err := h.Contracts.ArtifactURL(r.Context(), middleware.WalletFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Artifact link created",
		Data: map[string]any{
			"url":       url,
			"expiresIn": int(services.ArtifactTTL.Seconds()),
		},
	})
}

// RecordDeployment godoc
// @Summary Record a deployment
// @Description Stores the address, network and transaction hash reported by the client after the wallet broadcast the deployment.
// @Tags Deploy
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param body body services.DeploymentReport true "Deployment outcome"
// @Success 200 {object} utils.Payload{data=models.Contract}
// @Failure 400 {object} utils.Payload
// @Failure 403 {object} utils.Payload
// @Router /api/contracts/{id}/deployment [post]
func (h *Handler) RecordDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid contract id")
		return
	}
	var report services.DeploymentReport
	if err := utils.DecodeJSON(r, &report); err != nil {
		badRequest(w, "Invalid input")
		return
	}

	c, err := h.Deployer.Record(r.Context(), middleware.WalletFrom(r.Context()), id, report)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Deployment recorded",
		Data:    c,
	})
}
