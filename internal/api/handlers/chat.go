package handlers

import (
	"net/http"

	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rohits-web03/chainforge/internal/api/services"
	"github.com/rohits-web03/chainforge/internal/utils"
)

// Chat godoc
// @Summary Chat with the assistant
// @Description "compile" and "deploy" phrases act on contractId; requests to create a contract generate and save a new file; anything else is answered by the language model.
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body services.ChatRequest true "Message"
// @Success 200 {object} utils.Payload{data=services.ChatReply}
// @Failure 400 {object} utils.Payload
// @Failure 502 {object} utils.Payload "Language model error"
// @Failure 503 {object} utils.Payload "Language model not configured"
// @Router /api/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var input services.ChatRequest
	if err := utils.DecodeJSON(r, &input); err != nil {
		badRequest(w, "Invalid input")
		return
	}

	reply, err := h.Assistant.Handle(r.Context(), middleware.WalletFrom(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: reply.Reply,
		Data:    reply,
	})
}
