package handlers

import (
	"net/http"

	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/utils"
)

type nonceRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type NonceResponse struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

type loginRequest struct {
	WalletAddress string `json:"wallet_address"`
	Signature     string `json:"signature,omitempty"`
}

type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// RequestNonce godoc
// @Summary Get a login challenge
// @Description Rotates the wallet's nonce and returns the message to sign with personal_sign.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body nonceRequest true "Wallet address"
// @Success 200 {object} utils.Payload{data=NonceResponse}
// @Failure 400 {object} utils.Payload "Invalid wallet address"
// @Router /api/login/nonce [post]
func (h *Handler) RequestNonce(w http.ResponseWriter, r *http.Request) {
	var input nonceRequest
	if err := utils.DecodeJSON(r, &input); err != nil || input.WalletAddress == "" {
		badRequest(w, "wallet_address is required")
		return
	}

	nonce, message, err := h.Sessions.Challenge(r.Context(), input.WalletAddress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Sign this message to log in",
		Data:    NonceResponse{Nonce: nonce, Message: message},
	})
}

// Login godoc
// @Summary Log in with a wallet
// @Description Finds or creates the user for a wallet and issues a bearer token valid for 24 hours. A signature over the nonce message is verified when sent, and required when the server demands it.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Wallet address and optional signature"
// @Success 200 {object} utils.Payload{data=LoginResponse}
// @Failure 400 {object} utils.Payload "Invalid wallet address"
// @Failure 401 {object} utils.Payload "Bad or missing signature"
// @Router /api/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if err := utils.DecodeJSON(r, &input); err != nil || input.WalletAddress == "" {
		badRequest(w, "wallet_address is required")
		return
	}

	user, token, err := h.Sessions.Login(r.Context(), input.WalletAddress, input.Signature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sameSite := http.SameSiteLaxMode
	if h.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.TokenTTL.Seconds()),
		Secure:   h.SecureCookies,
		HttpOnly: true,
		SameSite: sameSite,
	})

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Login successful",
		Data:    LoginResponse{User: user, Token: token},
	})
}

// Logout godoc
// @Summary Log out
// @Description Clears the session cookie. Bearer tokens stay valid until they expire.
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Logged out successfully",
	})
}

// Me godoc
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Payload{data=models.User}
// @Failure 401 {object} utils.Payload
// @Router /api/user [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "User retrieved",
		Data:    middleware.UserFrom(r.Context()),
	})
}
