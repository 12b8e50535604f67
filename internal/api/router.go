package api

import (
	"fmt"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/rohits-web03/chainforge/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/chainforge/internal/api/handlers"
	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func SetupRouter(h *handlers.Handler, identity *middleware.Identity, corsOpts cors.Options, log *zap.Logger) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(corsOpts)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /login/nonce", h.RequestNonce)
	apiMux.HandleFunc("POST /login", h.Login)
	apiMux.HandleFunc("POST /logout", h.Logout)

	// Anonymous callers see folders only.
	apiMux.Handle("GET /contracts", identity.Optional(http.HandlerFunc(h.ListContracts)))
	apiMux.Handle("GET /contracts/tree", identity.Optional(http.HandlerFunc(h.ContractTree)))

	// ---------- PROTECTED ROUTES ----------
	apiMux.Handle("GET /user", identity.RequireUser(http.HandlerFunc(h.Me)))

	apiMux.Handle("POST /contracts", identity.Required(http.HandlerFunc(h.CreateContract)))
	apiMux.Handle("GET /contracts/{id}", identity.Required(http.HandlerFunc(h.GetContract)))
	apiMux.Handle("PATCH /contracts/{id}", identity.Required(http.HandlerFunc(h.UpdateContract)))
	apiMux.Handle("DELETE /contracts/{id}", identity.Required(http.HandlerFunc(h.DeleteContract)))
	apiMux.Handle("GET /contracts/{id}/artifact", identity.Required(http.HandlerFunc(h.ContractArtifact)))
	apiMux.Handle("POST /contracts/{id}/deployment", identity.Required(http.HandlerFunc(h.RecordDeployment)))

	apiMux.Handle("POST /compile", identity.Required(http.HandlerFunc(h.Compile)))
	apiMux.Handle("POST /deploy", identity.Required(http.HandlerFunc(h.Deploy)))
	apiMux.Handle("POST /chat", identity.Required(http.HandlerFunc(h.Chat)))

	mainMux.Handle("/api/", http.StripPrefix("/api", apiMux))

	log.Info("router initialized")
	handler := c.Handler(mainMux)
	handler = chimiddleware.Recoverer(handler)
	handler = middleware.Logger(log)(handler)
	handler = chimiddleware.RequestID(handler)
	return handler
}
