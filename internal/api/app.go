package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rohits-web03/chainforge/internal/api/handlers"
	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rohits-web03/chainforge/internal/api/services"
	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/config"
	"github.com/rohits-web03/chainforge/internal/llm"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New wires repositories, adapters and services from cfg and returns the
// routed HTTP handler. The language model and artifact storage are optional.
func New(ctx context.Context, cfg config.Config, db *gorm.DB, log *zap.Logger) (http.Handler, error) {
	users := repositories.NewUserRepository(db)
	contractRepo := repositories.NewContractRepository(db)

	var artifacts services.ArtifactStore
	if cfg.R2.Enabled() {
		endpoint := cfg.R2.Endpoint
		if endpoint == "" {
			endpoint = repositories.R2Endpoint(cfg.R2.AccountID)
		}
		artifacts = repositories.NewArtifactStore(cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey, endpoint, cfg.R2.BucketName, cfg.R2.Region)
		log.Info("artifact storage enabled", zap.String("bucket", cfg.R2.BucketName))
	} else {
		log.Warn("artifact storage not configured")
	}

	model, err := llm.New(ctx, cfg.LLM)
	switch {
	case errors.Is(err, common.ErrNotConfigured):
		log.Warn("language model not configured, chat limited to compile and deploy")
		model = nil
	case err != nil:
		return nil, err
	default:
		log.Info("language model enabled", zap.String("provider", cfg.LLM.Provider))
	}

	solc := compiler.NewSolc(compiler.Options{
		Path:     cfg.Solc.Path,
		Timeout:  cfg.Solc.Timeout,
		Optimize: cfg.Solc.Optimize,
		Runs:     cfg.Solc.Runs,
	}, log.Named("solc"))

	sessions := services.NewSessionService(users, services.SessionOptions{
		Secret:           cfg.JWTSecret,
		TTL:              cfg.TokenTTL,
		RequireSignature: cfg.RequireSignature,
	}, log.Named("session"))
	contracts := services.NewContractService(contractRepo, artifacts, services.ContractOptions{
		RootFolderName:      cfg.RootFolderName,
		RepairMissingParent: cfg.RepairMissingParent,
	}, log.Named("contracts"))
	deployer := services.NewDeployService(contracts, log.Named("deploy"))
	assistant := services.NewChatService(contracts, deployer, solc, model, log.Named("chat"))

	h := &handlers.Handler{
		Sessions:      sessions,
		Contracts:     contracts,
		Deployer:      deployer,
		Assistant:     assistant,
		Compiler:      solc,
		Log:           log,
		SecureCookies: cfg.IsProduction(),
		TokenTTL:      cfg.TokenTTL,
	}
	identity := middleware.NewIdentity(sessions, cfg.TrustWalletHeader, log.Named("identity"))
	return SetupRouter(h, identity, cfg.CorsConfig, log), nil
}
