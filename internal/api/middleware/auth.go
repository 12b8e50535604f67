package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/utils"
	"github.com/rohits-web03/chainforge/internal/wallet"
	"go.uber.org/zap"
)

type contextKey string

const (
	userKey   contextKey = "user"
	walletKey contextKey = "wallet"

	// WalletHeader carries the caller's wallet address.
	WalletHeader = "x-wallet-address"
	// TokenCookie is set on login for browser clients.
	TokenCookie = "token"
)

// TokenValidator resolves a bearer token to its user.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.User, error)
}

// Identity works out who is calling. A bearer token is authoritative; the
// wallet header alone is only accepted when trustHeader is set.
type Identity struct {
	tokens      TokenValidator
	trustHeader bool
	log         *zap.Logger
}

func NewIdentity(tokens TokenValidator, trustHeader bool, log *zap.Logger) *Identity {
	return &Identity{tokens: tokens, trustHeader: trustHeader, log: log}
}

// Optional lets anonymous requests through with no wallet in the context.
func (m *Identity) Optional(next http.Handler) http.Handler {
	return m.handle(next, false, false)
}

// Required rejects requests without a wallet.
func (m *Identity) Required(next http.Handler) http.Handler {
	return m.handle(next, true, false)
}

// RequireUser rejects requests not backed by a valid token.
func (m *Identity) RequireUser(next http.Handler) http.Handler {
	return m.handle(next, true, true)
}

func (m *Identity) handle(next http.Handler, required, needUser bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		addr, user, err := m.resolve(r, required)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		if (required && addr == "") || (needUser && user == nil) {
			m.reject(w, r, common.ErrUnauthorized)
			return
		}

		ctx := r.Context()
		if addr != "" {
			ctx = context.WithValue(ctx, walletKey, addr)
		}
		if user != nil {
			ctx = context.WithValue(ctx, userKey, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Identity) resolve(r *http.Request, required bool) (string, *models.User, error) {
	header := strings.TrimSpace(r.Header.Get(WalletHeader))

	if token, fromCookie := bearerToken(r); token != "" {
		user, err := m.tokens.Validate(r.Context(), token)
		switch {
		case err != nil && fromCookie && !required && staleToken(err):
			// A leftover browser cookie does not lock out anonymous routes.
			m.log.Debug("ignoring stale token cookie", zap.String("path", r.URL.Path))
		case err != nil:
			return "", nil, err
		default:
			if header != "" {
				addr, err := wallet.Normalize(header)
				if err != nil || addr != user.WalletAddress {
					return "", nil, fmt.Errorf("%w: wallet header does not match token", common.ErrForbidden)
				}
			}
			return user.WalletAddress, user, nil
		}
	}

	if header == "" {
		return "", nil, nil
	}
	if !m.trustHeader {
		return "", nil, fmt.Errorf("%w: bearer token required", common.ErrUnauthorized)
	}
	addr, err := wallet.Normalize(header)
	if err != nil {
		return "", nil, err
	}
	return addr, nil, nil
}

func staleToken(err error) bool {
	return errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrUnauthorized)
}

// bearerToken reads the Authorization header, then the login cookie.
func bearerToken(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token), false
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value, true
	}
	return "", false
}

func (m *Identity) reject(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnauthorized
	msg := "Unauthorized"
	switch {
	case errors.Is(err, common.ErrForbidden):
		status, msg = http.StatusForbidden, "Forbidden"
	case errors.Is(err, common.ErrValidation):
		status, msg = http.StatusBadRequest, "Invalid wallet address"
	case errors.Is(err, common.ErrTokenExpired):
		msg = "Token expired"
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthorized):
		// 401
	default:
		m.log.Error("identity lookup failed", zap.Error(err), zap.String("path", r.URL.Path))
		status, msg = http.StatusInternalServerError, "Internal server error"
	}
	utils.JSONResponse(w, status, utils.Payload{
		Success: false,
		Message: msg,
	})
}

// WalletFrom returns the caller's lowercase wallet, or "" when anonymous.
func WalletFrom(ctx context.Context) string {
	addr, _ := ctx.Value(walletKey).(string)
	return addr
}

// UserFrom returns the token-authenticated user, if any.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// WithWallet stores a wallet in ctx, mainly for tests.
func WithWallet(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, walletKey, addr)
}
