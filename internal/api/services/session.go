package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"github.com/rohits-web03/chainforge/internal/utils"
	"github.com/rohits-web03/chainforge/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Claims is the JWT payload of a session token.
type Claims struct {
	UserID        uint   `json:"userId"`
	WalletAddress string `json:"walletAddress"`
	jwt.RegisteredClaims
}

type SessionOptions struct {
	Secret           string
	TTL              time.Duration
	RequireSignature bool
}

// SessionService turns wallet addresses into users and bearer tokens.
type SessionService struct {
	users  *repositories.UserRepository
	opts   SessionOptions
	log    *zap.Logger
	now    func() time.Time
	logins singleflight.Group
}

func NewSessionService(users *repositories.UserRepository, opts SessionOptions, log *zap.Logger) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &SessionService{users: users, opts: opts, log: log, now: time.Now}
}

// Challenge rotates the wallet's login nonce and returns the message the
// wallet must sign.
func (s *SessionService) Challenge(ctx context.Context, address string) (nonce, message string, err error) {
	addr, err := wallet.Normalize(address)
	if err != nil {
		return "", "", err
	}
	user, err := s.upsert(ctx, addr)
	if err != nil {
		return "", "", err
	}
	nonce, err = s.rotateNonce(ctx, user)
	if err != nil {
		return "", "", err
	}
	return nonce, wallet.LoginMessage(addr, nonce), nil
}

// Login finds or creates the user for address and issues a token. A
// signature, when given or required, must sign the current nonce message.
func (s *SessionService) Login(ctx context.Context, address, signature string) (*models.User, string, error) {
	addr, err := wallet.Normalize(address)
	if err != nil {
		return nil, "", err
	}

	var user *models.User
	if signature != "" || s.opts.RequireSignature {
		user, err = s.verifySignature(ctx, addr, signature)
	} else {
		user, err = s.upsert(ctx, addr)
	}
	if err != nil {
		return nil, "", err
	}

	token, err := s.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *SessionService) verifySignature(ctx context.Context, addr, signature string) (*models.User, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: signature required", common.ErrUnauthorized)
	}
	user, err := s.users.FindByWallet(ctx, addr)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: request a login nonce first", common.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if user.Nonce == "" {
		return nil, fmt.Errorf("%w: request a login nonce first", common.ErrUnauthorized)
	}
	if err := wallet.Verify(addr, wallet.LoginMessage(addr, user.Nonce), signature); err != nil {
		return nil, err
	}
	// Single use.
	if _, err := s.rotateNonce(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// upsert returns the user for a normalised address, creating it on first
// sight. Concurrent first logins for one wallet share a single insert.
func (s *SessionService) upsert(ctx context.Context, addr string) (*models.User, error) {
	v, err, _ := s.logins.Do(addr, func() (any, error) {
		user, err := s.users.FindByWallet(ctx, addr)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}

		user = &models.User{WalletAddress: addr, Email: models.PlaceholderEmail(addr)}
		if err := s.users.Create(ctx, user); err != nil {
			// Another instance may have inserted it first.
			if existing, findErr := s.users.FindByWallet(ctx, addr); findErr == nil {
				return existing, nil
			}
			return nil, err
		}
		s.log.Info("created wallet user", zap.String("wallet", addr), zap.Uint("user_id", user.ID))
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	u := *v.(*models.User)
	return &u, nil
}

func (s *SessionService) rotateNonce(ctx context.Context, user *models.User) (string, error) {
	nonce, err := utils.GenerateSecureToken(16)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	if err := s.users.SetNonce(ctx, user.ID, nonce); err != nil {
		return "", err
	}
	user.Nonce = nonce
	return nonce, nil
}

// Issue signs a token for user valid for the configured TTL.
func (s *SessionService) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:        user.ID,
		WalletAddress: user.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.WalletAddress,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Validate checks a token's signature and expiry and resolves its user.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.opts.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", common.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if user.WalletAddress != claims.WalletAddress {
		return nil, fmt.Errorf("%w: wallet mismatch", common.ErrInvalidToken)
	}
	return user, nil
}
