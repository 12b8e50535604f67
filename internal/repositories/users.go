package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByWallet looks a user up by wallet address, ignoring case.
func (r *UserRepository) FindByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(wallet_address) = ?", strings.ToLower(wallet)).
		First(&user).Error
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) SetNonce(ctx context.Context, id uint, nonce string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("nonce", nonce)
	if res.Error != nil {
		return fmt.Errorf("set nonce: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// notFound maps gorm's missing-row error onto common.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}
