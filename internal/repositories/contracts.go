package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/models"
	"gorm.io/gorm"
)

// ContractFilter narrows List. An empty Wallet means an anonymous caller,
// who only sees folders.
type ContractFilter struct {
	Wallet string
	Type   models.ContractType
	Name   string
}

const duplicateRoot = "a top-level folder with that name already exists"

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Create(ctx context.Context, c *models.Contract) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", common.ErrValidation, duplicateRoot)
		}
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

func (r *ContractRepository) FindByID(ctx context.Context, id uint) (*models.Contract, error) {
	var c models.Contract
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "contract")
	}
	return &c, nil
}

// FindRootFolder returns the root-level folder called name.
func (r *ContractRepository) FindRootFolder(ctx context.Context, name string) (*models.Contract, error) {
	var c models.Contract
	err := r.db.WithContext(ctx).
		Where("type = ? AND parent_id IS NULL AND name = ?", models.ContractTypeFolder, name).
		Order("id").
		First(&c).Error
	if err != nil {
		return nil, notFound(err, "root folder")
	}
	return &c, nil
}

// List returns every folder plus the files owned by f.Wallet.
func (r *ContractRepository) List(ctx context.Context, f ContractFilter) ([]models.Contract, error) {
	q := r.db.WithContext(ctx).Model(&models.Contract{})
	if f.Wallet == "" {
		q = q.Where("type = ?", models.ContractTypeFolder)
	} else {
		q = q.Where("(type = ? OR (type = ? AND owner_address = ?))",
			models.ContractTypeFolder, models.ContractTypeFile, f.Wallet)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Name != "" {
		q = q.Where("name = ?", f.Name)
	}

	var out []models.Contract
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return out, nil
}

func (r *ContractRepository) Children(ctx context.Context, parentID uint) ([]models.Contract, error) {
	return children(r.db.WithContext(ctx), parentID)
}

// Update writes the given columns. Keys are column names.
func (r *ContractRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Contract{}).Where("id = ?", id).Updates(fields)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", common.ErrValidation, duplicateRoot)
	}
	if res.Error != nil {
		return fmt.Errorf("update contract %d: %w", id, res.Error)
	}
	return nil
}

// DeleteTree removes id and all of its descendants, children before parents,
// one row at a time in a single transaction. guard sees every node before
// anything is deleted; a guard error aborts the whole delete.
func (r *ContractRepository) DeleteTree(ctx context.Context, id uint, guard func(*models.Contract) error) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Contract
		if err := tx.First(&root, id).Error; err != nil {
			return notFound(err, "contract")
		}

		order, err := postOrder(tx, root)
		if err != nil {
			return err
		}
		if guard != nil {
			for i := range order {
				if err := guard(&order[i]); err != nil {
					return err
				}
			}
		}
		for _, node := range order {
			res := tx.Delete(&models.Contract{}, node.ID)
			if res.Error != nil {
				return fmt.Errorf("delete contract %d: %w", node.ID, res.Error)
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// postOrder lists node's subtree with every child ahead of its parent.
func postOrder(tx *gorm.DB, node models.Contract) ([]models.Contract, error) {
	kids, err := children(tx, node.ID)
	if err != nil {
		return nil, err
	}
	var out []models.Contract
	for _, kid := range kids {
		sub, err := postOrder(tx, kid)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return append(out, node), nil
}

func children(db *gorm.DB, parentID uint) ([]models.Contract, error) {
	var out []models.Contract
	if err := db.Where("parent_id = ?", parentID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list children of %d: %w", parentID, err)
	}
	return out, nil
}
