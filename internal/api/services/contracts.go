package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ArtifactTTL is how long a presigned artifact link stays valid.
const ArtifactTTL = 15 * time.Minute

// ArtifactStore is where compiled artifacts are archived.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type ContractOptions struct {
	RootFolderName      string
	RepairMissingParent bool
}

// ContractService owns the contract tree: who sees what, who may change
// what, and how deletes cascade.
type ContractService struct {
	repo      *repositories.ContractRepository
	artifacts ArtifactStore
	opts      ContractOptions
	log       *zap.Logger
}

// NewContractService builds the service. artifacts may be nil, which turns
// archiving off.
func NewContractService(repo *repositories.ContractRepository, artifacts ArtifactStore, opts ContractOptions, log *zap.Logger) *ContractService {
	if opts.RootFolderName == "" {
		opts.RootFolderName = "Contracts"
	}
	return &ContractService{repo: repo, artifacts: artifacts, opts: opts, log: log}
}

type CreateContractInput struct {
	Type       models.ContractType `json:"type"`
	Name       string              `json:"name"`
	Path       string              `json:"path,omitempty"`
	ParentID   *uint               `json:"parentId,omitempty"`
	SourceCode *string             `json:"sourceCode,omitempty"`
}

// ContractPatch lists the mutable fields. Nil means unchanged.
type ContractPatch struct {
	Name       *string         `json:"name,omitempty"`
	Path       *string         `json:"path,omitempty"`
	ParentID   *uint           `json:"parentId,omitempty"`
	SourceCode *string         `json:"sourceCode,omitempty"`
	ABI        json.RawMessage `json:"abi,omitempty"`
	Bytecode   *string         `json:"bytecode,omitempty"`
	Address    *string         `json:"address,omitempty"`
	Network    *string         `json:"network,omitempty"`
}

func (p ContractPatch) touchesFileFields() bool {
	return p.SourceCode != nil || len(p.ABI) > 0 || p.Bytecode != nil || p.Address != nil || p.Network != nil
}

// ContractView is a single record as returned by Get, with the source also
// exposed under "source".
type ContractView struct {
	models.Contract
	Source *string `json:"source,omitempty"`
}

// TreeNode is one entry of the nested workspace view.
type TreeNode struct {
	ID               uint                    `json:"id"`
	Type             models.ContractType     `json:"type"`
	Name             string                  `json:"name"`
	Path             string                  `json:"path"`
	ParentID         *uint                   `json:"parentId"`
	DeploymentStatus models.DeploymentStatus `json:"deploymentStatus,omitempty"`
	Children         []*TreeNode             `json:"children,omitempty"`
}

// Create inserts a file or folder. Files are stamped with the caller's
// wallet; folders stay unowned.
func (s *ContractService) Create(ctx context.Context, wallet string, in CreateContractInput) (*models.Contract, error) {
	if wallet == "" {
		return nil, common.ErrUnauthorized
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: type must be %q or %q", common.ErrValidation, models.ContractTypeFile, models.ContractTypeFolder)
	}

	var parent *models.Contract
	if in.ParentID != nil {
		p, err := s.resolveParent(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	c := &models.Contract{
		Type: in.Type,
		Name: name,
		Path: strings.TrimSpace(in.Path),
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if c.Path == "" {
		c.Path = childPath(parent, name)
	}
	if c.Type == models.ContractTypeFile {
		src := ""
		if in.SourceCode != nil {
			src = *in.SourceCode
		}
		c.SourceCode = &src
		c.OwnerAddress = &wallet
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("contract created",
		zap.Uint("id", c.ID),
		zap.String("type", string(c.Type)),
		zap.String("wallet", wallet))
	return c, nil
}

// resolveParent returns the folder a new record goes under. A missing parent
// falls back to the root folder unless repair is off.
func (s *ContractService) resolveParent(ctx context.Context, id uint) (*models.Contract, error) {
	parent, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		if !s.opts.RepairMissingParent {
			return nil, fmt.Errorf("%w: parent %d does not exist", common.ErrValidation, id)
		}
		root, err := s.EnsureRootFolder(ctx)
		if err != nil {
			return nil, err
		}
		s.log.Warn("parent missing, using root folder",
			zap.Uint("parent_id", id),
			zap.Uint("root_id", root.ID))
		return root, nil
	case err != nil:
		return nil, err
	case !parent.IsFolder():
		return nil, fmt.Errorf("%w: parent %d is not a folder", common.ErrValidation, id)
	}
	return parent, nil
}

func childPath(parent *models.Contract, name string) string {
	if parent == nil {
		return "/" + name
	}
	base := parent.Path
	if base == "" {
		base = "/" + parent.Name
	}
	return strings.TrimSuffix(base, "/") + "/" + name
}

// EnsureRootFolder finds the root folder, creating it on first use.
func (s *ContractService) EnsureRootFolder(ctx context.Context) (*models.Contract, error) {
	root, err := s.repo.FindRootFolder(ctx, s.opts.RootFolderName)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	root = &models.Contract{
		Type: models.ContractTypeFolder,
		Name: s.opts.RootFolderName,
		Path: "/" + s.opts.RootFolderName,
	}
	if err := s.repo.Create(ctx, root); err != nil {
		// Lost a race with another first use; the unique index kept one row.
		if existing, ferr := s.repo.FindRootFolder(ctx, s.opts.RootFolderName); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	s.log.Info("root folder created", zap.Uint("id", root.ID))
	return root, nil
}

// List returns all folders plus the caller's own files.
func (s *ContractService) List(ctx context.Context, wallet string, typ models.ContractType, name string) ([]models.Contract, error) {
	if typ != "" && !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", common.ErrValidation, typ)
	}
	out, err := s.repo.List(ctx, repositories.ContractFilter{Wallet: wallet, Type: typ, Name: name})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Contract{}
	}
	return out, nil
}

// Tree nests the caller's visible records. Records whose parent is not
// visible are shown at the top level.
func (s *ContractService) Tree(ctx context.Context, wallet string) ([]*TreeNode, error) {
	all, err := s.List(ctx, wallet, "", "")
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*TreeNode, len(all))
	for _, c := range all {
		nodes[c.ID] = &TreeNode{
			ID:               c.ID,
			Type:             c.Type,
			Name:             c.Name,
			Path:             c.Path,
			ParentID:         c.ParentID,
			DeploymentStatus: c.DeploymentStatus,
		}
	}

	roots := []*TreeNode{}
	for _, c := range all {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots, nil
}

// Get returns a folder to anyone and a file only to its owner. Someone
// else's file looks exactly like a missing one.
func (s *ContractService) Get(ctx context.Context, wallet string, id uint) (*ContractView, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsFolder() && !c.OwnedBy(wallet) {
		return nil, fmt.Errorf("contract %d: %w", id, common.ErrNotFound)
	}
	return &ContractView{Contract: *c, Source: c.SourceCode}, nil
}

// Update applies a patch. Files may only be changed by their owner; folders
// are shared and only take name, path and parent changes.
func (s *ContractService) Update(ctx context.Context, wallet string, id uint, patch ContractPatch) (*models.Contract, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsFolder() {
		if wallet == "" {
			return nil, common.ErrUnauthorized
		}
		if patch.touchesFileFields() {
			return nil, fmt.Errorf("%w: folders only accept name, path and parentId", common.ErrValidation)
		}
	} else if !c.OwnedBy(wallet) {
		return nil, fmt.Errorf("contract %d: %w", id, common.ErrForbidden)
	}

	fields := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", common.ErrValidation)
		}
		fields["name"] = name
	}
	if patch.Path != nil {
		fields["path"] = *patch.Path
	}
	if patch.ParentID != nil {
		if err := s.checkMove(ctx, c.ID, *patch.ParentID); err != nil {
			return nil, err
		}
		fields["parent_id"] = *patch.ParentID
	}
	if patch.SourceCode != nil {
		fields["source_code"] = *patch.SourceCode
	}
	if len(patch.ABI) > 0 {
		if !json.Valid(patch.ABI) {
			return nil, fmt.Errorf("%w: abi is not valid JSON", common.ErrValidation)
		}
		fields["abi"] = datatypes.JSON(patch.ABI)
	}
	if patch.Bytecode != nil {
		fields["bytecode"] = *patch.Bytecode
	}
	if patch.Address != nil {
		fields["address"] = *patch.Address
	}
	if patch.Network != nil {
		fields["network"] = *patch.Network
	}
	fields["updated_at"] = time.Now()

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// checkMove rejects moving id under a non-folder or under its own subtree.
func (s *ContractService) checkMove(ctx context.Context, id, parentID uint) error {
	if parentID == id {
		return fmt.Errorf("%w: a record cannot be its own parent", common.ErrValidation)
	}
	parent, err := s.repo.FindByID(ctx, parentID)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: parent %d does not exist", common.ErrValidation, parentID)
	}
	if err != nil {
		return err
	}
	if !parent.IsFolder() {
		return fmt.Errorf("%w: parent %d is not a folder", common.ErrValidation, parentID)
	}
	for cur := parent; cur.ParentID != nil; {
		if *cur.ParentID == id {
			return fmt.Errorf("%w: cannot move a folder into its own subtree", common.ErrValidation)
		}
		next, err := s.repo.FindByID(ctx, *cur.ParentID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// Delete removes a record and, for folders, everything under it. A folder
// holding another wallet's files cannot be deleted.
func (s *ContractService) Delete(ctx context.Context, wallet string, id uint) (int64, error) {
	if wallet == "" {
		return 0, common.ErrUnauthorized
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !c.IsFolder() && !c.OwnedBy(wallet) {
		return 0, fmt.Errorf("contract %d: %w", id, common.ErrForbidden)
	}

	n, err := s.repo.DeleteTree(ctx, id, func(node *models.Contract) error {
		if !node.IsFolder() && !node.OwnedBy(wallet) {
			return fmt.Errorf("%w: folder contains files owned by another wallet", common.ErrForbidden)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("contract deleted", zap.Uint("id", id), zap.Int64("records", n), zap.String("wallet", wallet))
	return n, nil
}

// RecordCompilation stores compiler output on the caller's file and, when
// an artifact store is configured, archives it.
func (s *ContractService) RecordCompilation(ctx context.Context, wallet string, id uint, res *compiler.Result) (*models.Contract, error) {
	bytecode := res.Bytecode
	c, err := s.Update(ctx, wallet, id, ContractPatch{ABI: res.ABI, Bytecode: &bytecode})
	if err != nil {
		return nil, err
	}
	s.archive(ctx, wallet, c, res)
	return c, nil
}

// archive is best effort; the database copy is authoritative.
func (s *ContractService) archive(ctx context.Context, wallet string, c *models.Contract, res *compiler.Result) {
	if s.artifacts == nil {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		s.log.Error("encode artifact", zap.Uint("id", c.ID), zap.Error(err))
		return
	}
	key := repositories.ArtifactKey(wallet, c.ID)
	if err := s.artifacts.Put(ctx, key, body); err != nil {
		s.log.Warn("artifact upload failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.log.Debug("artifact uploaded", zap.String("key", key))
}

// ArtifactURL returns a short-lived download link for the caller's archived
// artifact.
func (s *ContractService) ArtifactURL(ctx context.Context, wallet string, id uint) (string, error) {
	if s.artifacts == nil {
		return "", fmt.Errorf("%w: artifact storage", common.ErrNotConfigured)
	}
	view, err := s.Get(ctx, wallet, id)
	if err != nil {
		return "", err
	}
	if view.IsFolder() {
		return "", fmt.Errorf("%w: folders have no artifacts", common.ErrValidation)
	}
	if !view.Compiled() {
		return "", fmt.Errorf("contract %d: %w", id, common.ErrNotCompiled)
	}

	key := repositories.ArtifactKey(wallet, id)
	ok, err := s.artifacts.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrExternalService, err)
	}
	if !ok {
		return "", fmt.Errorf("artifact %s: %w", key, common.ErrNotFound)
	}
	url, err := s.artifacts.PresignGet(ctx, key, ArtifactTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrExternalService, err)
	}
	return url, nil
}

// CreateGenerated saves generated source as <name>.sol under the root folder.
func (s *ContractService) CreateGenerated(ctx context.Context, wallet, name, source string) (*models.Contract, error) {
	root, err := s.EnsureRootFolder(ctx)
	if err != nil {
		return nil, err
	}
	file := name + ".sol"
	return s.Create(ctx, wallet, CreateContractInput{
		Type:       models.ContractTypeFile,
		Name:       file,
		Path:       "/" + s.opts.RootFolderName + "/" + file,
		ParentID:   &root.ID,
		SourceCode: &source,
	})
}

// setDeployment writes deployment columns on a file the caller owns.
func (s *ContractService) setDeployment(ctx context.Context, wallet string, id uint, fields map[string]any) (*models.Contract, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsFolder() {
		return nil, fmt.Errorf("%w: folders cannot be deployed", common.ErrValidation)
	}
	if !c.OwnedBy(wallet) {
		return nil, fmt.Errorf("contract %d: %w", id, common.ErrForbidden)
	}
	fields["updated_at"] = time.Now()
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}
