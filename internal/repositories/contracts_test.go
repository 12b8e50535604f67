package repositories_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"github.com/rohits-web03/chainforge/internal/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"
)

func strPtr(s string) *string { return &s }

func newContractRepo(t *testing.T) *repositories.ContractRepository {
	t.Helper()
	return repositories.NewContractRepository(repotest.NewDB(t))
}

func mkFolder(t *testing.T, repo *repositories.ContractRepository, name string, parent *uint) *models.Contract {
	t.Helper()
	c := &models.Contract{Type: models.ContractTypeFolder, Name: name, ParentID: parent}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func mkFile(t *testing.T, repo *repositories.ContractRepository, name, owner string, parent *uint) *models.Contract {
	t.Helper()
	c := &models.Contract{
		Type:         models.ContractTypeFile,
		Name:         name,
		ParentID:     parent,
		SourceCode:   strPtr("contract X {}"),
		OwnerAddress: strPtr(owner),
	}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestContractRepository_FindByID(t *testing.T) {
	repo := newContractRepo(t)
	f := mkFile(t, repo, "A.sol", alice, nil)

	got, err := repo.FindByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "A.sol", got.Name)
	assert.Equal(t, "contract X {}", *got.SourceCode)

	_, err = repo.FindByID(context.Background(), f.ID+100)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestContractRepository_List_Visibility(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()
	root := mkFolder(t, repo, "Contracts", nil)
	mkFile(t, repo, "Alice.sol", alice, &root.ID)
	mkFile(t, repo, "Bob.sol", bob, &root.ID)

	aliceView, err := repo.List(ctx, repositories.ContractFilter{Wallet: alice})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contracts", "Alice.sol"}, names(aliceView))

	bobView, err := repo.List(ctx, repositories.ContractFilter{Wallet: bob})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contracts", "Bob.sol"}, names(bobView))

	anon, err := repo.List(ctx, repositories.ContractFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contracts"}, names(anon))
}

func TestContractRepository_List_Filters(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()
	root := mkFolder(t, repo, "Contracts", nil)
	mkFolder(t, repo, "Tokens", &root.ID)
	mkFile(t, repo, "Token.sol", alice, &root.ID)
	mkFile(t, repo, "Vault.sol", alice, &root.ID)

	files, err := repo.List(ctx, repositories.ContractFilter{Wallet: alice, Type: models.ContractTypeFile})
	require.NoError(t, err)
	assert.Equal(t, []string{"Token.sol", "Vault.sol"}, names(files))

	folders, err := repo.List(ctx, repositories.ContractFilter{Wallet: alice, Type: models.ContractTypeFolder})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contracts", "Tokens"}, names(folders))

	byName, err := repo.List(ctx, repositories.ContractFilter{Wallet: alice, Name: "Vault.sol"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vault.sol"}, names(byName))

	anonFiles, err := repo.List(ctx, repositories.ContractFilter{Type: models.ContractTypeFile})
	require.NoError(t, err)
	assert.Empty(t, anonFiles)
}

func TestContractRepository_FindRootFolder(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()

	_, err := repo.FindRootFolder(ctx, "Contracts")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	root := mkFolder(t, repo, "Contracts", nil)
	mkFolder(t, repo, "Contracts", &root.ID)

	got, err := repo.FindRootFolder(ctx, "Contracts")
	require.NoError(t, err)
	assert.Equal(t, root.ID, got.ID)
}

func TestContractRepository_TopLevelFolderNamesUnique(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()
	root := mkFolder(t, repo, "Contracts", nil)

	dup := &models.Contract{Type: models.ContractTypeFolder, Name: "Contracts"}
	err := repo.Create(ctx, dup)
	assert.True(t, errors.Is(err, common.ErrValidation))

	// Nested folders and top-level files may reuse the name.
	mkFolder(t, repo, "Contracts", &root.ID)
	mkFile(t, repo, "Contracts", alice, nil)

	other := mkFolder(t, repo, "Other", nil)
	err = repo.Update(ctx, other.ID, map[string]any{"name": "Contracts"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	folders, err := repo.List(ctx, repositories.ContractFilter{Type: models.ContractTypeFolder, Name: "Contracts"})
	require.NoError(t, err)
	assert.Len(t, folders, 2)
}

func TestContractRepository_Update(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()
	f := mkFile(t, repo, "A.sol", alice, nil)

	err := repo.Update(ctx, f.ID, map[string]any{
		"name":     "B.sol",
		"abi":      datatypes.JSON(`[{"type":"constructor"}]`),
		"bytecode": "6080",
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "B.sol", got.Name)
	assert.JSONEq(t, `[{"type":"constructor"}]`, string(got.ABI))
	assert.Equal(t, "6080", *got.Bytecode)
	assert.Equal(t, alice, *got.OwnerAddress)
}

func TestContractRepository_DeleteTree(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()

	// root -> {a.sol, sub -> {b.sol, deeper -> {c.sol}}}, plus an unrelated file.
	root := mkFolder(t, repo, "root", nil)
	mkFile(t, repo, "a.sol", alice, &root.ID)
	sub := mkFolder(t, repo, "sub", &root.ID)
	mkFile(t, repo, "b.sol", alice, &sub.ID)
	deeper := mkFolder(t, repo, "deeper", &sub.ID)
	mkFile(t, repo, "c.sol", alice, &deeper.ID)
	other := mkFile(t, repo, "other.sol", alice, nil)

	var visited []string
	n, err := repo.DeleteTree(ctx, root.ID, func(c *models.Contract) error {
		visited = append(visited, c.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, []string{"a.sol", "b.sol", "c.sol", "deeper", "sub", "root"}, visited)

	left, err := repo.List(ctx, repositories.ContractFilter{Wallet: alice})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].ID)
}

func TestContractRepository_DeleteTree_GuardAborts(t *testing.T) {
	repo := newContractRepo(t)
	ctx := context.Background()
	root := mkFolder(t, repo, "root", nil)
	mkFile(t, repo, "mine.sol", alice, &root.ID)
	mkFile(t, repo, "theirs.sol", bob, &root.ID)

	_, err := repo.DeleteTree(ctx, root.ID, func(c *models.Contract) error {
		if c.OwnerAddress != nil && *c.OwnerAddress != alice {
			return common.ErrForbidden
		}
		return nil
	})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	kids, err := repo.Children(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, kids, 2)
}

func TestContractRepository_DeleteTree_Missing(t *testing.T) {
	repo := newContractRepo(t)
	_, err := repo.DeleteTree(context.Background(), 42, nil)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func names(cs []models.Contract) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}
