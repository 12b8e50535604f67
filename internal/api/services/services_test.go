package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"github.com/rohits-web03/chainforge/internal/repositories/repotest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"
)

type fakeCompiler struct {
	res   *compiler.Result
	err   error
	calls int
	last  string
}

func (f *fakeCompiler) Compile(_ context.Context, source string) (*compiler.Result, error) {
	f.calls++
	f.last = source
	return f.res, f.err
}

type fakeLLM struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return nil
}

func (m *memStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://artifacts.test/" + key + "?sig=1", nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

type harness struct {
	repo      *repositories.ContractRepository
	contracts *ContractService
	deploy    *DeployService
	chat      *ChatService
	compiler  *fakeCompiler
	llm       *fakeLLM
	store     *memStore
}

func newHarness(t *testing.T, opts ContractOptions) *harness {
	t.Helper()
	db := repotest.NewDB(t)
	log := zap.NewNop()
	h := &harness{
		repo:  repositories.NewContractRepository(db),
		store: newMemStore(),
		compiler: &fakeCompiler{res: &compiler.Result{
			ContractName: "Counter",
			ABI:          json.RawMessage(`[{"type":"function","name":"inc"}]`),
			Bytecode:     "6080604052",
		}},
		llm: &fakeLLM{},
	}
	h.contracts = NewContractService(h.repo, h.store, opts, log)
	h.deploy = NewDeployService(h.contracts, log)
	h.chat = NewChatService(h.contracts, h.deploy, h.compiler, h.llm, log)
	return h
}

func defaultOpts() ContractOptions {
	return ContractOptions{RootFolderName: "Contracts", RepairMissingParent: true}
}

func (h *harness) folder(t *testing.T, name string, parent *uint) *models.Contract {
	t.Helper()
	c, err := h.contracts.Create(context.Background(), alice, CreateContractInput{
		Type: models.ContractTypeFolder, Name: name, ParentID: parent,
	})
	require.NoError(t, err)
	return c
}

func (h *harness) file(t *testing.T, owner, name string, parent *uint) *models.Contract {
	t.Helper()
	src := "pragma solidity ^0.8.0;\ncontract Counter { uint256 public count; }"
	c, err := h.contracts.Create(context.Background(), owner, CreateContractInput{
		Type: models.ContractTypeFile, Name: name, ParentID: parent, SourceCode: &src,
	})
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }
