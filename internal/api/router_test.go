package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rohits-web03/chainforge/internal/api/handlers"
	"github.com/rohits-web03/chainforge/internal/api/middleware"
	"github.com/rohits-web03/chainforge/internal/api/services"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/config"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"github.com/rohits-web03/chainforge/internal/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"

	counterSource = "pragma solidity ^0.8.0;\ncontract Counter { uint256 public count; }"
)

// stubCompiler fails any source containing "BROKEN".
type stubCompiler struct{}

func (stubCompiler) Compile(_ context.Context, source string) (*compiler.Result, error) {
	if strings.Contains(source, "BROKEN") {
		return nil, &compiler.Error{Diagnostics: []compiler.Diagnostic{
			{Severity: compiler.SeverityError, Message: "ParserError: Expected ';'", Type: "ParserError"},
		}}
	}
	name, _ := compiler.ContractName(source)
	return &compiler.Result{
		ContractName: name,
		ABI:          json.RawMessage(`[{"type":"function","name":"count"}]`),
		Bytecode:     "6080604052",
	}, nil
}

type stubModel struct{ reply string }

func (m stubModel) Complete(context.Context, string, string) (string, error) {
	return m.reply, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, trustHeader bool) *testServer {
	t.Helper()
	db := repotest.NewDB(t)
	log := zap.NewNop()

	sessions := services.NewSessionService(repositories.NewUserRepository(db), services.SessionOptions{
		Secret: "test-secret", TTL: 24 * time.Hour,
	}, log)
	contracts := services.NewContractService(repositories.NewContractRepository(db), nil, services.ContractOptions{
		RootFolderName: "Contracts", RepairMissingParent: true,
	}, log)
	deployer := services.NewDeployService(contracts, log)
	model := stubModel{reply: "```solidity\ncontract Escrow {}\n```"}
	assistant := services.NewChatService(contracts, deployer, stubCompiler{}, model, log)

	h := &handlers.Handler{
		Sessions:  sessions,
		Contracts: contracts,
		Deployer:  deployer,
		Assistant: assistant,
		Compiler:  stubCompiler{},
		Log:       log,
		TokenTTL:  24 * time.Hour,
	}
	identity := middleware.NewIdentity(sessions, trustHeader, log)
	return &testServer{t: t, handler: SetupRouter(h, identity, config.CorsConfig([]string{"http://localhost:5173"}), log)}
}

// do sends a request; auth is a bearer token, or a wallet address when it
// starts with 0x.
func (s *testServer) do(method, path, auth string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(auth, "0x"):
		req.Header.Set(middleware.WalletHeader, auth)
	case auth != "":
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (s *testServer) login(addr string) (uint, string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/login", "", map[string]string{"wallet_address": addr})
	require.Equal(s.t, http.StatusOK, code)
	var out struct {
		User  struct{ ID uint } `json:"user"`
		Token string            `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &out))
	return out.User.ID, out.Token
}

func (s *testServer) createFile(auth, name, source string) uint {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/contracts", auth, map[string]any{
		"type": "file", "name": name, "sourceCode": source,
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	var c struct{ ID uint }
	require.NoError(s.t, json.Unmarshal(env.Data, &c))
	return c.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestLogin_IdempotentAcrossCase(t *testing.T) {
	s := newTestServer(t, false)
	first, token := s.login("0x00000000000000000000000000000000000A11CE")
	second, _ := s.login(alice)
	assert.Equal(t, first, second)

	code, env := s.do(http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), alice)

	code, _ = s.do(http.MethodGet, "/api/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/login", "", map[string]string{"wallet_address": "0xnope"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestContracts_OwnershipOverHTTP(t *testing.T) {
	s := newTestServer(t, false)
	_, aliceToken := s.login(alice)
	_, bobToken := s.login(bob)

	id := s.createFile(aliceToken, "Counter.sol", counterSource)
	path := "/api/contracts/" + itoa(id)

	code, env := s.do(http.MethodGet, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"source"`)

	code, _ = s.do(http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPatch, path, bobToken, map[string]string{"sourceCode": "contract Evil {}"})
	assert.Equal(t, http.StatusForbidden, code)

	_, env = s.do(http.MethodGet, path, aliceToken, nil)
	assert.Contains(t, string(env.Data), "contract Counter")

	code, _ = s.do(http.MethodDelete, path, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodDelete, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"deleted":1}`, string(env.Data))

	code, _ = s.do(http.MethodGet, "/api/contracts/abc", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestContracts_AnonymousListSeesFolders(t *testing.T) {
	s := newTestServer(t, false)
	_, token := s.login(alice)
	s.createFile(token, "Counter.sol", counterSource)
	code, _ := s.do(http.MethodPost, "/api/contracts", token, map[string]any{"type": "folder", "name": "Shared"})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(http.MethodGet, "/api/contracts", "", nil)
	require.Equal(t, http.StatusOK, code)
	var list []struct{ Type string }
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "folder", list[0].Type)

	code, env = s.do(http.MethodGet, "/api/contracts?type=file", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestContracts_FolderListingSameForEveryWallet(t *testing.T) {
	s := newTestServer(t, false)
	_, aliceToken := s.login(alice)
	_, bobToken := s.login(bob)

	code, env := s.do(http.MethodPost, "/api/contracts", aliceToken, map[string]any{"type": "folder", "name": "AliceDir"})
	require.Equal(t, http.StatusCreated, code)
	var dir struct{ ID uint }
	require.NoError(t, json.Unmarshal(env.Data, &dir))
	code, _ = s.do(http.MethodPost, "/api/contracts", bobToken, map[string]any{"type": "folder", "name": "BobDir", "parentId": dir.ID})
	require.Equal(t, http.StatusCreated, code)
	s.createFile(aliceToken, "A.sol", counterSource)
	s.createFile(bobToken, "B.sol", counterSource)

	var lists [3]json.RawMessage
	for i, auth := range []string{aliceToken, bobToken, ""} {
		code, env := s.do(http.MethodGet, "/api/contracts?type=folder", auth, nil)
		require.Equal(t, http.StatusOK, code)
		lists[i] = env.Data
	}
	var folders []struct{ Type, Name string }
	require.NoError(t, json.Unmarshal(lists[0], &folders))
	require.Len(t, folders, 2)
	for _, f := range folders {
		assert.Equal(t, "folder", f.Type)
	}
	assert.JSONEq(t, string(lists[0]), string(lists[1]))
	assert.JSONEq(t, string(lists[0]), string(lists[2]))
}

func TestStaleTokenCookie(t *testing.T) {
	s := newTestServer(t, false)
	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(`{"type":"file","name":"A.sol"}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "left.over.token"})
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/contracts"))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/contracts/tree"))
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodPost, "/api/contracts"))
}

func TestWalletHeaderTrust(t *testing.T) {
	strict := newTestServer(t, false)
	code, _ := strict.do(http.MethodPost, "/api/contracts", alice, map[string]any{"type": "file", "name": "A.sol"})
	assert.Equal(t, http.StatusUnauthorized, code)

	trusting := newTestServer(t, true)
	id := trusting.createFile(alice, "A.sol", counterSource)
	code, _ = trusting.do(http.MethodGet, "/api/contracts/"+itoa(id), bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCompileEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	_, token := s.login(alice)

	code, env := s.do(http.MethodPost, "/api/compile", token, map[string]string{"sourceCode": "contract BROKEN {"})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, env.Data)
	var details struct {
		Errors []compiler.Diagnostic `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Details, &details))
	require.NotEmpty(t, details.Errors)
	assert.Equal(t, compiler.SeverityError, details.Errors[0].Severity)

	id := s.createFile(token, "Counter.sol", counterSource)
	code, env = s.do(http.MethodPost, "/api/compile", token, map[string]any{"contractId": id})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"bytecode":"6080604052"`)

	code, env = s.do(http.MethodPost, "/api/deploy", token, map[string]any{"contractId": id})
	require.Equal(t, http.StatusOK, code, env.Message)
	var pkg services.DeploymentPackage
	require.NoError(t, json.Unmarshal(env.Data, &pkg))
	assert.Equal(t, "Counter", pkg.ContractName)
	assert.Equal(t, "0x6080604052", pkg.Bytecode)
	assert.Equal(t, 20, pkg.GasBufferPercent)

	code, env = s.do(http.MethodPost, "/api/contracts/"+itoa(id)+"/deployment", token, map[string]any{
		"address": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "network": "sepolia", "txHash": "0x0101010101010101010101010101010101010101010101010101010101010101",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"deploymentStatus":"deployed"`)
}

func TestDeployRequiresCompile(t *testing.T) {
	s := newTestServer(t, false)
	_, token := s.login(alice)
	id := s.createFile(token, "Counter.sol", counterSource)

	code, env := s.do(http.MethodPost, "/api/deploy", token, map[string]any{"contractId": id})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Contract must be compiled before deployment", env.Message)

	code, _ = s.do(http.MethodGet, "/api/contracts/"+itoa(id)+"/artifact", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	_, token := s.login(bob)

	code, env := s.do(http.MethodPost, "/api/chat", token, map[string]string{"message": "Create a contract called Escrow"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var reply services.ChatReply
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, "generate", reply.Action)
	assert.Equal(t, "contract Escrow {}", reply.Code)
	require.NotNil(t, reply.ContractID)

	code, env = s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": "compile", "contractId": *reply.ContractID})
	require.Equal(t, http.StatusOK, code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, "compile", reply.Action)

	code, _ = s.do(http.MethodPost, "/api/chat", token, map[string]string{"message": "compile"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/chat", "", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTreeEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	_, token := s.login(alice)
	code, env := s.do(http.MethodPost, "/api/contracts", token, map[string]any{"type": "folder", "name": "Tokens"})
	require.Equal(t, http.StatusCreated, code)
	var folder struct{ ID uint }
	require.NoError(t, json.Unmarshal(env.Data, &folder))

	code, _ = s.do(http.MethodPost, "/api/contracts", token, map[string]any{
		"type": "file", "name": "T.sol", "parentId": folder.ID,
	})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodGet, "/api/contracts/tree", token, nil)
	require.Equal(t, http.StatusOK, code)
	var tree []services.TreeNode
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "T.sol", tree[0].Children[0].Name)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
