package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/llm"
	"go.uber.org/zap"
)

const (
	chatSystemPrompt = "You are ChainForge, an assistant inside a Solidity IDE. " +
		"Answer questions about Solidity, EVM smart contracts and deployment concisely. " +
		"Use fenced code blocks for code."

	generateSystemPrompt = "You are an expert Solidity engineer. " +
		"Reply with one complete, compilable Solidity source file in a ```solidity code block and nothing else."
)

type ChatRequest struct {
	Message    string `json:"message"`
	ContractID *uint  `json:"contractId,omitempty"`
}

// ChatReply is the dispatcher's answer. Action tells the client which
// branch ran; the remaining fields depend on it.
type ChatReply struct {
	Action     string                `json:"action"`
	Reply      string                `json:"reply"`
	ContractID *uint                 `json:"contractId,omitempty"`
	Compiled   *compiler.Result      `json:"compiled,omitempty"`
	Errors     []compiler.Diagnostic `json:"errors,omitempty"`
	Deployment *DeploymentPackage    `json:"deployment,omitempty"`
	Code       string                `json:"code,omitempty"`
}

// ChatService routes a chat message to compile, deploy, code generation or
// a plain LLM answer.
type ChatService struct {
	contracts *ContractService
	deploy    *DeployService
	compiler  compiler.Compiler
	llm       llm.Client
	log       *zap.Logger
}

// NewChatService wires the dispatcher. client may be nil, in which case only
// compile and deploy work.
func NewChatService(contracts *ContractService, deploy *DeployService, c compiler.Compiler, client llm.Client, log *zap.Logger) *ChatService {
	return &ChatService{contracts: contracts, deploy: deploy, compiler: c, llm: client, log: log}
}

func (s *ChatService) Handle(ctx context.Context, wallet string, req ChatRequest) (*ChatReply, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: message is required", common.ErrValidation)
	}

	in := classify(msg)
	s.log.Debug("chat dispatch", zap.String("intent", in.String()), zap.String("wallet", wallet))

	switch in {
	case intentCompile:
		return s.compile(ctx, wallet, req.ContractID)
	case intentDeploy:
		return s.prepareDeploy(ctx, wallet, req.ContractID)
	case intentGenerate:
		return s.generate(ctx, wallet, msg)
	default:
		return s.chat(ctx, msg)
	}
}

func requireContract(id *uint, action string) (uint, error) {
	if id == nil {
		return 0, fmt.Errorf("%w: select a contract to %s", common.ErrValidation, action)
	}
	return *id, nil
}

func (s *ChatService) compile(ctx context.Context, wallet string, contractID *uint) (*ChatReply, error) {
	id, err := requireContract(contractID, "compile")
	if err != nil {
		return nil, err
	}
	view, err := s.contracts.Get(ctx, wallet, id)
	if err != nil {
		return nil, err
	}
	if view.IsFolder() || view.SourceCode == nil {
		return nil, fmt.Errorf("%w: only files can be compiled", common.ErrValidation)
	}

	res, err := s.compiler.Compile(ctx, *view.SourceCode)
	var cerr *compiler.Error
	switch {
	case errors.As(err, &cerr):
		return &ChatReply{
			Action:     intentCompile.String(),
			Reply:      fmt.Sprintf("Compilation failed: %s", cerr.Error()),
			ContractID: &id,
			Errors:     cerr.Diagnostics,
		}, nil
	case err != nil:
		return nil, err
	}

	if _, err := s.contracts.RecordCompilation(ctx, wallet, id, res); err != nil {
		return nil, err
	}
	return &ChatReply{
		Action:     intentCompile.String(),
		Reply:      fmt.Sprintf("Compiled %s successfully.", res.ContractName),
		ContractID: &id,
		Compiled:   res,
	}, nil
}

func (s *ChatService) prepareDeploy(ctx context.Context, wallet string, contractID *uint) (*ChatReply, error) {
	id, err := requireContract(contractID, "deploy")
	if err != nil {
		return nil, err
	}
	pkg, err := s.deploy.Prepare(ctx, wallet, id)
	if err != nil {
		return nil, err
	}
	return &ChatReply{
		Action:     intentDeploy.String(),
		Reply:      fmt.Sprintf("%s is ready to deploy. Confirm the transaction in your wallet.", pkg.ContractName),
		ContractID: &id,
		Deployment: pkg,
	}, nil
}

func (s *ChatService) generate(ctx context.Context, wallet, msg string) (*ChatReply, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("%w: language model", common.ErrNotConfigured)
	}
	name := ExtractContractName(msg)
	prompt := fmt.Sprintf(
		"Write a Solidity smart contract named %s.\n\nRequirements: %s\n\n"+
			"Use pragma solidity ^0.8.20 and include an SPDX license identifier.",
		name, msg)

	reply, err := s.llm.Complete(ctx, generateSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	code := ExtractSolidity(reply)
	if code == "" {
		return nil, fmt.Errorf("%w: model returned no code", common.ErrExternalService)
	}

	c, err := s.contracts.CreateGenerated(ctx, wallet, name, code)
	if err != nil {
		return nil, err
	}
	s.log.Info("contract generated", zap.String("name", name), zap.Uint("id", c.ID), zap.String("wallet", wallet))
	return &ChatReply{
		Action:     intentGenerate.String(),
		Reply:      fmt.Sprintf("Created %s.", c.Name),
		ContractID: &c.ID,
		Code:       code,
	}, nil
}

func (s *ChatService) chat(ctx context.Context, msg string) (*ChatReply, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("%w: language model", common.ErrNotConfigured)
	}
	reply, err := s.llm.Complete(ctx, chatSystemPrompt, msg)
	if err != nil {
		return nil, err
	}
	return &ChatReply{Action: intentChat.String(), Reply: reply}, nil
}
