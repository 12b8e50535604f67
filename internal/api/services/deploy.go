package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rohits-web03/chainforge/internal/common"
	"github.com/rohits-web03/chainforge/internal/compiler"
	"github.com/rohits-web03/chainforge/internal/models"
	"github.com/rohits-web03/chainforge/internal/wallet"
	"go.uber.org/zap"
)

const (
	// GasBufferPercent is added on top of the client's gas estimate.
	GasBufferPercent = 20
	// Confirmations the client waits for before reporting a deployment.
	Confirmations = 2

	noCodeAtAddress = "no code at deployed address"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// DeploymentPackage is everything a wallet needs to broadcast the
// deployment transaction itself.
type DeploymentPackage struct {
	ContractID       uint            `json:"contractId"`
	ContractName     string          `json:"contractName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	GasBufferPercent int             `json:"gasBufferPercent"`
	Confirmations    int             `json:"confirmations"`
}

// DeploymentReport is what the client sends back once the transaction is
// mined. CodePresent=false means the address has no runtime code.
type DeploymentReport struct {
	Address     string `json:"address"`
	Network     string `json:"network"`
	TxHash      string `json:"txHash,omitempty"`
	CodePresent *bool  `json:"codePresent,omitempty"`
}

// DeployService prepares deployments and records their outcome. The server
// never signs or broadcasts.
type DeployService struct {
	contracts *ContractService
	log       *zap.Logger
}

func NewDeployService(contracts *ContractService, log *zap.Logger) *DeployService {
	return &DeployService{contracts: contracts, log: log}
}

// Prepare hands out the stored ABI and bytecode of a compiled file and
// marks it pending.
func (s *DeployService) Prepare(ctx context.Context, caller string, id uint) (*DeploymentPackage, error) {
	view, err := s.contracts.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	c := &view.Contract
	if c.IsFolder() {
		return nil, fmt.Errorf("%w: folders cannot be deployed", common.ErrValidation)
	}
	if !c.Compiled() {
		return nil, fmt.Errorf("contract %d: %w", id, common.ErrNotCompiled)
	}

	if _, err := s.contracts.setDeployment(ctx, caller, id, map[string]any{
		"deployment_status": models.DeploymentPending,
		"deployment_error":  nil,
	}); err != nil {
		return nil, err
	}

	bytecode := *c.Bytecode
	if !strings.HasPrefix(bytecode, "0x") {
		bytecode = "0x" + bytecode
	}
	s.log.Info("deployment prepared", zap.Uint("id", id), zap.String("wallet", caller))
	return &DeploymentPackage{
		ContractID:       c.ID,
		ContractName:     deployName(c),
		ABI:              json.RawMessage(c.ABI),
		Bytecode:         bytecode,
		GasBufferPercent: GasBufferPercent,
		Confirmations:    Confirmations,
	}, nil
}

func deployName(c *models.Contract) string {
	if c.SourceCode != nil {
		if name, ok := compiler.ContractName(*c.SourceCode); ok {
			return name
		}
	}
	return strings.TrimSuffix(c.Name, ".sol")
}

// Record stores the client's report of a deployment.
func (s *DeployService) Record(ctx context.Context, caller string, id uint, report DeploymentReport) (*models.Contract, error) {
	network := strings.TrimSpace(report.Network)
	if network == "" {
		return nil, fmt.Errorf("%w: network is required", common.ErrValidation)
	}

	if report.CodePresent != nil && !*report.CodePresent {
		s.log.Warn("deployment left no code",
			zap.Uint("id", id),
			zap.String("address", report.Address),
			zap.String("network", network))
		return s.contracts.setDeployment(ctx, caller, id, map[string]any{
			"deployment_status": models.DeploymentFailed,
			"deployment_error":  noCodeAtAddress,
			"network":           network,
		})
	}

	addr, err := wallet.Normalize(report.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: address must be a 0x-prefixed 20-byte hex string", common.ErrValidation)
	}
	fields := map[string]any{
		"deployment_status": models.DeploymentDeployed,
		"deployment_error":  nil,
		"address":           addr,
		"network":           network,
	}
	if report.TxHash != "" {
		if !txHashPattern.MatchString(report.TxHash) {
			return nil, fmt.Errorf("%w: txHash must be a 0x-prefixed 32-byte hex string", common.ErrValidation)
		}
		fields["tx_hash"] = strings.ToLower(report.TxHash)
	}

	c, err := s.contracts.setDeployment(ctx, caller, id, fields)
	if err != nil {
		return nil, err
	}
	s.log.Info("deployment recorded",
		zap.Uint("id", id),
		zap.String("address", addr),
		zap.String("network", network))
	return c, nil
}
