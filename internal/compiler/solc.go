// Package compiler turns Solidity source into ABI and bytecode by driving the
// solc binary through its standard-JSON interface.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"time"

	"github.com/rohits-web03/chainforge/internal/common"
	"go.uber.org/zap"
)

// ErrNoContract is a structural failure: the source declares no contract, or
// the compiler produced no output for the declared name. It is distinct from
// compiler diagnostics.
var ErrNoContract = errors.New("no compiled output for contract")

const (
	SeverityError   = "error"
	SeverityWarning = "warning"

	sourceUnit = "Contract.sol"
)

// contractDecl matches a contract declaration at the start of a line or
// right after another top-level construct. Run it on stripped source only.
var contractDecl = regexp.MustCompile(`(?m)(?:^|[;{}])\s*(?:abstract\s+)?contract\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// Diagnostic is one compiler message.
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"formattedMessage"`
	Type     string `json:"type,omitempty"`
}

// Result is a successful compilation. Warnings pass through.
type Result struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
	Warnings     []Diagnostic    `json:"warnings,omitempty"`
}

// Error carries the blocking diagnostics of a failed compilation.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 1 {
		return "compilation failed: " + e.Diagnostics[0].Message
	}
	return fmt.Sprintf("compilation failed with %d errors", len(e.Diagnostics))
}

func (e *Error) Unwrap() error { return common.ErrCompilation }

// Compiler compiles a single Solidity source.
type Compiler interface {
	Compile(ctx context.Context, source string) (*Result, error)
}

// Runner feeds standard-JSON input to a solc process and returns its stdout.
type Runner func(ctx context.Context, input []byte) ([]byte, error)

type Options struct {
	Path     string
	Timeout  time.Duration
	Optimize bool
	Runs     int
}

// Solc is a Compiler backed by the solc executable.
type Solc struct {
	opts Options
	run  Runner
	log  *zap.Logger
}

func NewSolc(opts Options, log *zap.Logger) *Solc {
	if opts.Path == "" {
		opts.Path = "solc"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	s := &Solc{opts: opts, log: log}
	s.run = s.exec
	return s
}

// WithRunner swaps the process runner, mainly for tests.
func (s *Solc) WithRunner(run Runner) *Solc {
	s.run = run
	return s
}

// ContractName returns the first contract declared in source. Comments and
// string literals are ignored.
func ContractName(source string) (string, bool) {
	m := contractDecl.FindStringSubmatch(stripNonCode(source))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// stripNonCode blanks out comments and string literals, keeping newlines so
// line anchors still work.
func stripNonCode(source string) string {
	out := []byte(source)
	blank := func(i int) {
		if out[i] != '\n' {
			out[i] = ' '
		}
	}
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				blank(i)
			}
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			blank(i)
			blank(i + 1)
			for i += 2; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					blank(i)
					blank(i + 1)
					i++
					break
				}
				blank(i)
			}
		case out[i] == '"' || out[i] == '\'':
			quote := out[i]
			blank(i)
			for i++; i < len(out); i++ {
				c := out[i]
				blank(i)
				if c == '\\' && i+1 < len(out) {
					i++
					blank(i)
					continue
				}
				if c == quote || c == '\n' {
					break
				}
			}
		}
	}
	return string(out)
}

func (s *Solc) Compile(ctx context.Context, source string) (*Result, error) {
	name, ok := ContractName(source)
	if !ok {
		return nil, fmt.Errorf("%w: source declares no contract", ErrNoContract)
	}

	input, err := json.Marshal(s.input(source))
	if err != nil {
		return nil, fmt.Errorf("encode solc input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.run(ctx, input)
	if err != nil {
		return nil, err
	}
	s.log.Debug("solc finished", zap.String("contract", name), zap.Duration("took", time.Since(start)))

	var out standardOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: unreadable solc output: %v", common.ErrExternalService, err)
	}
	return out.result(name)
}

func (s *Solc) exec(ctx context.Context, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.opts.Path, "--standard-json")
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.log.Error("solc failed", zap.Error(err), zap.String("stderr", stderr.String()))
		return nil, fmt.Errorf("%w: solc: %v", common.ErrExternalService, err)
	}
	return stdout.Bytes(), nil
}

type standardInput struct {
	Language string                   `json:"language"`
	Sources  map[string]sourceContent `json:"sources"`
	Settings standardSettings         `json:"settings"`
}

type sourceContent struct {
	Content string `json:"content"`
}

type standardSettings struct {
	Optimizer       optimizer                      `json:"optimizer"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

func (s *Solc) input(source string) standardInput {
	return standardInput{
		Language: "Solidity",
		Sources:  map[string]sourceContent{sourceUnit: {Content: source}},
		Settings: standardSettings{
			Optimizer: optimizer{Enabled: s.opts.Optimize, Runs: s.opts.Runs},
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"abi", "evm.bytecode.object"}},
			},
		},
	}
}

type standardOutput struct {
	Errors    []Diagnostic                         `json:"errors"`
	Contracts map[string]map[string]contractOutput `json:"contracts"`
}

type contractOutput struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
	} `json:"evm"`
}

func (o standardOutput) result(name string) (*Result, error) {
	var blocking, warnings []Diagnostic
	for _, d := range o.Errors {
		if d.Severity == SeverityError {
			blocking = append(blocking, d)
		} else {
			warnings = append(warnings, d)
		}
	}
	if len(blocking) > 0 {
		return nil, &Error{Diagnostics: blocking}
	}

	// Map order is random; scan units in a fixed order.
	units := make([]string, 0, len(o.Contracts))
	for unit := range o.Contracts {
		units = append(units, unit)
	}
	sort.Strings(units)

	for _, unit := range units {
		c, ok := o.Contracts[unit][name]
		if !ok {
			continue
		}
		return &Result{
			ContractName: name,
			ABI:          c.ABI,
			Bytecode:     c.EVM.Bytecode.Object,
			Warnings:     warnings,
		}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrNoContract, name)
}
