package txn

import (
	"context"
	"fmt"
	"time"

	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/types"
)

// Config defines the pipeline settings
type Config struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	Codec          Codec
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   500 * time.Millisecond,
		ConfirmTimeout: 30 * time.Second,
	}
}

// Pipeline builds, signs, submits and confirms transactions against a node
type Pipeline struct {
	node    Node
	builder *Builder
	config  *Config
	codec   Codec
	logger  *logz.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(node Node, config *Config) (*Pipeline, error) {
	if node == nil {
		return nil, fmt.Errorf("node cannot be nil")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	codec := config.Codec
	if codec == nil {
		codec = DefaultCodec()
	}

	return &Pipeline{
		node:    node,
		builder: NewBuilder(node),
		config:  config,
		codec:   codec,
		logger:  logz.New(logz.INFO, "txn"),
	}, nil
}

// SetLogger replaces the pipeline logger
func (p *Pipeline) SetLogger(logger *logz.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Builder returns the pipeline's transaction builder
func (p *Pipeline) Builder() *Builder {
	return p.builder
}

// ConfirmTimeout returns the configured default confirmation wait
func (p *Pipeline) ConfirmTimeout() time.Duration {
	return p.config.ConfirmTimeout
}

// Sign signs raw with the pipeline codec
func (p *Pipeline) Sign(signer Signer, raw *types.RawTransaction) (*types.SignedTransaction, error) {
	return SignWithCodec(p.codec, signer, raw)
}

// Submit posts a signed envelope and returns the pending transaction hash
func (p *Pipeline) Submit(ctx context.Context, signed *types.SignedTransaction) (string, error) {
	if signed == nil {
		return "", fmt.Errorf("signed transaction cannot be nil")
	}

	pending, err := p.node.SubmitTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	if pending.Hash == "" {
		return "", fmt.Errorf("node returned a pending transaction without hash")
	}

	p.logger.Debug("Submitted transaction %s from %s seq %d", pending.Hash, signed.Transaction.Sender, signed.Transaction.SequenceNumber)
	return pending.Hash, nil
}

// SignAndSubmit signs raw and submits it
func (p *Pipeline) SignAndSubmit(ctx context.Context, signer Signer, raw *types.RawTransaction) (string, error) {
	signed, err := p.Sign(signer, raw)
	if err != nil {
		return "", err
	}
	return p.Submit(ctx, signed)
}

// WaitForTransaction polls the node until hash is committed or timeout elapses.
// Lookup failures and pending records are treated as not yet committed.
func (p *Pipeline) WaitForTransaction(ctx context.Context, hash string, timeout time.Duration) (*types.Transaction, error) {
	if hash == "" {
		return nil, ErrEmptyHash
	}
	if timeout <= 0 {
		metrics.RecordTimeout()
		return nil, &TimeoutError{Hash: hash, Timeout: timeout}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		tx, err := p.node.GetTransactionByHash(waitCtx, hash)
		switch {
		case err != nil:
			p.logger.Debug("Transaction %s not found yet: %v", hash, err)
		case tx.IsPending():
			p.logger.Debug("Transaction %s still pending", hash)
		default:
			metrics.RecordConfirmation(tx.Success)
			return tx, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, p.waitError(ctx, hash, timeout)
		case <-time.After(p.config.PollInterval):
		}
	}
}

// waitError distinguishes an expired wait from a cancelled caller
func (p *Pipeline) waitError(ctx context.Context, hash string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for transaction %s: %w", hash, err)
	}
	metrics.RecordTimeout()
	return &TimeoutError{Hash: hash, Timeout: timeout}
}

// SubmitAndWait signs, submits and waits for raw using the configured timeout.
// A committed transaction that failed on chain is returned together with a *DomainError.
func (p *Pipeline) SubmitAndWait(ctx context.Context, signer Signer, raw *types.RawTransaction) (*types.Transaction, error) {
	hash, err := p.SignAndSubmit(ctx, signer, raw)
	if err != nil {
		return nil, err
	}

	tx, err := p.WaitForTransaction(ctx, hash, p.config.ConfirmTimeout)
	if err != nil {
		return nil, err
	}
	if !tx.Success {
		return tx, &DomainError{Hash: hash, VMStatus: tx.VMStatus}
	}
	return tx, nil
}

// Transfer builds, signs and submits an APT transfer from signer to recipient
func (p *Pipeline) Transfer(ctx context.Context, signer Signer, recipient string, amount uint64, opts Options) (string, error) {
	raw, err := p.builder.BuildTransfer(ctx, signer.Address(), recipient, amount, opts)
	if err != nil {
		return "", fmt.Errorf("failed to build transfer: %w", err)
	}
	return p.SignAndSubmit(ctx, signer, raw)
}
