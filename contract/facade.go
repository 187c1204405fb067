package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/txn"
	"github.com/opendlt/aptos-toolkit/types"
)

// ConfirmationTimeoutMessage is the error of a write submitted but not confirmed in time
const ConfirmationTimeoutMessage = "Transaction confirmation timeout"

var (
	// ErrResourceNotFound is returned when a requested resource does not exist
	ErrResourceNotFound = errors.New("resource not found")

	// ErrNotSupported is returned by operations that need a local Move VM
	ErrNotSupported = errors.New("operation not supported without a local VM")
)

// Node is the node client surface the facade needs
type Node interface {
	txn.Node
	events.Source
	View(ctx context.Context, req *types.ViewRequest) ([]json.RawMessage, error)
	GetAccountResource(ctx context.Context, address, resourceType string) (*types.Resource, error)
	GetAccountResources(ctx context.Context, address string) ([]types.Resource, error)
	GetAccountModule(ctx context.Context, address, name string) (*types.Module, error)
}

// Config defines the facade settings
type Config struct {
	Options        txn.Options
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Concurrency    int
	EventInterval  time.Duration
	EventBatchSize uint64
}

// DefaultConfig returns the write defaults: 30s expiry, 2000 gas at price 100,
// 30s confirmation wait polled every 500ms
func DefaultConfig() *Config {
	return &Config{
		Options:        txn.DefaultOptions(),
		ConfirmTimeout: 30 * time.Second,
		PollInterval:   500 * time.Millisecond,
		Concurrency:    4,
		EventInterval:  2 * time.Second,
		EventBatchSize: events.DefaultBatchSize,
	}
}

// Facade is the single entry point for contract reads and writes
type Facade struct {
	node     Node
	pipeline *txn.Pipeline
	config   *Config
	logger   *logz.Logger

	mu        sync.Mutex
	listeners map[*events.Listener]struct{}
}

// New creates a facade over a node
func New(node Node, config *Config) (*Facade, error) {
	if node == nil {
		return nil, fmt.Errorf("node cannot be nil")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.EventBatchSize == 0 {
		config.EventBatchSize = events.DefaultBatchSize
	}

	pipeline, err := txn.NewPipeline(node, &txn.Config{
		PollInterval:   config.PollInterval,
		ConfirmTimeout: config.ConfirmTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction pipeline: %w", err)
	}

	return &Facade{
		node:      node,
		pipeline:  pipeline,
		config:    config,
		logger:    logz.New(logz.INFO, "contract"),
		listeners: make(map[*events.Listener]struct{}),
	}, nil
}

// SetLogger replaces the facade logger
func (f *Facade) SetLogger(logger *logz.Logger) {
	if logger != nil {
		f.logger = logger
		f.pipeline.SetLogger(logger.WithPrefix("txn"))
	}
}

// Pipeline returns the transaction pipeline used for writes
func (f *Facade) Pipeline() *txn.Pipeline {
	return f.pipeline
}

// Node returns the underlying node client
func (f *Facade) Node() Node {
	return f.node
}

// Read calls a view function. Failures are reported in the result.
func (f *Facade) Read(ctx context.Context, call types.ContractCall) *types.ReadResult {
	if err := call.Validate(); err != nil {
		return &types.ReadResult{Success: false, Error: types.StringPtr(err.Error())}
	}

	values, err := f.node.View(ctx, &types.ViewRequest{
		Function:      call.Function(),
		TypeArguments: call.TypeArguments,
		Arguments:     call.Arguments,
	})
	if err != nil {
		return &types.ReadResult{Success: false, Error: types.StringPtr(err.Error())}
	}

	data, err := json.Marshal(values)
	if err != nil {
		return &types.ReadResult{Success: false, Error: types.StringPtr(err.Error())}
	}
	return &types.ReadResult{Success: true, Data: data}
}

// Write submits call with the default options and waits for confirmation
func (f *Facade) Write(ctx context.Context, signer txn.Signer, call types.ContractCall) (*types.WriteResult, error) {
	return f.WriteWithOptions(ctx, signer, call, f.config.Options, f.config.ConfirmTimeout)
}

// WriteWithOptions submits call and waits up to timeout for confirmation.
// Validation, build and submission failures are returned as errors. A timed
// out confirmation or an on-chain failure is reported in the result.
func (f *Facade) WriteWithOptions(ctx context.Context, signer txn.Signer, call types.ContractCall, opts txn.Options, timeout time.Duration) (*types.WriteResult, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if err := call.Validate(); err != nil {
		return nil, err
	}

	payload := types.NewEntryFunctionPayload(call.Function(), call.TypeArguments, call.Arguments)
	raw, err := f.pipeline.Builder().BuildEntryFunction(ctx, signer.Address(), payload, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction for %s: %w", call.Function(), err)
	}

	hash, err := f.pipeline.SignAndSubmit(ctx, signer, raw)
	if err != nil {
		return nil, err
	}

	tx, err := f.pipeline.WaitForTransaction(ctx, hash, timeout)
	if err != nil {
		if txn.IsTimeout(err) {
			f.logger.Warn("Transaction %s not confirmed within %v", hash, timeout)
			return types.FailedWrite(hash, ConfirmationTimeoutMessage), nil
		}
		return types.FailedWrite(hash, err.Error()), err
	}

	return writeResult(hash, tx), nil
}

func writeResult(hash string, tx *types.Transaction) *types.WriteResult {
	result := &types.WriteResult{
		Success:         tx.Success,
		TransactionHash: hash,
		GasUsed:         tx.GasUsed,
		Events:          make([]types.ContractEvent, 0, len(tx.Events)),
	}
	for _, ev := range tx.Events {
		result.Events = append(result.Events, types.ContractEvent{
			Type:           ev.Type,
			Data:           ev.Data,
			SequenceNumber: ev.SequenceNumber,
		})
	}
	if !tx.Success {
		result.Error = types.StringPtr(tx.VMStatus)
	}
	return result
}

// BatchRead runs the reads one after another. Every call gets a result.
func (f *Facade) BatchRead(ctx context.Context, calls []types.ContractCall) []*types.ReadResult {
	results := make([]*types.ReadResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, f.Read(ctx, call))
	}
	return results
}

// BatchGetResources fetches resource types of one account in parallel. Missing
// or failed resources map to nil.
func (f *Facade) BatchGetResources(ctx context.Context, address string, resourceTypes []string) map[string]json.RawMessage {
	var mu sync.Mutex
	out := make(map[string]json.RawMessage, len(resourceTypes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.Concurrency)
	for _, resourceType := range resourceTypes {
		resourceType := resourceType
		g.Go(func() error {
			data, err := f.GetResource(gctx, address, resourceType)
			if err != nil {
				if !errors.Is(err, ErrResourceNotFound) {
					f.logger.Warn("Failed to get %s of %s: %v", resourceType, address, err)
				}
				data = nil
			}
			mu.Lock()
			out[resourceType] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// BatchGetResourcesMulti fetches resource types across many accounts. Accounts
// whose fetch fails entirely are logged and left out.
func (f *Facade) BatchGetResourcesMulti(ctx context.Context, addresses []string, resourceTypes []string) map[string]map[string]json.RawMessage {
	out := make(map[string]map[string]json.RawMessage, len(addresses))
	for _, address := range addresses {
		if ctx.Err() != nil {
			f.logger.Warn("Stopped fetching resources: %v", ctx.Err())
			break
		}
		out[address] = f.BatchGetResources(ctx, address, resourceTypes)
	}
	return out
}

// GetStateSnapshot returns the listed resources of an account in one call.
// Per-resource failures become nil and are logged.
func (f *Facade) GetStateSnapshot(ctx context.Context, address string, resourceTypes []string) map[string]json.RawMessage {
	snapshot := make(map[string]json.RawMessage, len(resourceTypes))
	for _, resourceType := range resourceTypes {
		data, err := f.GetResource(ctx, address, resourceType)
		if err != nil {
			f.logger.Warn("Snapshot of %s missing %s: %v", address, resourceType, err)
			snapshot[resourceType] = nil
			continue
		}
		snapshot[resourceType] = data
	}
	return snapshot
}

// GetResource returns the data of a resource or ErrResourceNotFound
func (f *Facade) GetResource(ctx context.Context, address, resourceType string) (json.RawMessage, error) {
	res, err := f.node.GetAccountResource(ctx, address, resourceType)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrResourceNotFound, resourceType, address)
	}
	return res.Data, nil
}

// GetResources lists every resource stored under an account
func (f *Facade) GetResources(ctx context.Context, address string) ([]types.Resource, error) {
	resources, err := f.node.GetAccountResources(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources of %s: %w", address, err)
	}
	return resources, nil
}

// SimulationResult is the outcome of a simulated write
type SimulationResult struct {
	Success     bool   `json:"success"`
	GasEstimate uint64 `json:"gas_estimate"`
	VMStatus    string `json:"vm_status"`
}

// Simulate validates and builds the transaction without submitting it and
// reports the configured gas ceiling as the estimate
func (f *Facade) Simulate(ctx context.Context, signer txn.Signer, call types.ContractCall) (*SimulationResult, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if err := call.Validate(); err != nil {
		return nil, err
	}

	payload := types.NewEntryFunctionPayload(call.Function(), call.TypeArguments, call.Arguments)
	raw, err := f.pipeline.Builder().BuildEntryFunction(ctx, signer.Address(), payload, f.config.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction for %s: %w", call.Function(), err)
	}
	if _, err := f.pipeline.Sign(signer, raw); err != nil {
		return nil, err
	}

	return &SimulationResult{
		Success:     true,
		GasEstimate: raw.MaxGasAmount.Uint64(),
		VMStatus:    "Executed successfully",
	}, nil
}

// GetModuleABI returns the ABI of a published module
func (f *Facade) GetModuleABI(ctx context.Context, address, module string) (json.RawMessage, error) {
	m, err := f.node.GetAccountModule(ctx, address, module)
	if err != nil {
		return nil, fmt.Errorf("failed to get module %s::%s: %w", address, module, err)
	}
	if m == nil {
		return nil, fmt.Errorf("module %s::%s not found", address, module)
	}
	return m.ABI, nil
}

// DeployModule is not supported
func (f *Facade) DeployModule(ctx context.Context, signer txn.Signer, bytecode []byte) (*types.WriteResult, error) {
	return nil, ErrNotSupported
}

// UpgradeModule is not supported
func (f *Facade) UpgradeModule(ctx context.Context, signer txn.Signer, bytecode []byte) (*types.WriteResult, error) {
	return nil, ErrNotSupported
}

// DataHandler receives the data of each new event, or a poll error
type DataHandler func(data map[string]any, err error)

// RecordHandler receives each new event, or a poll error
type RecordHandler func(ev *types.Event, err error)

// ListenEvents polls an event stream every interval and hands the data of each
// new event to handler. It blocks until ctx is cancelled or StopListeners is called.
func (f *Facade) ListenEvents(ctx context.Context, address, handle string, interval time.Duration, handler DataHandler) error {
	return f.ListenEventRecords(ctx, address, handle, interval, func(ev *types.Event, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(ev.Data, nil)
	})
}

// ListenEventRecords is ListenEvents delivering the full event record
func (f *Facade) ListenEventRecords(ctx context.Context, address, handle string, interval time.Duration, handler RecordHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if interval <= 0 {
		interval = f.config.EventInterval
	}

	l, err := events.NewListener(f.node, &events.Config{
		Address:   address,
		Handle:    handle,
		Interval:  interval,
		BatchSize: f.config.EventBatchSize,
	})
	if err != nil {
		return err
	}
	l.SetLogger(f.logger.WithPrefix("events"))

	f.mu.Lock()
	f.listeners[l] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.listeners, l)
		f.mu.Unlock()
	}()

	return l.Run(ctx,
		func(ev types.Event) { handler(&ev, nil) },
		func(err error) { handler(nil, err) },
	)
}

// StopListeners stops every running event listener started by the facade
func (f *Facade) StopListeners() {
	f.mu.Lock()
	running := make([]*events.Listener, 0, len(f.listeners))
	for l := range f.listeners {
		running = append(running, l)
	}
	f.mu.Unlock()

	for _, l := range running {
		l.Stop()
	}
}

// RetryFailedCall writes call up to attempts times, sleeping delay between attempts
func (f *Facade) RetryFailedCall(ctx context.Context, signer txn.Signer, call types.ContractCall, attempts int, delay time.Duration) (*types.WriteResult, error) {
	return txn.RetryFailedCall(ctx, attempts, delay, func(ctx context.Context) (*types.WriteResult, error) {
		return f.Write(ctx, signer, call)
	})
}
