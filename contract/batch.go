package contract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/txn"
	"github.com/opendlt/aptos-toolkit/types"
)

// BatchWrite submits the calls concurrently, bounded by the configured
// concurrency. Results are returned in input order. Items that could not run
// or failed before confirmation carry the error in their result.
func (f *Facade) BatchWrite(ctx context.Context, signer txn.Signer, calls []types.ContractCall) []*types.WriteResult {
	return f.BatchWriteWithLimit(ctx, signer, calls, f.config.Concurrency)
}

// BatchWriteWithLimit is BatchWrite with an explicit concurrency limit
func (f *Facade) BatchWriteWithLimit(ctx context.Context, signer txn.Signer, calls []types.ContractCall, limit int) []*types.WriteResult {
	if limit < 1 {
		limit = 1
	}
	results := make([]*types.WriteResult, len(calls))
	sem := semaphore.NewWeighted(int64(limit))
	done := make(chan struct{}, len(calls))
	started := 0

	for i, call := range calls {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = types.FailedWrite("", fmt.Sprintf("batch item %d not started: %v", i, err))
			continue
		}
		started++
		go func(i int, call types.ContractCall) {
			defer func() {
				sem.Release(1)
				done <- struct{}{}
			}()
			res, err := f.Write(ctx, signer, call)
			if err != nil {
				hash := ""
				if res != nil {
					hash = res.TransactionHash
				}
				results[i] = types.FailedWrite(hash, err.Error())
				return
			}
			results[i] = res
		}(i, call)
	}

	for n := 0; n < started; n++ {
		<-done
	}
	metrics.RecordBatchItems(len(calls))
	return results
}

// SequenceStep is one call of a dependent sequence. When DependsOn names a
// field, the value of that field in the previous result is appended to the
// call arguments.
type SequenceStep struct {
	Call      types.ContractCall
	DependsOn string
}

// ExecuteSequence writes the steps in order. It stops at the first failure and
// the failing result is the last entry.
func (f *Facade) ExecuteSequence(ctx context.Context, signer txn.Signer, steps []SequenceStep) []*types.WriteResult {
	results := make([]*types.WriteResult, 0, len(steps))
	var prev *types.WriteResult

	for i, step := range steps {
		call := step.Call
		if step.DependsOn != "" && prev != nil {
			value, ok := prev.Field(step.DependsOn)
			if !ok {
				results = append(results, types.FailedWrite("", fmt.Sprintf("step %d depends on missing field %s", i, step.DependsOn)))
				break
			}
			call = call.WithArgument(types.Raw(value))
		}

		res, err := f.Write(ctx, signer, call)
		if err != nil {
			hash := ""
			if res != nil {
				hash = res.TransactionHash
			}
			results = append(results, types.FailedWrite(hash, err.Error()))
			break
		}
		results = append(results, res)
		if !res.Success {
			break
		}
		prev = res
	}

	metrics.RecordBatchItems(len(results))
	return results
}

// ConditionalExecute reads predicate and, when the read succeeds, writes
// execute. The bool reports whether the write ran. A failed read means the
// condition is not met and is not an error.
func (f *Facade) ConditionalExecute(ctx context.Context, signer txn.Signer, predicate, execute types.ContractCall) (*types.WriteResult, bool, error) {
	check := f.Read(ctx, predicate)
	if !check.Success {
		f.logger.Debug("Condition %s not met: %s", predicate.Function(), check.ErrorMessage())
		return nil, false, nil
	}
	res, err := f.Write(ctx, signer, execute)
	return res, true, err
}

// AggregateRead runs the reads one after another. It is BatchRead with a
// per-call timeout.
func (f *Facade) AggregateRead(ctx context.Context, calls []types.ContractCall, perCall time.Duration) []*types.ReadResult {
	results := make([]*types.ReadResult, 0, len(calls))
	for _, call := range calls {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if perCall > 0 {
			callCtx, cancel = context.WithTimeout(ctx, perCall)
		}
		results = append(results, f.Read(callCtx, call))
		cancel()
	}
	metrics.RecordBatchItems(len(calls))
	return results
}
