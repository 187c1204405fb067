package contract

import (
	"github.com/opendlt/aptos-toolkit/types"
)

// Summary counts the outcomes of a batch
type Summary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// AnalyzeResults summarizes write results. Nil entries count as failures.
func AnalyzeResults(results []*types.WriteResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r != nil && r.Success {
			s.Success++
		}
	}
	s.Failed = s.Total - s.Success
	return s
}

// FilterSuccessful returns the successful write results
func FilterSuccessful(results []*types.WriteResult) []*types.WriteResult {
	out := make([]*types.WriteResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Success {
			out = append(out, r)
		}
	}
	return out
}

// TransactionHashes returns the hashes of the successful writes
func TransactionHashes(results []*types.WriteResult) []string {
	hashes := make([]string, 0, len(results))
	for _, r := range FilterSuccessful(results) {
		if r.TransactionHash != "" {
			hashes = append(hashes, r.TransactionHash)
		}
	}
	return hashes
}

// AppendCommonArgs returns copies of calls with common appended to each argument list
func AppendCommonArgs(calls []types.ContractCall, common ...types.Arg) []types.ContractCall {
	out := make([]types.ContractCall, 0, len(calls))
	for _, call := range calls {
		for _, arg := range common {
			call = call.WithArgument(arg)
		}
		out = append(out, call)
	}
	return out
}
