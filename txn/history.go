package txn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opendlt/aptos-toolkit/types"
)

// HistorySource lists the transactions sent by an account
type HistorySource interface {
	GetAccountTransactions(ctx context.Context, address string, limit uint64, start *uint64) ([]types.Transaction, error)
}

// InvolvesAddress reports whether a user or pending transaction was sent by
// address or names it in any string argument
func InvolvesAddress(tx *types.Transaction, address string) bool {
	sender, ok := tx.SenderAddress()
	if !ok {
		return false
	}
	if sender == address {
		return true
	}
	if tx.Payload == nil {
		return false
	}
	for _, raw := range tx.Payload.Arguments {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s == address {
			return true
		}
	}
	return false
}

// IsTransferFromTo reports whether tx is a coin transfer from sender whose recipient is recipient
func IsTransferFromTo(tx *types.Transaction, sender, recipient string) bool {
	from, ok := tx.SenderAddress()
	if !ok || from != sender {
		return false
	}
	if !strings.HasSuffix(tx.PayloadFunction(), "::coin::transfer") {
		return false
	}
	if len(tx.Payload.Arguments) == 0 {
		return false
	}
	var to string
	if err := json.Unmarshal(tx.Payload.Arguments[0], &to); err != nil {
		return false
	}
	return to == recipient
}

// TransactionsInvolvingBoth returns the transactions of a that also involve b
func TransactionsInvolvingBoth(ctx context.Context, src HistorySource, a, b string, limit uint64) ([]types.Transaction, error) {
	txs, err := src.GetAccountTransactions(ctx, a, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions of %s: %w", a, err)
	}

	out := make([]types.Transaction, 0)
	for i := range txs {
		if InvolvesAddress(&txs[i], b) {
			out = append(out, txs[i])
		}
	}
	return out, nil
}

// TransactionsFromTo returns the coin transfers sent by sender to recipient
func TransactionsFromTo(ctx context.Context, src HistorySource, recipient, sender string, limit uint64) ([]types.Transaction, error) {
	txs, err := src.GetAccountTransactions(ctx, sender, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions of %s: %w", sender, err)
	}

	out := make([]types.Transaction, 0)
	for i := range txs {
		if IsTransferFromTo(&txs[i], sender, recipient) {
			out = append(out, txs[i])
		}
	}
	return out, nil
}
