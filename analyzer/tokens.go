package analyzer

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opendlt/aptos-toolkit/types"
)

// TokenAmount is an integer amount of a token
type TokenAmount struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

// Decimal scales the amount by decimals
func (t TokenAmount) Decimal(decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(t.Amount), -int32(decimals))
}

type fieldPair struct {
	amount string
	token  string
}

var (
	inputPairs = []fieldPair{
		{"amount_in", "from_token"},
		{"amount_x_in", "token_x"},
		{"amount0_in", "token0"},
		{"input_amount", "input_token"},
		{"amount", "coin_type"},
	}
	outputPairs = []fieldPair{
		{"amount_out", "to_token"},
		{"amount_y_out", "token_y"},
		{"amount1_out", "token1"},
		{"output_amount", "output_token"},
		{"amount", "coin_type"},
	}
)

// SpentToken returns the input side of the last swap event of a successful
// transaction
func (a *Analyzer) SpentToken(tx *types.Transaction) (TokenAmount, bool) {
	return lastSwapSide(tx, inputPairs)
}

// ReceivedToken returns the output side of the last swap event of a
// successful transaction
func (a *Analyzer) ReceivedToken(tx *types.Transaction) (TokenAmount, bool) {
	return lastSwapSide(tx, outputPairs)
}

// lastSwapSide scans events newest first. The first field pair with a
// positive amount and a resolvable token wins.
func lastSwapSide(tx *types.Transaction, pairs []fieldPair) (TokenAmount, bool) {
	if !tx.Success {
		return TokenAmount{}, false
	}
	for i := len(tx.Events) - 1; i >= 0; i-- {
		ev := tx.Events[i]
		if !strings.Contains(ev.Type, "Swap") {
			continue
		}
		for _, p := range pairs {
			amount, ok := types.ParseAmount(ev.Data[p.amount])
			if !ok || amount == 0 {
				continue
			}
			token, ok := tokenString(ev.Data[p.token])
			if !ok {
				continue
			}
			return TokenAmount{Token: token, Amount: amount}, true
		}
	}
	return TokenAmount{}, false
}

// tokenString resolves a token that may be nested in wrapper objects. The
// native fungible asset address maps to the native coin type.
func tokenString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == types.NativeCoinAlias {
			return types.AptosCoinType, true
		}
		return t, true
	case map[string]any:
		for _, key := range []string{"inner", "value", "address", "token"} {
			inner, ok := t[key]
			if !ok {
				continue
			}
			if s, ok := tokenString(inner); ok {
				return s, true
			}
		}
	}
	return "", false
}

// SpentDecimal is SpentToken scaled to whole units
func (a *Analyzer) SpentDecimal(tx *types.Transaction) (string, decimal.Decimal, bool) {
	t, ok := a.SpentToken(tx)
	if !ok {
		return "", decimal.Zero, false
	}
	return t.Token, t.Decimal(a.amountDecimals(t)), true
}

// ReceivedDecimal is ReceivedToken scaled to whole units
func (a *Analyzer) ReceivedDecimal(tx *types.Transaction) (string, decimal.Decimal, bool) {
	t, ok := a.ReceivedToken(tx)
	if !ok {
		return "", decimal.Zero, false
	}
	return t.Token, t.Decimal(a.amountDecimals(t)), true
}

// amountDecimals prefers the token tables and falls back to guessing from
// the amount itself
func (a *Analyzer) amountDecimals(t TokenAmount) uint8 {
	if d, ok := a.knownDecimals(t.Token); ok {
		return d
	}
	return GuessDecimals(t.Amount)
}

func (a *Analyzer) knownDecimals(token string) (uint8, bool) {
	if token == types.NativeCoinAlias {
		return 8, true
	}
	for _, p := range a.config.TokenDecimals {
		if strings.Contains(token, p.Marker) {
			return p.Decimals, true
		}
	}
	return 0, false
}

// Decimals returns the decimals of a token, or the configured default
func (a *Analyzer) Decimals(token string) uint8 {
	if d, ok := a.knownDecimals(token); ok {
		return d
	}
	return a.config.DefaultDecimals
}

// GuessDecimals infers decimals from the trailing zeros and magnitude of a
// raw amount
func GuessDecimals(amount uint64) uint8 {
	s := strconv.FormatUint(amount, 10)
	switch {
	case len(s) > 6 && strings.HasSuffix(s, "000000"):
		return 6
	case len(s) > 8 && strings.HasSuffix(s, "00000000"):
		return 8
	case amount > 1_000_000_000_000:
		return 6
	case amount > 10_000_000 && amount < 100_000_000_000:
		return 8
	default:
		return 6
	}
}

// TokenBalance is the net flow of one token through a transaction
type TokenBalance struct {
	Token    string          `json:"token"`
	Spent    uint64          `json:"spent"`
	Received uint64          `json:"received"`
	Decimals uint8           `json:"decimals"`
	Net      decimal.Decimal `json:"net"`
}

// TokenBalances sums every swap leg and fungible asset withdraw or deposit
// per token. Tokens with a zero net flow are omitted.
func (a *Analyzer) TokenBalances(tx *types.Transaction) []TokenBalance {
	spent := make(map[string]uint64)
	received := make(map[string]uint64)

	for _, ev := range tx.Events {
		for _, t := range a.eventLegs(ev, inputPairs[:4], "fungible_asset::Withdraw") {
			spent[t.Token] += t.Amount
		}
		for _, t := range a.eventLegs(ev, outputPairs[:4], "fungible_asset::Deposit") {
			received[t.Token] += t.Amount
		}
	}

	tokens := make(map[string]struct{})
	for t := range spent {
		tokens[t] = struct{}{}
	}
	for t := range received {
		tokens[t] = struct{}{}
	}

	var out []TokenBalance
	for _, token := range sortedKeys(tokens) {
		s, r := spent[token], received[token]
		if s == r {
			continue
		}
		decimals := a.Decimals(token)
		in := decimal.NewFromBigInt(new(big.Int).SetUint64(r), -int32(decimals))
		outflow := decimal.NewFromBigInt(new(big.Int).SetUint64(s), -int32(decimals))
		out = append(out, TokenBalance{
			Token:    token,
			Spent:    s,
			Received: r,
			Decimals: decimals,
			Net:      in.Sub(outflow),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// eventLegs returns every token amount an event moves in one direction
func (a *Analyzer) eventLegs(ev types.Event, pairs []fieldPair, assetEvent string) []TokenAmount {
	var legs []TokenAmount
	if strings.Contains(ev.Type, "Swap") {
		for _, p := range pairs {
			amount, ok := types.ParseAmount(ev.Data[p.amount])
			if !ok {
				continue
			}
			token, ok := tokenString(ev.Data[p.token])
			if !ok {
				continue
			}
			legs = append(legs, TokenAmount{Token: token, Amount: amount})
		}
	}
	if strings.Contains(ev.Type, assetEvent) {
		if amount, ok := types.ParseAmount(ev.Data["amount"]); ok {
			if token, ok := a.eventToken(ev.Type); ok {
				legs = append(legs, TokenAmount{Token: token, Amount: amount})
			}
		}
	}
	return legs
}

func (a *Analyzer) eventToken(eventType string) (string, bool) {
	for _, p := range a.config.EventTokens {
		if strings.Contains(eventType, p.Marker) {
			return p.Token, true
		}
	}
	return "", false
}
