package metrics

import (
	"expvar"
	"net/http"
	"time"
)

// Counters exposed via expvar
var (
	RequestsTotal       = expvar.NewInt("aptos_requests_total")
	RequestErrors       = expvar.NewInt("aptos_request_errors_total")
	RequestRetries      = expvar.NewInt("aptos_request_retries_total")
	TxSubmitted         = expvar.NewInt("aptos_tx_submitted_total")
	TxConfirmed         = expvar.NewInt("aptos_tx_confirmed_total")
	TxFailed            = expvar.NewInt("aptos_tx_failed_total")
	TxTimeouts          = expvar.NewInt("aptos_tx_timeouts_total")
	QuotesRequested     = expvar.NewInt("aptos_quotes_total")
	EventsDelivered     = expvar.NewInt("aptos_events_delivered_total")
	EventsDropped       = expvar.NewInt("aptos_events_dropped_total")
	BatchItems          = expvar.NewInt("aptos_batch_items_total")
	ActiveSubscriptions = expvar.NewInt("aptos_active_subscriptions")

	StartTime = expvar.NewString("aptos_start_time")
)

func init() {
	StartTime.Set(time.Now().UTC().Format(time.RFC3339))
}

// RecordRequest records a node API request and whether it failed
func RecordRequest(err error) {
	RequestsTotal.Add(1)
	if err != nil {
		RequestErrors.Add(1)
	}
}

// RecordRetry records a retried request
func RecordRetry() {
	RequestRetries.Add(1)
}

// RecordSubmission records a transaction handed to the node
func RecordSubmission() {
	TxSubmitted.Add(1)
}

// RecordConfirmation records the final outcome of a confirmed transaction
func RecordConfirmation(success bool) {
	if success {
		TxConfirmed.Add(1)
	} else {
		TxFailed.Add(1)
	}
}

// RecordTimeout records a confirmation wait that ran out of time
func RecordTimeout() {
	TxTimeouts.Add(1)
}

// RecordQuote records a venue quote request
func RecordQuote() {
	QuotesRequested.Add(1)
}

// RecordEvents records delivered and dropped broadcast items
func RecordEvents(delivered, dropped int) {
	EventsDelivered.Add(int64(delivered))
	EventsDropped.Add(int64(dropped))
}

// RecordBatchItems records items dispatched by the batch executor
func RecordBatchItems(n int) {
	BatchItems.Add(int64(n))
}

// AddSubscriptions adjusts the live subscription gauge
func AddSubscriptions(delta int) {
	ActiveSubscriptions.Add(int64(delta))
}

// Handler returns the HTTP handler for /debug/vars
func Handler() http.Handler {
	return expvar.Handler()
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	RequestsTotal       int64     `json:"requests_total"`
	RequestErrors       int64     `json:"request_errors_total"`
	RequestRetries      int64     `json:"request_retries_total"`
	TxSubmitted         int64     `json:"tx_submitted_total"`
	TxConfirmed         int64     `json:"tx_confirmed_total"`
	TxFailed            int64     `json:"tx_failed_total"`
	TxTimeouts          int64     `json:"tx_timeouts_total"`
	QuotesRequested     int64     `json:"quotes_total"`
	EventsDelivered     int64     `json:"events_delivered_total"`
	EventsDropped       int64     `json:"events_dropped_total"`
	BatchItems          int64     `json:"batch_items_total"`
	ActiveSubscriptions int64     `json:"active_subscriptions"`
	StartTime           string    `json:"start_time"`
	SnapshotTime        time.Time `json:"snapshot_time"`
}

// GetSnapshot returns a snapshot of current metrics
func GetSnapshot() *Snapshot {
	return &Snapshot{
		RequestsTotal:       RequestsTotal.Value(),
		RequestErrors:       RequestErrors.Value(),
		RequestRetries:      RequestRetries.Value(),
		TxSubmitted:         TxSubmitted.Value(),
		TxConfirmed:         TxConfirmed.Value(),
		TxFailed:            TxFailed.Value(),
		TxTimeouts:          TxTimeouts.Value(),
		QuotesRequested:     QuotesRequested.Value(),
		EventsDelivered:     EventsDelivered.Value(),
		EventsDropped:       EventsDropped.Value(),
		BatchItems:          BatchItems.Value(),
		ActiveSubscriptions: ActiveSubscriptions.Value(),
		StartTime:           StartTime.Value(),
		SnapshotTime:        time.Now().UTC(),
	}
}

// ConfirmationRate returns confirmed / (confirmed + failed + timeouts)
func ConfirmationRate() float64 {
	ok := TxConfirmed.Value()
	total := ok + TxFailed.Value() + TxTimeouts.Value()
	if total == 0 {
		return 0.0
	}
	return float64(ok) / float64(total)
}

// Uptime returns the time since the package was loaded or last reset
func Uptime() time.Duration {
	t, err := time.Parse(time.RFC3339, StartTime.Value())
	if err != nil {
		return 0
	}
	return time.Since(t)
}

// Reset resets all metrics (useful for testing)
func Reset() {
	for _, v := range []*expvar.Int{
		RequestsTotal, RequestErrors, RequestRetries, TxSubmitted, TxConfirmed, TxFailed,
		TxTimeouts, QuotesRequested, EventsDelivered, EventsDropped, BatchItems, ActiveSubscriptions,
	} {
		v.Set(0)
	}
	StartTime.Set(time.Now().UTC().Format(time.RFC3339))
}
