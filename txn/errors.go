package txn

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyHash is returned when a lookup or wait is requested without a hash
var ErrEmptyHash = errors.New("transaction hash cannot be empty")

// TimeoutError reports that a submitted transaction was not observed before the deadline
type TimeoutError struct {
	Hash    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction timeout tx:%s time:%gs", e.Hash, e.Timeout.Seconds())
}

// DomainError reports a transaction that was committed but failed on chain
type DomainError struct {
	Hash     string
	VMStatus string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Hash, e.VMStatus)
}

// IsTimeout reports whether err is a confirmation timeout
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
