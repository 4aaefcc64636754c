package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradebot/strategies"
)

// Kind classifies why a run failed.
type Kind int

const (
	// KindConfig means the run could not start with the given settings.
	KindConfig Kind = iota + 1
	// KindData means the bar sequence broke the provider contract.
	KindData
	// KindCanceled means the caller's context ended mid-run.
	KindCanceled
	// KindInternal means a bar could not be processed. The run was aborted.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindData:
		return "data"
	case KindCanceled:
		return "canceled"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure returned by the engine. Index is the bar being
// processed, or -1 when the failure is not tied to a bar.
type Error struct {
	Kind  Kind
	Op    string
	Index int
	Time  time.Time
	Err   error
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("backtest %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("backtest %s (%s) at bar %d %s: %v",
		e.Op, e.Kind, e.Index, e.Time.UTC().Format(time.RFC3339), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func configError(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Index: -1, Err: err}
}

// KindOf returns the kind of a backtest error, or 0 for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsBadInput reports whether err was caused by the caller's configuration
// or data rather than by the engine. Callers map it to a 4xx-style outcome
// and everything else to a 5xx-style one.
func IsBadInput(err error) bool {
	switch KindOf(err) {
	case KindConfig, KindData:
		return true
	}
	var cerr *strategies.ConfigError
	return errors.As(err, &cerr)
}
