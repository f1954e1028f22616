// Package feed provides the upstream tick source: the fetch contract, the
// Dukascopy bi5 client, the failure taxonomy the pipeline recovers from, and
// the tick sanitizer.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// RawTick is one unvalidated quote as returned by the upstream provider.
// Timestamp is seconds since the Unix epoch.
type RawTick struct {
	Timestamp float64
	Bid       float64
	Ask       float64
	BidVolume float64
	AskVolume float64
}

// Fetcher retrieves raw ticks for a symbol within [from, to].
//
// Implementations signal an undecodable or oversized upstream batch with a
// *BatchError so callers can re-split the window; any other error is either
// transient-network (see IsNetworkError) or fatal.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, from, to time.Time) ([]RawTick, error)
}

// BatchError marks an upstream batch that could not be decoded or exceeded
// the size limit. The adaptive executor reacts by re-fetching the window at
// finer granularity.
type BatchError struct {
	Symbol string
	Hour   time.Time
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("malformed batch for %s at %s: %v",
		e.Symbol, e.Hour.UTC().Format("2006-01-02T15:04Z"), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsBatchError reports whether err carries the malformed/oversized-batch
// signature.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsNetworkError classifies transient infrastructure failures: refused or
// reset connections, DNS failures, and timeouts. These are retried once by
// the execution queue; everything else aborts the run.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
