package feed

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ulikunitz/xz/lzma"

	"tickvault/internal/util"
)

const (
	// bi5 records are 20 bytes: ms offset, ask, bid (uint32), ask/bid
	// volume (float32), all big-endian.
	bi5RecordSize = 20

	// maxBatchBytes caps the decompressed size of one hour file. Anything
	// larger is treated as an oversized batch.
	maxBatchBytes = 32 << 20
)

// cryptoSymbols are priced in tenths on the datafeed, unlike forex pairs.
var cryptoSymbols = map[string]bool{
	"BTCUSD": true, "ETHUSD": true, "LTCUSD": true, "XRPUSD": true,
	"BCHUSD": true, "BTCEUR": true, "ETHEUR": true,
}

// Dukascopy fetches tick data from the Dukascopy datafeed, which serves one
// LZMA-compressed bi5 file per symbol-hour. A missing hour (HTTP 404) is an
// empty result, not an error.
type Dukascopy struct {
	baseURL string
	httpc   *http.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

var _ Fetcher = (*Dukascopy)(nil)

// NewDukascopy creates a client for the given datafeed base URL. ratePerMin
// bounds outbound requests; zero disables rate limiting.
func NewDukascopy(baseURL string, timeout time.Duration, ratePerMin int) *Dukascopy {
	d := &Dukascopy{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     slog.Default().With("component", "dukascopy"),
	}
	if ratePerMin > 0 {
		// A multi-hour window issues one request per hour file; a small
		// burst lets those go out back to back within the per-minute budget.
		d.limiter = util.NewBurstRateLimiter(ratePerMin, 4)
	}
	return d
}

// Fetch downloads and decodes every hour file overlapping [from, to]. Ticks
// outside the window are returned as-is; window filtering belongs to the
// sanitizer.
func (d *Dukascopy) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]RawTick, error) {
	from = from.UTC()
	to = to.UTC()
	symbol = strings.ToUpper(symbol)

	var ticks []RawTick
	hour := from.Truncate(time.Hour)
	for !hour.After(to) {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		body, err := d.downloadHour(ctx, symbol, hour)
		if err != nil {
			return nil, err
		}
		if body != nil {
			hourTicks, err := decodeBi5(body, symbol, hour)
			if err != nil {
				return nil, err
			}
			ticks = append(ticks, hourTicks...)
		}
		hour = hour.Add(time.Hour)
	}
	return ticks, nil
}

// downloadHour fetches one bi5 file. The datafeed uses zero-indexed months
// in its URL scheme. Returns nil with no error on 404.
func (d *Dukascopy) downloadHour(ctx context.Context, symbol string, hour time.Time) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%04d/%02d/%02d/%02dh_ticks.bi5",
		d.baseURL, symbol, hour.Year(), int(hour.Month())-1, hour.Day(), hour.Hour())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		d.log.Debug("no data for hour", "symbol", symbol, "hour", hour)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datafeed %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// decodeBi5 decompresses and parses one hour file into raw ticks. Decode
// failures, misaligned record data, and oversized payloads all carry the
// BatchError signature.
func decodeBi5(compressed []byte, symbol string, hourBase time.Time) ([]RawTick, error) {
	if len(compressed) == 0 {
		return nil, nil
	}

	r, err := lzma.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &BatchError{Symbol: symbol, Hour: hourBase, Err: err}
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxBatchBytes+1))
	if err != nil {
		return nil, &BatchError{Symbol: symbol, Hour: hourBase, Err: err}
	}
	if len(raw) > maxBatchBytes {
		return nil, &BatchError{Symbol: symbol, Hour: hourBase, Err: fmt.Errorf("batch exceeds %d bytes", maxBatchBytes)}
	}
	if len(raw)%bi5RecordSize != 0 {
		return nil, &BatchError{Symbol: symbol, Hour: hourBase,
			Err: fmt.Errorf("payload length %d not a multiple of record size", len(raw))}
	}

	scale := priceScale(symbol)
	base := float64(hourBase.Unix())
	ticks := make([]RawTick, 0, len(raw)/bi5RecordSize)
	for i := 0; i < len(raw); i += bi5RecordSize {
		rec := raw[i : i+bi5RecordSize]
		offsetMs := binary.BigEndian.Uint32(rec[0:4])
		askRaw := binary.BigEndian.Uint32(rec[4:8])
		bidRaw := binary.BigEndian.Uint32(rec[8:12])
		askVol := math.Float32frombits(binary.BigEndian.Uint32(rec[12:16]))
		bidVol := math.Float32frombits(binary.BigEndian.Uint32(rec[16:20]))

		ticks = append(ticks, RawTick{
			Timestamp: base + float64(offsetMs)/1000,
			Bid:       float64(bidRaw) / scale,
			Ask:       float64(askRaw) / scale,
			BidVolume: float64(bidVol) * 1_000_000,
			AskVolume: float64(askVol) * 1_000_000,
		})
	}
	return ticks, nil
}

// priceScale returns the integer-to-price divisor for a symbol: JPY pairs
// use 3 decimal places, crypto pairs tenths, everything else 5 places.
func priceScale(symbol string) float64 {
	switch {
	case cryptoSymbols[symbol]:
		return 10
	case strings.Contains(symbol, "JPY"):
		return 1_000
	default:
		return 100_000
	}
}
