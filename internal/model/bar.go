package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Resolution is the granularity of a bar series. Coarser resolutions compare greater.
type Resolution int

const (
	Minute Resolution = iota + 1
	Hour
	Day
	Week
	Month
)

var resolutionNames = map[Resolution]string{
	Minute: "minute",
	Hour:   "hour",
	Day:    "day",
	Week:   "week",
	Month:  "month",
}

func (r Resolution) String() string {
	if s, ok := resolutionNames[r]; ok {
		return s
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// Valid reports whether r is one of the known resolutions.
func (r Resolution) Valid() bool {
	_, ok := resolutionNames[r]
	return ok
}

// Next returns the adjacent coarser resolution. ok is false for Month and unknown values.
func (r Resolution) Next() (Resolution, bool) {
	if !r.Valid() || r == Month {
		return 0, false
	}
	return r + 1, true
}

// ParseResolution accepts the lower-case names returned by String (and a few short aliases).
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minute", "1m", "m1":
		return Minute, nil
	case "hour", "1h", "h1":
		return Hour, nil
	case "day", "1d", "d1":
		return Day, nil
	case "week", "1w", "w1":
		return Week, nil
	case "month", "1mo", "mn1":
		return Month, nil
	default:
		return 0, fmt.Errorf("unknown resolution %q", s)
	}
}

// Bar is one OHLCV observation for an instrument at a resolution.
// Timestamp is UTC. PriceFormatMask is display-only and carried through untouched.
type Bar struct {
	Resolution      Resolution
	Timestamp       time.Time
	PriceFormatMask string
	Open            decimal.Decimal
	High            decimal.Decimal
	Low             decimal.Decimal
	Close           decimal.Decimal
	Volume          decimal.Decimal
}

// Consistent reports whether high/low bound open and close.
func (b Bar) Consistent() bool {
	return b.High.GreaterThanOrEqual(decimal.Max(b.Open, b.Close)) &&
		b.Low.LessThanOrEqual(decimal.Min(b.Open, b.Close))
}

// Equal compares bars by value; decimals are compared numerically.
func (b Bar) Equal(o Bar) bool {
	return b.Resolution == o.Resolution &&
		b.Timestamp.Equal(o.Timestamp) &&
		b.PriceFormatMask == o.PriceFormatMask &&
		b.Open.Equal(o.Open) &&
		b.High.Equal(o.High) &&
		b.Low.Equal(o.Low) &&
		b.Close.Equal(o.Close) &&
		b.Volume.Equal(o.Volume)
}
