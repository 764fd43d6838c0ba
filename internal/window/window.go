package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExchangeNotFound means the instrument's primary exchange (or its zone) could not be resolved.
var ErrExchangeNotFound = errors.New("exchange not found")

// ErrInvalidRange is returned when from is after to.
var ErrInvalidRange = errors.New("window: from is after to")

// TZMode says which zone the caller's filter bounds are written in.
type TZMode int

const (
	UTC TZMode = iota
	Exchange
	Local
)

func (m TZMode) String() string {
	switch m {
	case UTC:
		return "utc"
	case Exchange:
		return "exchange"
	case Local:
		return "local"
	default:
		return fmt.Sprintf("tzmode(%d)", int(m))
	}
}

// ParseTZMode parses "utc", "exchange" or "local" (case-insensitive).
func ParseTZMode(s string) (TZMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utc":
		return UTC, nil
	case "exchange":
		return Exchange, nil
	case "local", "machine":
		return Local, nil
	default:
		return UTC, fmt.Errorf("unknown time zone mode %q (use: utc, exchange, local)", s)
	}
}

// UnmarshalText lets env/yaml decoders fill a TZMode directly.
func (m *TZMode) UnmarshalText(b []byte) error {
	v, err := ParseTZMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ToUTCWindow reads the wall clock of from/to in the zone selected by mode and returns the
// same instants in UTC. Exchange mode needs exchangeTZ.
func ToUTCWindow(from, to time.Time, mode TZMode, exchangeTZ *time.Location) (time.Time, time.Time, error) {
	var loc *time.Location
	switch mode {
	case UTC:
		return from.UTC(), to.UTC(), nil
	case Local:
		loc = time.Local
	case Exchange:
		if exchangeTZ == nil {
			return time.Time{}, time.Time{}, ErrExchangeNotFound
		}
		loc = exchangeTZ
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("window: unsupported time zone mode %d", int(mode))
	}
	return inZone(from, loc).UTC(), inZone(to, loc).UTC(), nil
}

func inZone(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// ValidateRange rejects inverted windows.
func ValidateRange(from, to time.Time) error {
	if from.After(to) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return nil
}

// ExchangeLookup resolves the time zone of an instrument's primary exchange.
type ExchangeLookup interface {
	Resolve(ctx context.Context, instrumentID string) (*time.Location, error)
}

// Converter turns a run's filter bounds into a per-instrument UTC window.
type Converter struct {
	Lookup ExchangeLookup
}

// NewConverter creates a Converter. lookup may be nil when Exchange mode is never used.
func NewConverter(lookup ExchangeLookup) *Converter {
	return &Converter{Lookup: lookup}
}

// Window converts [from, to] for one instrument.
func (c *Converter) Window(ctx context.Context, instrumentID string, from, to time.Time, mode TZMode) (time.Time, time.Time, error) {
	if mode != Exchange {
		return ToUTCWindow(from, to, mode, nil)
	}
	if c == nil || c.Lookup == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: no exchange lookup configured for %s", ErrExchangeNotFound, instrumentID)
	}
	loc, err := c.Lookup.Resolve(ctx, instrumentID)
	if err != nil {
		if errors.Is(err, ErrExchangeNotFound) {
			return time.Time{}, time.Time{}, err
		}
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s: %v", ErrExchangeNotFound, instrumentID, err)
	}
	return ToUTCWindow(from, to, Exchange, loc)
}
