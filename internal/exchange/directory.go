package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"barcopy/internal/window"
)

// File is the on-disk layout of the exchange metadata file.
//
//	exchanges:
//	  NYSE: America/New_York
//	instruments:
//	  IBM: NYSE
//	default_exchange: NYSE
type File struct {
	Exchanges       map[string]string `yaml:"exchanges"`
	Instruments     map[string]string `yaml:"instruments"`
	DefaultExchange string            `yaml:"default_exchange"`
}

// Directory resolves an instrument to the zone of its primary exchange.
// It is read-only after construction and safe for concurrent use.
type Directory struct {
	zones       map[string]*time.Location
	instruments map[string]string
	fallback    string
}

// LoadFile reads and validates a YAML metadata file.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exchange file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse exchange file %s: %w", path, err)
	}
	d, err := New(f)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded exchange metadata", "path", path, "exchanges", len(d.zones), "instruments", len(d.instruments))
	return d, nil
}

// New builds a Directory, loading every zone once.
func New(f File) (*Directory, error) {
	d := &Directory{
		zones:       make(map[string]*time.Location, len(f.Exchanges)),
		instruments: make(map[string]string, len(f.Instruments)),
		fallback:    normalize(f.DefaultExchange),
	}
	for name, tz := range f.Exchanges {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: load zone %q: %w", name, tz, err)
		}
		d.zones[normalize(name)] = loc
	}
	for inst, ex := range f.Instruments {
		d.instruments[normalize(inst)] = normalize(ex)
	}
	if d.fallback != "" {
		if _, ok := d.zones[d.fallback]; !ok {
			return nil, fmt.Errorf("default exchange %s has no zone", d.fallback)
		}
	}
	return d, nil
}

// Resolve implements window.ExchangeLookup.
func (d *Directory) Resolve(_ context.Context, instrumentID string) (*time.Location, error) {
	ex, ok := d.instruments[normalize(instrumentID)]
	if !ok {
		ex = d.fallback
	}
	if ex == "" {
		return nil, fmt.Errorf("%w: no primary exchange for %s", window.ErrExchangeNotFound, instrumentID)
	}
	loc, ok := d.zones[ex]
	if !ok {
		return nil, fmt.Errorf("%w: exchange %s of %s has no zone", window.ErrExchangeNotFound, ex, instrumentID)
	}
	return loc, nil
}

func normalize(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
