package saver

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"barcopy/internal/model"
)

// Codec persists one bar series per file.
// The file store depends only on this interface; main picks the implementation.
type Codec interface {
	Save(bars []model.Bar, path string) error
	Load(path string) ([]model.Bar, error)
	Extension() string
}

// NewCodec creates implementation by format (csv, parquet, json).
// Returns nil if format not supported.
func NewCodec(format string) Codec {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVCodec{}
	case "parquet":
		return ParquetCodec{}
	case "json":
		return JSONCodec{}
	default:
		return nil
	}
}

// Record is the row shape shared by every codec.
// Prices and volume stay decimal strings so nothing is lost to float rounding.
type Record struct {
	Timestamp  int64  `json:"t" parquet:"t"` // Unix milliseconds, UTC
	Resolution string `json:"r" parquet:"r"`
	Mask       string `json:"m,omitempty" parquet:"m,optional"`
	Open       string `json:"o" parquet:"o"`
	High       string `json:"h" parquet:"h"`
	Low        string `json:"l" parquet:"l"`
	Close      string `json:"c" parquet:"c"`
	Volume     string `json:"v" parquet:"v"`
}

// ToRecord converts model.Bar to Record.
func ToRecord(b model.Bar) Record {
	return Record{
		Timestamp:  b.Timestamp.UnixMilli(),
		Resolution: b.Resolution.String(),
		Mask:       b.PriceFormatMask,
		Open:       b.Open.String(),
		High:       b.High.String(),
		Low:        b.Low.String(),
		Close:      b.Close.String(),
		Volume:     b.Volume.String(),
	}
}

// ToBar converts Record back to model.Bar.
func (r Record) ToBar() (model.Bar, error) {
	res, err := model.ParseResolution(r.Resolution)
	if err != nil {
		return model.Bar{}, err
	}
	var vals [5]decimal.Decimal
	for i, s := range [5]string{r.Open, r.High, r.Low, r.Close, r.Volume} {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return model.Bar{}, fmt.Errorf("record t=%d: %w", r.Timestamp, err)
		}
		vals[i] = v
	}
	return model.Bar{
		Resolution:      res,
		Timestamp:       time.UnixMilli(r.Timestamp).UTC(),
		PriceFormatMask: r.Mask,
		Open:            vals[0],
		High:            vals[1],
		Low:             vals[2],
		Close:           vals[3],
		Volume:          vals[4],
	}, nil
}

func toRecords(bars []model.Bar) []Record {
	out := make([]Record, len(bars))
	for i, b := range bars {
		out[i] = ToRecord(b)
	}
	return out
}

func fromRecords(recs []Record) ([]model.Bar, error) {
	out := make([]model.Bar, 0, len(recs))
	for _, r := range recs {
		b, err := r.ToBar()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
