package saver

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"barcopy/internal/model"
)

var csvHeader = []string{"t", "r", "m", "o", "h", "l", "c", "v"}

// CSVCodec stores bars as CSV (header: t,r,m,o,h,l,c,v).
type CSVCodec struct{}

func (CSVCodec) Extension() string { return "csv" }

func (CSVCodec) Save(bars []model.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		r := ToRecord(b)
		if err := w.Write([]string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Resolution,
			r.Mask,
			r.Open,
			r.High,
			r.Low,
			r.Close,
			r.Volume,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (CSVCodec) Load(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	recs := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv %s line %d: %w", path, i+2, err)
		}
		recs = append(recs, Record{
			Timestamp:  ts,
			Resolution: row[1],
			Mask:       row[2],
			Open:       row[3],
			High:       row[4],
			Low:        row[5],
			Close:      row[6],
			Volume:     row[7],
		})
	}
	return fromRecords(recs)
}
