package saver

import (
	"github.com/parquet-go/parquet-go"

	"barcopy/internal/model"
)

// ParquetCodec stores bars as Parquet.
type ParquetCodec struct{}

func (ParquetCodec) Extension() string { return "parquet" }

func (ParquetCodec) Save(bars []model.Bar, path string) error {
	return parquet.WriteFile(path, toRecords(bars))
}

func (ParquetCodec) Load(path string) ([]model.Bar, error) {
	recs, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, err
	}
	return fromRecords(recs)
}
