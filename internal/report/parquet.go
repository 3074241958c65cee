package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// ParquetResult is an encoded snapshot.
type ParquetResult struct {
	Data        []byte
	RecordCount int64
}

// parquetAppointment is one snapshot row. The mapped fields get their own
// columns; the full record is kept as JSON so no column is lost.
type parquetAppointment struct {
	Row        int64    `parquet:"row"`
	Site       string   `parquet:"site"`
	Date       string   `parquet:"date"`
	Barber     string   `parquet:"barber"`
	Client     string   `parquet:"client"`
	Service    string   `parquet:"service"`
	Price      *float64 `parquet:"price,optional"`
	RecordJSON string   `parquet:"record_json"`
}

// EncodeParquet encodes ds as a Parquet file.
func EncodeParquet(ds *dataset.Dataset, fields dataset.Fields) (ParquetResult, error) {
	rows := make([]parquetAppointment, 0, ds.Len())
	for i, rec := range ds.Records() {
		raw, err := json.Marshal(rec)
		if err != nil {
			return ParquetResult{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		row := parquetAppointment{
			Row:        int64(i),
			Site:       text(rec, fields.Site),
			Date:       text(rec, fields.Date),
			Barber:     text(rec, fields.Barber),
			Client:     text(rec, fields.Client),
			Service:    text(rec, fields.Service),
			RecordJSON: string(raw),
		}
		if f, ok := dataset.AsFloat(rec[fields.Price]); ok {
			row.Price = &f
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[parquetAppointment](&buf)
	if _, err := w.Write(rows); err != nil {
		return ParquetResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return ParquetResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return ParquetResult{Data: buf.Bytes(), RecordCount: int64(len(rows))}, nil
}

func text(rec dataset.Record, column string) string {
	if column == "" {
		return ""
	}
	return dataset.FormatValue(rec[column])
}
