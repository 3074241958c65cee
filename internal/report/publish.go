package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/kingdombarber/insight/internal/storage"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// Object names within a published report.
const (
	ReportObject = "report.md"
	DataObject   = "data.parquet"
)

// Published lists the objects written for one report.
type Published struct {
	ID     string             `json:"id"`
	Report storage.ObjectInfo `json:"report"`
	Data   storage.ObjectInfo `json:"data"`
}

// Publisher uploads reports to an object store.
type Publisher struct {
	store  storage.ObjectStore
	fields dataset.Fields
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(store storage.ObjectStore, fields dataset.Fields, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{store: store, fields: fields, logger: logger}
}

// Publish stores the rendered report and a Parquet snapshot of ds under
// reports/<id>/.
func (p *Publisher) Publish(ctx context.Context, id string, doc []byte, ds *dataset.Dataset) (*Published, error) {
	reportKey, err := storage.ReportKey(id, ReportObject)
	if err != nil {
		return nil, err
	}
	dataKey, err := storage.ReportKey(id, DataObject)
	if err != nil {
		return nil, err
	}

	snapshot, err := EncodeParquet(ds, p.fields)
	if err != nil {
		return nil, err
	}

	out := &Published{ID: id}
	out.Report, err = p.store.Put(ctx, reportKey, bytes.NewReader(doc), int64(len(doc)), storage.PutOptions{ContentType: "text/markdown; charset=utf-8"})
	if err != nil {
		return nil, fmt.Errorf("publish report: %w", err)
	}
	out.Data, err = p.store.Put(ctx, dataKey, bytes.NewReader(snapshot.Data), int64(len(snapshot.Data)), storage.PutOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		return nil, fmt.Errorf("publish report data: %w", err)
	}
	p.logger.Info("report published", "id", id, "rows", snapshot.RecordCount, "report_key", out.Report.Key, "data_key", out.Data.Key)
	return out, nil
}
