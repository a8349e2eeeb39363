package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/storage"
)

// BatchLister lists an organization's available batches
type BatchLister interface {
	ListAvailable(ctx context.Context, organizationID string) ([]*repository.BatchWithMedicine, error)
}

// Exporter writes batch reports to object storage
type Exporter struct {
	batches BatchLister
	store   storage.ObjectStorage
	clock   clock.Clock
	logger  *logger.Logger
}

// NewExporter creates a new exporter
func NewExporter(batches BatchLister, store storage.ObjectStorage, c clock.Clock, log *logger.Logger) *Exporter {
	return &Exporter{
		batches: batches,
		store:   store,
		clock:   c,
		logger:  log.WithComponent("exporter"),
	}
}

var batchCSVHeader = []string{
	"batch_number", "medicine", "strength", "manufacturer", "quantity",
	"unit_price", "expiry_date", "location", "below_minimum",
}

// ExportBatches uploads the organization's batch list as CSV and returns the object key
func (e *Exporter) ExportBatches(ctx context.Context, organizationID string) (string, error) {
	batches, err := e.batches.ListAvailable(ctx, organizationID)
	if err != nil {
		return "", fmt.Errorf("list batches: %w", err)
	}

	data, err := encodeBatchesCSV(batches)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s/batches-%s.csv", organizationID, e.clock.Now().UTC().Format(time.DateOnly))
	if err := e.store.UploadObject(ctx, key, "text/csv", data); err != nil {
		return "", err
	}

	e.logger.Info().
		Str("organization_id", organizationID).
		Str("key", key).
		Int("rows", len(batches)).
		Msg("batch export uploaded")

	return key, nil
}

func encodeBatchesCSV(batches []*repository.BatchWithMedicine) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(batchCSVHeader); err != nil {
		return nil, err
	}
	for _, b := range batches {
		record := []string{
			b.BatchNumber,
			b.MedicineName,
			deref(b.Strength),
			deref(b.Manufacturer),
			strconv.Itoa(b.Quantity),
			b.UnitPrice.StringFixed(2),
			b.ExpiryDate.Format(time.DateOnly),
			deref(b.Location),
			strconv.FormatBool(b.Quantity < b.MinimumStockLevel),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
