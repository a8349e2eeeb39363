package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// Monday 2026-03-02 10:30 UTC
var testNow = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeBatches is an in-memory batch store
type fakeBatches struct {
	mu      sync.Mutex
	batches []*repository.BatchWithMedicine
	changes []*repository.QuantityChange
	failOrg string
}

func (f *fakeBatches) add(org, medID, medName string, qty, minStock, reorder int, expiry time.Time) *repository.BatchWithMedicine {
	b := &repository.BatchWithMedicine{
		Batch: repository.Batch{
			ID:             uuid.New().String(),
			OrganizationID: org,
			MedicineID:     medID,
			BatchNumber:    fmt.Sprintf("B-%03d", len(f.batches)+1),
			Quantity:       qty,
			ExpiryDate:     expiry,
			IsAvailable:    true,
		},
		MedicineName:      medName,
		MinimumStockLevel: minStock,
		ReorderQuantity:   reorder,
	}
	f.batches = append(f.batches, b)
	return b
}

func (f *fakeBatches) check(org string) error {
	if f.failOrg != "" && org == f.failOrg {
		return fmt.Errorf("store unavailable")
	}
	return nil
}

func (f *fakeBatches) ListAvailable(_ context.Context, org string) ([]*repository.BatchWithMedicine, error) {
	if err := f.check(org); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*repository.BatchWithMedicine{}
	for _, b := range f.batches {
		if b.OrganizationID == org && b.IsAvailable {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (f *fakeBatches) ListExpiringBetween(ctx context.Context, org string, after, until time.Time) ([]*repository.BatchWithMedicine, error) {
	all, err := f.ListAvailable(ctx, org)
	if err != nil {
		return nil, err
	}
	out := []*repository.BatchWithMedicine{}
	for _, b := range all {
		if b.ExpiryDate.After(after) && !b.ExpiryDate.After(until) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBatches) Create(_ context.Context, b *repository.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	f.batches = append(f.batches, &repository.BatchWithMedicine{Batch: *b})
	return nil
}

func (f *fakeBatches) GetByID(_ context.Context, org, id string) (*repository.BatchWithMedicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.ID == id && b.OrganizationID == org {
			return b, nil
		}
	}
	return nil, errors.NotFound("batch")
}

func (f *fakeBatches) UpdateQuantity(_ context.Context, org, id string, qty int, txType string, reason, by *string) (*repository.QuantityChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.ID == id && b.OrganizationID == org {
			change := &repository.QuantityChange{
				ID:              uuid.New().String(),
				BatchID:         id,
				MedicineID:      b.MedicineID,
				TransactionType: txType,
				PreviousQty:     b.Quantity,
				NewQty:          qty,
				QuantityChange:  qty - b.Quantity,
				Reason:          reason,
				PerformedBy:     by,
				CreatedAt:       testNow,
			}
			b.Quantity = qty
			f.changes = append(f.changes, change)
			return change, nil
		}
	}
	return nil, errors.NotFound("batch")
}

func (f *fakeBatches) CountByOrganization(_ context.Context, org string) (int64, error) {
	if err := f.check(org); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.batches {
		if b.OrganizationID == org {
			n++
		}
	}
	return n, nil
}

func (f *fakeBatches) CountBelowMinimum(ctx context.Context, org string) (int64, error) {
	all, err := f.ListAvailable(ctx, org)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, b := range all {
		if b.Quantity < b.MinimumStockLevel {
			n++
		}
	}
	return n, nil
}

func (f *fakeBatches) ListOrganizations(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, b := range f.batches {
		if !seen[b.OrganizationID] {
			seen[b.OrganizationID] = true
			out = append(out, b.OrganizationID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// fakeInsights enforces one open insight per (organization, type, medicine)
type fakeInsights struct {
	mu        sync.Mutex
	rows      []*repository.Insight
	err       error
	lastLimit int
}

func (f *fakeInsights) CreateIfAbsent(_ context.Context, in *repository.Insight) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if !r.IsActioned && r.OrganizationID == in.OrganizationID && r.InsightType == in.InsightType &&
			*r.RelatedMedicineID == *in.RelatedMedicineID {
			return false, nil
		}
	}
	in.ID = uuid.New().String()
	in.CreatedAt = testNow
	stored := *in
	f.rows = append(f.rows, &stored)
	return true, nil
}

func (f *fakeInsights) ListActive(_ context.Context, org string, limit int) ([]*repository.Insight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	out := []*repository.Insight{}
	for _, r := range f.rows {
		if r.OrganizationID == org && !r.IsActioned {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeInsights) MarkActioned(_ context.Context, org, id, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.OrganizationID == org {
			if r.IsActioned {
				return errors.Conflict("insight has already been actioned")
			}
			r.IsActioned = true
			r.ActionedAt = &at
			r.ActionedBy = &userID
			return nil
		}
	}
	return errors.NotFound("insight")
}

func (f *fakeInsights) open(org string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.OrganizationID == org && !r.IsActioned {
			n++
		}
	}
	return n
}

// fakeAlerts enforces one open alert per (batch, type)
type fakeAlerts struct {
	mu       sync.Mutex
	rows     []*repository.StockAlert
	batchOrg map[string]string
	err      error
}

func newFakeAlerts(batches *fakeBatches) *fakeAlerts {
	f := &fakeAlerts{batchOrg: map[string]string{}}
	for _, b := range batches.batches {
		f.batchOrg[b.ID] = b.OrganizationID
	}
	return f
}

func (f *fakeAlerts) CreateIfAbsent(_ context.Context, a *repository.StockAlert) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if !r.IsResolved && r.BatchID == a.BatchID && r.AlertType == a.AlertType {
			return false, nil
		}
	}
	a.ID = uuid.New().String()
	a.CreatedAt = testNow
	stored := *a
	f.rows = append(f.rows, &stored)
	return true, nil
}

func (f *fakeAlerts) Resolve(_ context.Context, org, id, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID != id {
			continue
		}
		if org != "" && f.batchOrg[r.BatchID] != org {
			break
		}
		r.IsResolved = true
		r.ResolvedAt = &at
		r.ResolvedBy = &userID
		return nil
	}
	return errors.NotFound("alert")
}

func (f *fakeAlerts) ListUnresolved(_ context.Context, org string, limit int) ([]*repository.StockAlertView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.StockAlertView{}
	for _, r := range f.rows {
		if !r.IsResolved && f.batchOrg[r.BatchID] == org {
			out = append(out, &repository.StockAlertView{StockAlert: *r})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAlerts) CountUnresolved(_ context.Context, org, alertType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if !r.IsResolved && f.batchOrg[r.BatchID] == org && (alertType == "" || r.AlertType == alertType) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAlerts) find(batchID, alertType string) *repository.StockAlert {
	for _, r := range f.rows {
		if r.BatchID == batchID && r.AlertType == alertType {
			return r
		}
	}
	return nil
}

// fakeMedicines is an in-memory catalogue
type fakeMedicines struct {
	rows []*repository.Medicine
}

func (f *fakeMedicines) Create(_ context.Context, m *repository.Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	f.rows = append(f.rows, m)
	return nil
}

func (f *fakeMedicines) GetByID(_ context.Context, id string) (*repository.Medicine, error) {
	for _, m := range f.rows {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.NotFound("medicine")
}

func (f *fakeMedicines) ListActive(context.Context) ([]*repository.Medicine, error) {
	return f.rows, nil
}

func (f *fakeMedicines) ListFirst(_ context.Context, limit int) ([]*repository.Medicine, error) {
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeMedicines) Update(_ context.Context, m *repository.Medicine) error {
	for i, row := range f.rows {
		if row.ID == m.ID {
			f.rows[i] = m
			return nil
		}
	}
	return errors.NotFound("medicine")
}

func (f *fakeMedicines) Count(context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

// fakeDemand records AddConsumption calls
type fakeDemand struct {
	calls []demandCall
	// failAfter makes AddConsumption fail once that many calls were recorded
	failAfter int
}

type demandCall struct {
	org, medicine string
	day           time.Time
	quantity      int
}

func (f *fakeDemand) AddConsumption(_ context.Context, org, medicineID string, day time.Time, quantity int) error {
	if f.failAfter > 0 && len(f.calls) >= f.failAfter {
		return fmt.Errorf("demand store unavailable")
	}
	f.calls = append(f.calls, demandCall{org, medicineID, day, quantity})
	return nil
}

// mapCache is a DashboardCache backed by a map
type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, org string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[org]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (c *mapCache) Set(_ context.Context, org string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[org] = payload
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, org string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, org)
	c.invalidated = append(c.invalidated, org)
	return nil
}

func (c *mapCache) Close() error { return nil }

// memoryStorage keeps uploaded objects in memory
type memoryStorage struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStorage) UploadObject(_ context.Context, key, contentType string, data []byte) error {
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}
