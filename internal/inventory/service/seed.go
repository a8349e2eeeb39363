package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	sampleBatchCount     = 5
	sampleDemandMedicine = 3
	sampleDemandDays     = 30
)

// SeedMedicineStore is the catalogue access the seeder needs
type SeedMedicineStore interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, m *repository.Medicine) error
	ListFirst(ctx context.Context, limit int) ([]*repository.Medicine, error)
}

// SeedBatchStore is the batch access the seeder needs
type SeedBatchStore interface {
	CountByOrganization(ctx context.Context, organizationID string) (int64, error)
	Create(ctx context.Context, b *repository.Batch) error
}

// DemandRecorder adds consumption to the daily demand history
type DemandRecorder interface {
	AddConsumption(ctx context.Context, organizationID, medicineID string, day time.Time, quantity int) error
}

// Transactor runs fn in one database transaction carried by ctx
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// Seeder fills empty organizations with sample stock and demand
type Seeder struct {
	medicines SeedMedicineStore
	batches   SeedBatchStore
	demand    DemandRecorder
	tx        Transactor
	clock     clock.Clock
	rand      *rand.Rand
	logger    *logger.Logger
}

// NewSeeder creates a seeder. rng may be nil for a time-seeded source; tx may
// be nil when the stores are not transactional.
func NewSeeder(medicines SeedMedicineStore, batches SeedBatchStore, demand DemandRecorder, tx Transactor, c clock.Clock, rng *rand.Rand, log *logger.Logger) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewSource(c.Now().UnixNano()))
	}
	if tx == nil {
		tx = directTx{}
	}
	return &Seeder{
		medicines: medicines,
		batches:   batches,
		demand:    demand,
		tx:        tx,
		clock:     c,
		rand:      rng,
		logger:    log.WithComponent("seeder"),
	}
}

var defaultCatalogue = []struct {
	name, strength, manufacturer, price string
	minStock, reorder                   int
}{
	{"Amoxicillin", "500mg", "Sandoz", "8.40", 100, 300},
	{"Atorvastatin", "20mg", "Pfizer", "12.75", 80, 240},
	{"Ibuprofen", "400mg", "Abbott", "4.20", 150, 500},
	{"Metformin", "850mg", "Teva", "6.10", 120, 360},
	{"Omeprazole", "20mg", "AstraZeneca", "9.95", 90, 270},
	{"Paracetamol", "500mg", "GSK", "3.50", 200, 600},
	{"Salbutamol", "100mcg", "Cipla", "15.30", 40, 120},
	{"Cetirizine", "10mg", "UCB", "5.60", 60, 180},
}

// SeedCatalogue inserts a starter catalogue when no medicines exist
func (s *Seeder) SeedCatalogue(ctx context.Context) (int, error) {
	count, err := s.medicines.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	for _, entry := range defaultCatalogue {
		strength, manufacturer := entry.strength, entry.manufacturer
		m := &repository.Medicine{
			Name:              entry.name,
			Strength:          &strength,
			Manufacturer:      &manufacturer,
			UnitPrice:         decimal.RequireFromString(entry.price),
			MinimumStockLevel: entry.minStock,
			ReorderQuantity:   entry.reorder,
			IsActive:          true,
		}
		if err := s.medicines.Create(ctx, m); err != nil {
			return 0, fmt.Errorf("seed medicine %s: %w", entry.name, err)
		}
	}

	s.logger.Info().Int("medicines", len(defaultCatalogue)).Msg("catalogue seeded")
	return len(defaultCatalogue), nil
}

// SeedSampleData gives an organization without batches five sample batches
// and 30 days of demand for the first three medicines. It is a no-op for
// organizations that already hold stock. Batches and demand are written in one
// transaction, so a failed run leaves nothing behind and can be retried.
func (s *Seeder) SeedSampleData(ctx context.Context, organizationID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.seedSampleData(ctx, organizationID)
	})
}

func (s *Seeder) seedSampleData(ctx context.Context, organizationID string) error {
	log := s.logger.WithOrganization(organizationID)

	existing, err := s.batches.CountByOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	if existing > 0 {
		log.Debug().Int64("batches", existing).Msg("organization already has stock, skipping seed")
		return nil
	}

	medicines, err := s.medicines.ListFirst(ctx, sampleBatchCount)
	if err != nil {
		return err
	}
	if len(medicines) == 0 {
		log.Warn().Msg("catalogue is empty, nothing to seed")
		return nil
	}

	now := s.clock.Now()
	today := clock.Today(s.clock)
	manufactured := today.AddDate(0, 0, -30)

	for i, med := range medicines {
		location := fmt.Sprintf("Shelf-%c%d", 'A'+i, i+1)
		batch := &repository.Batch{
			OrganizationID:    organizationID,
			MedicineID:        med.ID,
			BatchNumber:       fmt.Sprintf("BATCH-%d-%03d", now.Year(), i+1),
			Quantity:          s.rand.Intn(500) + 100,
			UnitPrice:         decimal.NewFromInt(int64(s.rand.Intn(500) + 50)),
			ExpiryDate:        today.AddDate(0, 0, 180),
			ManufacturingDate: &manufactured,
			Location:          &location,
			ReceivedDate:      now.AddDate(0, 0, -20),
			IsAvailable:       true,
		}
		if err := s.batches.Create(ctx, batch); err != nil {
			return fmt.Errorf("seed batch %s: %w", batch.BatchNumber, err)
		}
	}

	demandMedicines := medicines
	if len(demandMedicines) > sampleDemandMedicine {
		demandMedicines = demandMedicines[:sampleDemandMedicine]
	}
	for _, med := range demandMedicines {
		for i := 0; i < sampleDemandDays; i++ {
			day := today.AddDate(0, 0, -(sampleDemandDays - 1 - i))
			if err := s.demand.AddConsumption(ctx, organizationID, med.ID, day, s.rand.Intn(50)+10); err != nil {
				return fmt.Errorf("seed demand: %w", err)
			}
		}
	}

	log.Info().
		Int("batches", len(medicines)).
		Int("demand_medicines", len(demandMedicines)).
		Msg("sample data seeded")
	return nil
}
