package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

const (
	DefaultHorizon     = 7
	DefaultHistoryDays = 90

	maWindow = 7

	coldStartQuantity   = 100
	coldStartConfidence = 0.3

	minQuantity   = 10
	weekdayFactor = 1.1
	weekendFactor = 0.8

	maxConfidence = 0.9
	minConfidence = 0.4
	decaySpan     = 0.1
)

// HistoryReader loads per-day consumption in chronological order.
type HistoryReader interface {
	ListHistory(ctx context.Context, organizationID, medicineID string, since time.Time) ([]repository.DemandRecord, error)
}

// Point is the predicted demand for one future day.
type Point struct {
	MedicineID        string  `json:"medicine_id"`
	ForecastDate      string  `json:"forecast_date"`
	PredictedQuantity int     `json:"predicted_quantity"`
	ConfidenceScore   float64 `json:"confidence_score"`
}

// Result carries the forecast together with the estimates it was built from.
type Result struct {
	MedicineID  string  `json:"medicine_id"`
	HistoryDays int     `json:"history_days"`
	ColdStart   bool    `json:"cold_start"`
	Baseline    float64 `json:"baseline"`
	Seasonality float64 `json:"seasonality"`
	Trend       float64 `json:"trend"`
	StdDev      float64 `json:"std_dev"`
	Points      []Point `json:"points"`
}

// Generator builds forecasts. It never persists them.
type Generator struct {
	history     HistoryReader
	clock       clock.Clock
	historyDays int
	logger      *logger.Logger
}

// NewGenerator creates a generator reading historyDays of history.
// historyDays <= 0 uses DefaultHistoryDays.
func NewGenerator(history HistoryReader, c clock.Clock, historyDays int, log *logger.Logger) *Generator {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	return &Generator{
		history:     history,
		clock:       c,
		historyDays: historyDays,
		logger:      log.WithComponent("forecast"),
	}
}

// Generate returns horizonDays forecast points; horizonDays <= 0 means 7.
func (g *Generator) Generate(ctx context.Context, organizationID, medicineID string, horizonDays int) ([]Point, error) {
	res, err := g.Run(ctx, organizationID, medicineID, horizonDays)
	if err != nil {
		return nil, err
	}
	return res.Points, nil
}

// Run is Generate plus the intermediate estimates.
func (g *Generator) Run(ctx context.Context, organizationID, medicineID string, horizonDays int) (*Result, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizon
	}

	now := g.clock.Now()
	since := clock.Today(g.clock).AddDate(0, 0, -g.historyDays)

	records, err := g.history.ListHistory(ctx, organizationID, medicineID, since)
	if err != nil {
		return nil, fmt.Errorf("load demand history: %w", err)
	}

	res := &Result{
		MedicineID:  medicineID,
		HistoryDays: len(records),
		Points:      make([]Point, 0, horizonDays),
	}

	if len(records) == 0 {
		res.ColdStart = true
		for i := 1; i <= horizonDays; i++ {
			res.Points = append(res.Points, Point{
				MedicineID:        medicineID,
				ForecastDate:      dayAhead(now, i).Format(time.DateOnly),
				PredictedQuantity: coldStartQuantity,
				ConfidenceScore:   coldStartConfidence,
			})
		}
		return res, nil
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = float64(r.QuantityConsumed)
	}

	ma := MovingAverage(values, maWindow)
	res.Seasonality = SeasonalityFactor(values)
	res.Trend = TrendFactor(values)
	res.Baseline = ma * res.Seasonality * res.Trend
	res.StdDev = StdDev(values, ma)

	for i := 1; i <= horizonDays; i++ {
		day := dayAhead(now, i)
		res.Points = append(res.Points, Point{
			MedicineID:        medicineID,
			ForecastDate:      day.Format(time.DateOnly),
			PredictedQuantity: predictQuantity(res.Baseline, day),
			ConfidenceScore:   confidence(i, horizonDays),
		})
	}

	g.logger.Debug().
		Str("medicine_id", medicineID).
		Int("history_days", res.HistoryDays).
		Float64("baseline", res.Baseline).
		Float64("std_dev", res.StdDev).
		Msg("forecast generated")

	return res, nil
}

func dayAhead(now time.Time, i int) time.Time {
	return now.UTC().Add(time.Duration(i) * 24 * time.Hour)
}

func predictQuantity(baseline float64, day time.Time) int {
	factor := weekdayFactor
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		factor = weekendFactor
	}
	return max(minQuantity, int(math.Round(baseline*factor)))
}

func confidence(i, horizon int) float64 {
	return math.Max(minConfidence, maxConfidence-float64(i-1)*decaySpan/float64(horizon))
}
