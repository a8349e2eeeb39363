package service

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// OrganizationLister lists organizations that hold stock
type OrganizationLister interface {
	ListOrganizations(ctx context.Context) ([]string, error)
}

// ScanResult summarizes one organization's scan
type ScanResult struct {
	OrganizationID string             `json:"organization_id"`
	Insights       []InsightCandidate `json:"insights"`
	AlertsCreated  int                `json:"alerts_created"`
}

// Scheduler runs insight and alert scans periodically across all organizations
type Scheduler struct {
	insights *InsightEngine
	alerts   *AlertScanner
	orgs     OrganizationLister
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(insights *InsightEngine, alerts *AlertScanner, orgs OrganizationLister, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		insights: insights,
		alerts:   alerts,
		orgs:     orgs,
		interval: interval,
		logger:   log.WithComponent("scheduler"),
	}
}

// ScanOrganization runs the insight coordinator and the alert scan for one organization
func (s *Scheduler) ScanOrganization(ctx context.Context, organizationID string) (*ScanResult, error) {
	candidates, err := s.insights.Generate(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	created, err := s.alerts.CheckAndCreateAlerts(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		OrganizationID: organizationID,
		Insights:       candidates,
		AlertsCreated:  len(created),
	}, nil
}

// Start starts the scheduler in a background goroutine. A zero interval
// leaves scans to explicit requests.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("scheduler disabled")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

		s.RunCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// RunCycle scans every organization once. Failures are logged per
// organization and do not stop the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) int {
	start := time.Now()

	orgIDs, err := s.orgs.ListOrganizations(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list organizations")
		return 0
	}

	failed := 0
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.ScanOrganization(ctx, orgID); err != nil {
			failed++
			s.logger.Error().Err(err).Str("organization_id", orgID).Msg("scan failed for organization")
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("organizations", len(orgIDs)).
		Int("failed", failed).
		Msg("scan cycle completed")

	return len(orgIDs) - failed
}
