package services

import (
	"context"
	"fmt"
	"time"

	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const settlementBatchSize = 200

type SettlementReport struct {
	Released int `json:"released"`
	Unlocked int `json:"unlocked"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// SettlementService moves earnings out of their hold once the ready date passes. Runs are
// idempotent and may overlap with live requests.
type SettlementService struct {
	db        *gorm.DB
	log       zerolog.Logger
	now       func() time.Time
	batchSize int
}

func NewSettlementService(db *gorm.DB, log zerolog.Logger) *SettlementService {
	return &SettlementService{
		db:        db,
		log:       log.With().Str("component", "settlement").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: settlementBatchSize,
	}
}

func (s *SettlementService) Run(ctx context.Context) (SettlementReport, error) {
	now := s.now()
	var report SettlementReport

	var pending []models.EventEarnings
	err := s.db.WithContext(ctx).
		Where("settlement_status = ? AND settlement_ready_date <= ?", models.SettlementPending, now).
		Find(&pending).Error
	if err != nil {
		return report, fmt.Errorf("scan pending earnings: %w", err)
	}
	ids, skipped := s.eligible(pending, now)
	report.Skipped += skipped
	released, failed := s.release(ctx, ids, models.SettlementPending, now)
	report.Released += released
	report.Failed += failed

	var locked []models.EventEarnings
	err = s.db.WithContext(ctx).
		Where("settlement_status = ? AND available_to_withdraw > 0 AND settlement_ready_date <= ?", models.SettlementLocked, now).
		Find(&locked).Error
	if err != nil {
		return report, fmt.Errorf("scan locked earnings: %w", err)
	}
	ids, skipped = s.eligible(locked, now)
	report.Skipped += skipped
	unlocked, failed := s.release(ctx, ids, models.SettlementLocked, now)
	report.Unlocked += unlocked
	report.Failed += failed

	if report.Released+report.Unlocked+report.Failed > 0 {
		s.log.Info().
			Int("released", report.Released).
			Int("unlocked", report.Unlocked).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("settlement run finished")
	}
	return report, nil
}

// eligible re-validates rows returned by the scan queries.
func (s *SettlementService) eligible(rows []models.EventEarnings, now time.Time) ([]uuid.UUID, int) {
	ids := make([]uuid.UUID, 0, len(rows))
	skipped := 0
	for _, e := range rows {
		switch {
		case e.SettlementReadyDate.After(now):
			skipped++
		case e.WithdrawnAmount < 0 || e.WithdrawnAmount > e.NetAmount:
			s.log.Error().
				Str("event_id", e.EventID.String()).
				Int64("net", e.NetAmount).
				Int64("withdrawn", e.WithdrawnAmount).
				Msg("earnings violate withdrawn <= net, left on hold")
			skipped++
		default:
			ids = append(ids, e.EventID)
		}
	}
	return ids, skipped
}

// release flips a batch to ready. The status guard in the WHERE clause keeps a concurrent
// lock or an earlier run from being overwritten. A failed batch is retried row by row.
func (s *SettlementService) release(ctx context.Context, ids []uuid.UUID, from models.SettlementStatus, now time.Time) (int, int) {
	updated, failed := 0, 0
	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		res := s.readyQuery(ctx, from, now).Where("event_id IN ?", chunk).Updates(readyUpdates(now))
		if res.Error == nil {
			updated += int(res.RowsAffected)
			continue
		}

		s.log.Warn().Err(res.Error).Int("rows", len(chunk)).Msg("batch settlement update failed, retrying per row")
		for _, id := range chunk {
			res := s.readyQuery(ctx, from, now).Where("event_id = ?", id).Updates(readyUpdates(now))
			if res.Error != nil {
				s.log.Error().Err(res.Error).Str("event_id", id.String()).Msg("settlement update failed")
				failed++
				continue
			}
			updated += int(res.RowsAffected)
		}
	}
	return updated, failed
}

func (s *SettlementService) readyQuery(ctx context.Context, from models.SettlementStatus, now time.Time) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.EventEarnings{}).
		Where("settlement_status = ? AND settlement_ready_date <= ?", from, now)
}

func readyUpdates(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"settlement_status": models.SettlementReady,
		"lock_reason":       nil,
		"updated_at":        now,
	}
}
