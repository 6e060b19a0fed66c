package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"card-price-alerts/internal/alerting"
	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/storage"
	"card-price-alerts/internal/tracking"
)

// SweepReport summarises one pass over every tracked item.
type SweepReport struct {
	SweepID       string
	StartedAt     time.Time
	Duration      time.Duration
	Items         int
	Checked       int
	Skipped       int
	Changes       int
	Notified      int
	NotifyFailed  int
	PersistFailed int
	Cancelled     bool
}

type itemResult struct {
	checked       bool
	changes       int
	notified      int
	notifyFailed  int
	persistFailed bool
}

func (r *SweepReport) add(res itemResult) {
	if res.checked {
		r.Checked++
	} else {
		r.Skipped++
	}
	r.Changes += res.changes
	r.Notified += res.notified
	r.NotifyFailed += res.notifyFailed
	if res.persistFailed {
		r.PersistFailed++
	}
}

// Sweep re-prices every tracked item once. Per-item failures are logged and
// counted, never returned. Cancelling ctx stops dispatching new items.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{SweepID: uuid.NewString(), StartedAt: s.now()}
	logger := s.logger.With().Str("sweep_id", report.SweepID).Logger()

	snapshot := s.store.GetAll(ctx)
	report.Items = snapshot.Count()
	logger.Info().Int("groups", len(snapshot)).Int("items", report.Items).Msg("sweep started")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)

dispatch:
	for _, groupID := range snapshot.GroupIDs() {
		for _, itemID := range snapshot[groupID].ItemIDs() {
			if ctx.Err() != nil {
				report.Cancelled = true
				break dispatch
			}
			g.Go(func() error {
				res := s.checkItem(ctx, logger, report.SweepID, groupID, itemID)
				mu.Lock()
				report.add(res)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	report.Duration = s.now().Sub(report.StartedAt)
	event := logger.Info()
	if report.Cancelled {
		event = logger.Warn()
	}
	event.Int("checked", report.Checked).
		Int("skipped", report.Skipped).
		Int("changes", report.Changes).
		Int("notified", report.Notified).
		Int("notify_failed", report.NotifyFailed).
		Int("persist_failed", report.PersistFailed).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.Duration).
		Msg("sweep finished")

	return report, nil
}

// checkItem runs fetch, compare, notify and persist for one item while
// holding its lock. The record is re-read under the lock so the comparison
// uses the baseline current at that moment. It runs on a context detached
// from cancellation so an item that has started also finishes.
func (s *Service) checkItem(ctx context.Context, logger zerolog.Logger, sweepID, groupID, itemID string) itemResult {
	var res itemResult
	logger = logger.With().Str("group_id", groupID).Str("item_id", itemID).Logger()

	unlock := s.items.lock(groupID, itemID)
	defer unlock()

	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.itemTimeout)
	defer cancel()

	item, ok := s.store.GetGroup(itemCtx, groupID)[itemID]
	if !ok {
		logger.Debug().Msg("item untracked during sweep, skipped")
		return res
	}

	card, err := s.source.FetchCard(itemCtx, itemID)
	if err != nil {
		logger.Warn().Err(err).Msg("fetch failed, item skipped until next sweep")
		return res
	}
	res.checked = true

	current := tracking.Project(card)
	changes := tracking.Diff(item.LastPrices, current, s.threshold)
	res.changes = len(changes)

	for _, change := range changes {
		if !s.alertsOn {
			logger.Info().Str("source", change.SourceKey).
				Str("old_price", change.Old.String()).
				Str("new_price", change.New.String()).
				Msg("threshold exceeded, alerting disabled")
			continue
		}
		note := s.notification(card, itemID, item.Destination, change)
		err := s.notifier.Notify(itemCtx, note)
		if err != nil {
			res.notifyFailed++
			logger.Error().Err(err).Str("source", change.SourceKey).Msg("failed to dispatch alert")
		} else {
			res.notified++
		}
		s.audit(itemCtx, logger, sweepID, groupID, note, err)
	}

	if err := s.store.UpdateLastPrices(itemCtx, groupID, itemID, current); err != nil {
		res.persistFailed = true
		logger.Error().Err(err).Msg("failed to persist baseline, item stays stale")
		return res
	}

	logger.Debug().Int("changes", len(changes)).Msg("item checked")
	return res
}

func (s *Service) notification(card fetcher.Card, itemID, destination string, change tracking.Change) alerting.Notification {
	return alerting.Notification{
		Destination:  destination,
		ItemID:       itemID,
		ItemName:     card.Name,
		SetName:      card.Set.Name,
		CardNumber:   card.CardNumber,
		Image:        card.Image,
		SourceKey:    change.SourceKey,
		SourceLabel:  tracking.SourceLabel(change.SourceKey),
		OldPrice:     change.Old,
		NewPrice:     change.New,
		ChangePct:    change.ChangePct,
		ThresholdPct: s.threshold,
		Currency:     tracking.Currency(card),
		ObservedAt:   s.now(),
	}
}

func (s *Service) audit(ctx context.Context, logger zerolog.Logger, sweepID, groupID string, note alerting.Notification, deliveryErr error) {
	if s.alertStore == nil {
		return
	}
	record := storage.AlertRecord{
		SweepID:      sweepID,
		GroupID:      groupID,
		ItemID:       note.ItemID,
		SourceKey:    note.SourceKey,
		OldPrice:     note.OldPrice,
		NewPrice:     note.NewPrice,
		ChangePct:    note.ChangePct,
		ThresholdPct: note.ThresholdPct,
		Destination:  note.Destination,
		Delivered:    deliveryErr == nil,
	}
	if deliveryErr != nil {
		msg := deliveryErr.Error()
		record.Error = &msg
	}
	if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
		logger.Error().Err(err).Str("source", note.SourceKey).Msg("failed to persist alert record")
	}
}
