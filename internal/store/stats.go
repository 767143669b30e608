package store

import (
	"context"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"golang.org/x/sync/errgroup"
)

type statusCount struct {
	Status string
	Count  int64
}

// Stats berechnet die Kennzahlen für das Admin-Dashboard. Die Abfragen laufen parallel.
func (s *Store) Stats(ctx context.Context, now time.Time) (*data.DashboardStats, error) {
	var (
		byStatus          []statusCount
		masterStatus      []statusCount
		newLast7Days      int64
		completedLast30   int64
		pendingCandidates int64
		totalCandidates   int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.conn(gctx).Model(&data.Request{}).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&byStatus).Error
	})
	g.Go(func() error {
		return s.conn(gctx).Model(&data.Request{}).
			Where("created_at >= ?", now.AddDate(0, 0, -7)).
			Count(&newLast7Days).Error
	})
	g.Go(func() error {
		return s.conn(gctx).Model(&data.Request{}).
			Where("status = ? AND completed_at >= ?", string(data.StatusCompleted), now.AddDate(0, 0, -30)).
			Count(&completedLast30).Error
	})
	g.Go(func() error {
		return s.conn(gctx).Model(&data.Candidate{}).
			Where("status = ?", string(data.CandidatePending)).
			Count(&pendingCandidates).Error
	})
	g.Go(func() error {
		return s.conn(gctx).Model(&data.Candidate{}).Count(&totalCandidates).Error
	})
	g.Go(func() error {
		return s.conn(gctx).Model(&data.Master{}).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&masterStatus).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &data.DashboardStats{
		ByStatus:            make(map[data.RequestStatus]int64, len(data.AllRequestStatuses)),
		NewLast7Days:        newLast7Days,
		CompletedLast30Days: completedLast30,
		PendingCandidates:   pendingCandidates,
		GeneratedAt:         now,
	}
	for _, st := range data.AllRequestStatuses {
		stats.ByStatus[st] = 0
	}
	for _, row := range byStatus {
		status := data.RequestStatus(row.Status)
		stats.ByStatus[status] = row.Count
		stats.TotalRequests += row.Count
		if !status.Terminal() {
			stats.OpenRequests += row.Count
		}
	}
	if stats.TotalRequests > 0 {
		stats.AvgCandidatesPerRequest = float64(totalCandidates) / float64(stats.TotalRequests)
	}
	for _, row := range masterStatus {
		switch data.MasterStatus(row.Status) {
		case data.MasterActive:
			stats.ActiveMasters = row.Count
		case data.MasterPending:
			stats.PendingMasters = row.Count
		}
	}

	return stats, nil
}
