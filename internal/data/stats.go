package data

import "time"

type DashboardStats struct {
	TotalRequests           int64                   `json:"total_requests"`
	ByStatus                map[RequestStatus]int64 `json:"by_status"`
	OpenRequests            int64                   `json:"open_requests"`
	NewLast7Days            int64                   `json:"new_last_7_days"`
	CompletedLast30Days     int64                   `json:"completed_last_30_days"`
	PendingCandidates       int64                   `json:"pending_candidates"`
	AvgCandidatesPerRequest float64                 `json:"avg_candidates_per_request"`
	ActiveMasters           int64                   `json:"active_masters"`
	PendingMasters          int64                   `json:"pending_masters"`
	GeneratedAt             time.Time               `json:"generated_at"`
}
