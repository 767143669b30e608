package store

import (
	"context"
	"errors"

	"auftrag.chapter42.de/dispatch/internal/data"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateCandidate(ctx context.Context, c *data.Candidate) error {
	return s.conn(ctx).Create(c).Error
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*data.Candidate, error) {
	var c data.Candidate
	if err := s.conn(ctx).Preload("Master").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCandidate sucht den Kandidateneintrag eines Meisters für einen Auftrag.
func (s *Store) FindCandidate(ctx context.Context, requestID, masterID string) (*data.Candidate, error) {
	var c data.Candidate
	err := s.conn(ctx).Where("request_id = ? AND master_id = ?", requestID, masterID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CandidateExists meldet, ob der Meister bereits Kandidat des Auftrags ist.
func (s *Store) CandidateExists(ctx context.Context, requestID, masterID string) (bool, error) {
	_, err := s.FindCandidate(ctx, requestID, masterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListCandidates liefert die Kandidaten eines Auftrags samt Meister, älteste zuerst.
func (s *Store) ListCandidates(ctx context.Context, requestID string) ([]data.Candidate, error) {
	candidates := []data.Candidate{}
	err := s.conn(ctx).Preload("Master").
		Where("request_id = ?", requestID).
		Order("created_at").Order("id").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *Store) UpdateCandidateStatus(ctx context.Context, id string, status data.CandidateStatus) error {
	return s.conn(ctx).Model(&data.Candidate{}).Where("id = ?", id).Update("status", string(status)).Error
}

// RejectPendingCandidates lehnt alle offenen Kandidaten des Auftrags außer exceptID
// ab und liefert die betroffenen Einträge.
func (s *Store) RejectPendingCandidates(ctx context.Context, requestID, exceptID string) ([]data.Candidate, error) {
	var rejected []data.Candidate
	err := s.conn(ctx).
		Where("request_id = ? AND status = ? AND id <> ?", requestID, string(data.CandidatePending), exceptID).
		Find(&rejected).Error
	if err != nil || len(rejected) == 0 {
		return rejected, err
	}

	ids := make([]string, 0, len(rejected))
	for i := range rejected {
		ids = append(ids, rejected[i].ID)
		rejected[i].Status = data.CandidateRejected
	}
	err = s.conn(ctx).Model(&data.Candidate{}).
		Where("id IN ?", ids).
		Update("status", string(data.CandidateRejected)).Error
	return rejected, err
}

// ReopenRejectedCandidates setzt abgelehnte Kandidaten außer exceptID wieder auf pending.
func (s *Store) ReopenRejectedCandidates(ctx context.Context, requestID, exceptID string) (int64, error) {
	res := s.conn(ctx).Model(&data.Candidate{}).
		Where("request_id = ? AND status = ? AND id <> ?", requestID, string(data.CandidateRejected), exceptID).
		Update("status", string(data.CandidatePending))
	return res.RowsAffected, res.Error
}

// UpsertAssignment legt die Zuweisung an oder überschreibt die vorhandene Zeile
// des Auftrags und liefert den gespeicherten Stand.
func (s *Store) UpsertAssignment(ctx context.Context, a *data.Assignment) (*data.Assignment, error) {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"master_id", "candidate_id", "assigned_by", "assigned_at", "active", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return nil, err
	}

	var saved data.Assignment
	if err := s.conn(ctx).Where("request_id = ?", a.RequestID).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) GetActiveAssignment(ctx context.Context, requestID string) (*data.Assignment, error) {
	var a data.Assignment
	err := s.conn(ctx).Where("request_id = ? AND active = ?", requestID, true).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) DeactivateAssignment(ctx context.Context, requestID string) error {
	return s.conn(ctx).Model(&data.Assignment{}).
		Where("request_id = ? AND active = ?", requestID, true).
		Update("active", false).Error
}
