package store

import (
	"context"

	"auftrag.chapter42.de/dispatch/internal/data"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateRequest(ctx context.Context, r *data.Request) error {
	return s.conn(ctx).Create(r).Error
}

func (s *Store) GetRequest(ctx context.Context, id string) (*data.Request, error) {
	var r data.Request
	if err := s.conn(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// LockRequest liest den Auftrag mit FOR UPDATE. Nur innerhalb einer Transaktion sinnvoll.
func (s *Store) LockRequest(ctx context.Context, id string) (*data.Request, error) {
	var r data.Request
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests liefert eine Seite von Aufträgen, neueste zuerst.
func (s *Store) ListRequests(ctx context.Context, filter data.RequestFilter) ([]data.Request, int64, error) {
	filter.Normalize()

	q := s.conn(ctx).Model(&data.Request{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	requests := []data.Request{}
	err := q.Order("created_at DESC").Order("id").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// UpdateRequest setzt die angegebenen Spalten. updated_at wird von gorm gepflegt.
func (s *Store) UpdateRequest(ctx context.Context, id string, fields map[string]any) error {
	return s.conn(ctx).Model(&data.Request{}).Where("id = ?", id).Updates(fields).Error
}
