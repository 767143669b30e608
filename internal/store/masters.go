package store

import (
	"context"

	"auftrag.chapter42.de/dispatch/internal/data"
)

func (s *Store) CreateMaster(ctx context.Context, m *data.Master) error {
	return s.conn(ctx).Create(m).Error
}

func (s *Store) GetMaster(ctx context.Context, id string) (*data.Master, error) {
	var m data.Master
	if err := s.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMasters liefert alle Meister, optional gefiltert nach Status, alphabetisch.
func (s *Store) ListMasters(ctx context.Context, status data.MasterStatus) ([]data.Master, error) {
	q := s.conn(ctx).Model(&data.Master{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	masters := []data.Master{}
	if err := q.Order("name").Order("id").Find(&masters).Error; err != nil {
		return nil, err
	}
	return masters, nil
}

func (s *Store) UpdateMasterStatus(ctx context.Context, id string, status data.MasterStatus) error {
	return s.conn(ctx).Model(&data.Master{}).Where("id = ?", id).Update("status", string(status)).Error
}
