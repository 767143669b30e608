package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"auftrag.chapter42.de/dispatch/internal/store"
	"go.uber.org/zap"
)

// Notifier verteilt Events an die Automatisierung. Fehler bleiben beim Notifier.
type Notifier interface {
	Publish(event data.Event) int
}

// StatsCache speichert die Dashboard-Kennzahlen. Set verwirft Werte, deren
// Generation durch eine Invalidierung überholt wurde.
type StatsCache interface {
	Get(ctx context.Context) (*data.DashboardStats, bool)
	Generation(ctx context.Context) int64
	Set(ctx context.Context, stats *data.DashboardStats, gen int64)
	Invalidate(ctx context.Context)
}

// Service bildet den Ablauf von der Anfrage über die Kandidaten bis zur
// Zuweisung eines Meisters ab.
type Service struct {
	store    *store.Store
	notifier Notifier
	cache    StatsCache
	now      func() time.Time
}

func NewService(st *store.Store, notifier Notifier, cache StatsCache) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		cache:    cache,
		now:      time.Now,
	}
}

func (s *Service) publish(event data.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(event)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateRequest nimmt eine Anfrage aus dem Kontaktformular entgegen.
func (s *Service) CreateRequest(ctx context.Context, in data.LeadInput) (*data.Request, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("%w: name und phone sind Pflichtfelder", ErrValidation)
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "website"
	}

	r := &data.Request{
		ClientName:    name,
		Phone:         phone,
		Email:         strings.TrimSpace(in.Email),
		City:          strings.TrimSpace(in.City),
		Address:       strings.TrimSpace(in.Address),
		ServiceType:   strings.TrimSpace(in.ServiceType),
		Description:   strings.TrimSpace(in.Description),
		PreferredDate: in.PreferredDate,
		Source:        source,
		Status:        data.StatusWaitingCandidates,
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("auftrag anlegen: %w", err)
	}

	logger.Log.Info("Neuer Auftrag eingegangen:", zap.String("request_id", r.ID), zap.String("service_type", r.ServiceType), zap.String("city", r.City))

	s.publish(data.NewEvent(data.EventRequestCreated, r.ID, map[string]any{
		"client_name":    r.ClientName,
		"phone":          r.Phone,
		"email":          r.Email,
		"city":           r.City,
		"address":        r.Address,
		"service_type":   r.ServiceType,
		"description":    r.Description,
		"preferred_date": r.PreferredDate,
		"source":         r.Source,
	}))
	s.invalidate(ctx)
	return r, nil
}

// ApplyMaster nimmt die Bewerbung eines Handwerkers entgegen.
func (s *Service) ApplyMaster(ctx context.Context, in data.MasterApplication) (*data.Master, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("%w: name und phone sind Pflichtfelder", ErrValidation)
	}
	if in.ExperienceYears < 0 {
		return nil, fmt.Errorf("%w: experience_years darf nicht negativ sein", ErrValidation)
	}

	m := &data.Master{
		Name:            name,
		Phone:           phone,
		Email:           strings.TrimSpace(in.Email),
		City:            strings.TrimSpace(in.City),
		Specialties:     strings.TrimSpace(in.Specialties),
		ExperienceYears: in.ExperienceYears,
		Status:          data.MasterPending,
	}
	if err := s.store.CreateMaster(ctx, m); err != nil {
		return nil, fmt.Errorf("meister anlegen: %w", err)
	}

	logger.Log.Info("Neue Meister-Bewerbung:", zap.String("master_id", m.ID), zap.String("city", m.City))

	s.publish(data.NewEvent(data.EventMasterApplied, "", map[string]any{
		"master_id":        m.ID,
		"name":             m.Name,
		"phone":            m.Phone,
		"email":            m.Email,
		"city":             m.City,
		"specialties":      m.Specialties,
		"experience_years": m.ExperienceYears,
	}))
	s.invalidate(ctx)
	return m, nil
}

func (s *Service) ListRequests(ctx context.Context, filter data.RequestFilter) (*data.PageData[data.Request], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unbekannter status %q", ErrValidation, filter.Status)
	}
	filter.Normalize()

	list, total, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("aufträge laden: %w", err)
	}
	return &data.PageData[data.Request]{
		List:     list,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// GetRequest liefert den Auftrag mit Kandidaten und aktiver Zuweisung.
func (s *Service) GetRequest(ctx context.Context, id string) (*data.RequestDetail, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, "Auftrag", id)
	}
	candidates, err := s.store.ListCandidates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("kandidaten laden: %w", err)
	}

	detail := &data.RequestDetail{Request: *r, Candidates: candidates}
	a, err := s.store.GetActiveAssignment(ctx, id)
	switch {
	case err == nil:
		detail.Assignment = a
	case isNotFound(err):
	default:
		return nil, fmt.Errorf("zuweisung laden: %w", err)
	}
	return detail, nil
}

func (s *Service) ListMasters(ctx context.Context, status data.MasterStatus) ([]data.Master, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unbekannter status %q", ErrValidation, status)
	}
	masters, err := s.store.ListMasters(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("meister laden: %w", err)
	}
	return masters, nil
}

// SetMasterStatus schaltet einen Meister frei oder sperrt ihn.
func (s *Service) SetMasterStatus(ctx context.Context, id string, status data.MasterStatus) (*data.Master, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unbekannter status %q", ErrValidation, status)
	}
	m, err := s.store.GetMaster(ctx, id)
	if err != nil {
		return nil, notFound(err, "Meister", id)
	}
	if m.Status == status {
		return m, nil
	}
	if err := s.store.UpdateMasterStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("meisterstatus setzen: %w", err)
	}
	logger.Log.Info("Meisterstatus geändert:", zap.String("master_id", id), zap.String("from", string(m.Status)), zap.String("to", string(status)))
	m.Status = status
	s.invalidate(ctx)
	return m, nil
}

// Dashboard liefert die Kennzahlen, wenn möglich aus dem Cache.
func (s *Service) Dashboard(ctx context.Context) (*data.DashboardStats, error) {
	if s.cache == nil {
		return s.computeDashboard(ctx)
	}
	if stats, ok := s.cache.Get(ctx); ok {
		return stats, nil
	}

	// Zähler vor der Berechnung lesen, sonst könnte ein veralteter Stand im Cache landen
	gen := s.cache.Generation(ctx)
	stats, err := s.computeDashboard(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, stats, gen)
	return stats, nil
}

func (s *Service) computeDashboard(ctx context.Context) (*data.DashboardStats, error) {
	stats, err := s.store.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("dashboard berechnen: %w", err)
	}
	return stats, nil
}
