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

// AddCandidate schlägt einen freigeschalteten Meister für einen Auftrag vor.
func (s *Service) AddCandidate(ctx context.Context, requestID string, in data.CandidateInput) (*data.Candidate, error) {
	masterID := strings.TrimSpace(in.MasterID)
	if masterID == "" {
		return nil, fmt.Errorf("%w: master_id fehlt", ErrValidation)
	}
	if in.ProposedPrice != nil && *in.ProposedPrice < 0 {
		return nil, fmt.Errorf("%w: proposed_price darf nicht negativ sein", ErrValidation)
	}

	var (
		candidate *data.Candidate
		from      data.RequestStatus
		to        data.RequestStatus
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		r, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "Auftrag", requestID)
		}
		if !r.Status.AcceptsCandidates() {
			return fmt.Errorf("%w: auftrag im status %s nimmt keine kandidaten an", ErrInvalidTransition, r.Status)
		}

		m, err := tx.GetMaster(ctx, masterID)
		if err != nil {
			return notFound(err, "Meister", masterID)
		}
		if m.Status != data.MasterActive {
			return fmt.Errorf("%w: meister %s ist nicht freigeschaltet (%s)", ErrConflict, masterID, m.Status)
		}

		exists, err := tx.CandidateExists(ctx, requestID, masterID)
		if err != nil {
			return fmt.Errorf("kandidat prüfen: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: meister %s ist bereits kandidat", ErrConflict, masterID)
		}

		candidate = &data.Candidate{
			RequestID:     requestID,
			MasterID:      masterID,
			Status:        data.CandidatePending,
			Note:          strings.TrimSpace(in.Note),
			ProposedPrice: in.ProposedPrice,
		}
		if err := tx.CreateCandidate(ctx, candidate); err != nil {
			return fmt.Errorf("kandidat anlegen: %w", err)
		}
		candidate.Master = m

		from, to = r.Status, r.Status
		if r.Status == data.StatusWaitingCandidates {
			to = data.StatusCandidatesCollecting
			if err := tx.UpdateRequest(ctx, requestID, map[string]any{"status": string(to)}); err != nil {
				return fmt.Errorf("auftragsstatus setzen: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Kandidat hinzugefügt:", zap.String("request_id", requestID), zap.String("master_id", masterID))

	s.publish(data.NewEvent(data.EventCandidateAdded, requestID, map[string]any{
		"candidate_id":   candidate.ID,
		"master_id":      masterID,
		"master_name":    candidate.Master.Name,
		"master_phone":   candidate.Master.Phone,
		"note":           candidate.Note,
		"proposed_price": candidate.ProposedPrice,
	}))
	if from != to {
		s.publish(data.NewEvent(data.EventRequestStatusChanged, requestID, map[string]any{
			"from": from,
			"to":   to,
		}))
	}
	s.invalidate(ctx)
	return candidate, nil
}

func (s *Service) ListCandidates(ctx context.Context, requestID string) ([]data.Candidate, error) {
	if _, err := s.store.GetRequest(ctx, requestID); err != nil {
		return nil, notFound(err, "Auftrag", requestID)
	}
	candidates, err := s.store.ListCandidates(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("kandidaten laden: %w", err)
	}
	return candidates, nil
}

// SetCandidateStatus lehnt einen offenen Kandidaten ab oder nimmt eine Ablehnung
// zurück. Auswahl und Abwahl laufen über AssignMaster und UnassignMaster.
func (s *Service) SetCandidateStatus(ctx context.Context, candidateID string, status data.CandidateStatus, reason string) (*data.Candidate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unbekannter status %q", ErrValidation, status)
	}
	if status == data.CandidateSelected {
		return nil, fmt.Errorf("%w: auswahl nur über die zuweisung", ErrInvalidTransition)
	}

	var (
		candidate *data.Candidate
		from      data.CandidateStatus
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		c, err := tx.GetCandidate(ctx, candidateID)
		if err != nil {
			return notFound(err, "Kandidat", candidateID)
		}
		r, err := tx.LockRequest(ctx, c.RequestID)
		if err != nil {
			return notFound(err, "Auftrag", c.RequestID)
		}
		if r.Status.Terminal() {
			return fmt.Errorf("%w: auftrag ist bereits %s", ErrInvalidTransition, r.Status)
		}
		if c.Status == data.CandidateSelected {
			return fmt.Errorf("%w: ausgewählter kandidat, zuerst zuweisung aufheben", ErrInvalidTransition)
		}

		candidate, from = c, c.Status
		if c.Status == status {
			return nil
		}
		if err := tx.UpdateCandidateStatus(ctx, c.ID, status); err != nil {
			return fmt.Errorf("kandidatenstatus setzen: %w", err)
		}
		candidate.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from == status {
		return candidate, nil
	}

	logger.Log.Info("Kandidatenstatus geändert:", zap.String("candidate_id", candidateID), zap.String("from", string(from)), zap.String("to", string(status)))

	s.publish(data.NewEvent(data.EventCandidateStatusChanged, candidate.RequestID, map[string]any{
		"candidate_id": candidate.ID,
		"master_id":    candidate.MasterID,
		"from":         from,
		"to":           status,
		"reason":       strings.TrimSpace(reason),
	}))
	s.invalidate(ctx)
	return candidate, nil
}

// AssignMaster weist dem Auftrag einen seiner offenen Kandidaten zu. Alle
// übrigen offenen Kandidaten werden abgelehnt.
func (s *Service) AssignMaster(ctx context.Context, requestID, masterID, assignedBy string) (*data.Assignment, error) {
	masterID = strings.TrimSpace(masterID)
	if masterID == "" {
		return nil, fmt.Errorf("%w: master_id fehlt", ErrValidation)
	}

	var (
		assignment *data.Assignment
		rejected   []data.Candidate
		from       data.RequestStatus
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		r, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "Auftrag", requestID)
		}
		if r.Status == data.StatusMasterAssigned && r.MasterID != nil && *r.MasterID == masterID {
			return fmt.Errorf("%w: meister %s ist bereits zugewiesen", ErrConflict, masterID)
		}
		if r.Status != data.StatusCandidatesCollecting && r.Status != data.StatusMasterSelection {
			return fmt.Errorf("%w: zuweisung im status %s nicht möglich", ErrInvalidTransition, r.Status)
		}

		c, err := tx.FindCandidate(ctx, requestID, masterID)
		if isNotFound(err) {
			return fmt.Errorf("%w: meister %s ist kein kandidat des auftrags", ErrValidation, masterID)
		}
		if err != nil {
			return fmt.Errorf("kandidat laden: %w", err)
		}
		if c.Status != data.CandidatePending {
			return fmt.Errorf("%w: kandidat ist %s", ErrInvalidTransition, c.Status)
		}

		m, err := tx.GetMaster(ctx, masterID)
		if err != nil {
			return notFound(err, "Meister", masterID)
		}
		if m.Status != data.MasterActive {
			return fmt.Errorf("%w: meister %s ist nicht freigeschaltet (%s)", ErrConflict, masterID, m.Status)
		}

		assignment, err = tx.UpsertAssignment(ctx, &data.Assignment{
			RequestID:   requestID,
			MasterID:    masterID,
			CandidateID: c.ID,
			AssignedBy:  strings.TrimSpace(assignedBy),
			AssignedAt:  s.now().UTC(),
			Active:      true,
		})
		if err != nil {
			return fmt.Errorf("zuweisung speichern: %w", err)
		}

		if err := tx.UpdateCandidateStatus(ctx, c.ID, data.CandidateSelected); err != nil {
			return fmt.Errorf("kandidat auswählen: %w", err)
		}
		rejected, err = tx.RejectPendingCandidates(ctx, requestID, c.ID)
		if err != nil {
			return fmt.Errorf("übrige kandidaten ablehnen: %w", err)
		}

		from = r.Status
		return tx.UpdateRequest(ctx, requestID, map[string]any{
			"status":    string(data.StatusMasterAssigned),
			"master_id": masterID,
		})
	})
	if err != nil {
		return nil, err
	}

	rejectedMasters := make([]string, 0, len(rejected))
	for _, c := range rejected {
		rejectedMasters = append(rejectedMasters, c.MasterID)
	}

	logger.Log.Info("Meister zugewiesen:", zap.String("request_id", requestID), zap.String("master_id", masterID), zap.Int("rejected", len(rejected)))

	s.publish(data.NewEvent(data.EventMasterAssigned, requestID, map[string]any{
		"master_id":           masterID,
		"candidate_id":        assignment.CandidateID,
		"assigned_by":         assignment.AssignedBy,
		"assigned_at":         assignment.AssignedAt,
		"previous_status":     from,
		"rejected_master_ids": rejectedMasters,
	}))
	s.invalidate(ctx)
	return assignment, nil
}

// UnassignMaster hebt die aktive Zuweisung auf. Der bisherige Meister wird
// abgelehnt, alle anderen abgelehnten Kandidaten stehen wieder zur Auswahl.
func (s *Service) UnassignMaster(ctx context.Context, requestID, reason string) (*data.Request, error) {
	var (
		request  *data.Request
		previous *data.Assignment
		reopened int64
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		r, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "Auftrag", requestID)
		}
		if r.Status != data.StatusMasterAssigned && r.Status != data.StatusScheduled {
			return fmt.Errorf("%w: aufheben im status %s nicht möglich", ErrInvalidTransition, r.Status)
		}

		a, err := tx.GetActiveAssignment(ctx, requestID)
		if isNotFound(err) {
			return fmt.Errorf("%w: keine aktive zuweisung", ErrInvalidTransition)
		}
		if err != nil {
			return fmt.Errorf("zuweisung laden: %w", err)
		}

		if err := tx.DeactivateAssignment(ctx, requestID); err != nil {
			return fmt.Errorf("zuweisung deaktivieren: %w", err)
		}
		if err := tx.UpdateCandidateStatus(ctx, a.CandidateID, data.CandidateRejected); err != nil {
			return fmt.Errorf("kandidat ablehnen: %w", err)
		}
		reopened, err = tx.ReopenRejectedCandidates(ctx, requestID, a.CandidateID)
		if err != nil {
			return fmt.Errorf("kandidaten wieder öffnen: %w", err)
		}
		err = tx.UpdateRequest(ctx, requestID, map[string]any{
			"status":       string(data.StatusMasterSelection),
			"master_id":    nil,
			"scheduled_at": nil,
		})
		if err != nil {
			return fmt.Errorf("auftragsstatus setzen: %w", err)
		}

		previous = a
		request, err = tx.GetRequest(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Zuweisung aufgehoben:", zap.String("request_id", requestID), zap.String("master_id", previous.MasterID), zap.Int64("reopened", reopened))

	s.publish(data.NewEvent(data.EventMasterUnassigned, requestID, map[string]any{
		"master_id":           previous.MasterID,
		"candidate_id":        previous.CandidateID,
		"reason":              strings.TrimSpace(reason),
		"reopened_candidates": reopened,
	}))
	s.invalidate(ctx)
	return request, nil
}

// UpdateRequestStatus führt einen Statuswechsel gemäß der Übergangstabelle aus.
// Zuweisen und Aufheben laufen über die eigenen Operationen.
func (s *Service) UpdateRequestStatus(ctx context.Context, requestID string, status data.RequestStatus, scheduledAt *time.Time) (*data.Request, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unbekannter status %q", ErrValidation, status)
	}
	if status == data.StatusMasterAssigned {
		return nil, fmt.Errorf("%w: zuweisung nur über assign", ErrInvalidTransition)
	}
	if status == data.StatusScheduled && scheduledAt == nil {
		return nil, fmt.Errorf("%w: scheduled_at fehlt", ErrValidation)
	}

	var (
		request        *data.Request
		from           data.RequestStatus
		changed        bool
		releasedMaster string
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		r, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "Auftrag", requestID)
		}
		from = r.Status

		fields := map[string]any{"status": string(status)}
		switch {
		case r.Status == status && status == data.StatusScheduled:
			// Termin verschieben
		case r.Status == status:
			request = r
			return nil
		case r.Status.HasMaster() && status == data.StatusMasterSelection:
			return fmt.Errorf("%w: zuweisung über unassign aufheben", ErrInvalidTransition)
		case !r.Status.CanTransition(status):
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, status)
		}

		switch status {
		case data.StatusScheduled:
			fields["scheduled_at"] = scheduledAt.UTC()
		case data.StatusCompleted:
			fields["completed_at"] = s.now().UTC()
		case data.StatusCancelled:
			// Zuweisung beenden, damit Auftrag und Kandidaten keinen Meister mehr führen
			a, err := tx.GetActiveAssignment(ctx, requestID)
			switch {
			case isNotFound(err):
			case err != nil:
				return fmt.Errorf("zuweisung laden: %w", err)
			default:
				if err := tx.DeactivateAssignment(ctx, requestID); err != nil {
					return fmt.Errorf("zuweisung deaktivieren: %w", err)
				}
				if err := tx.UpdateCandidateStatus(ctx, a.CandidateID, data.CandidateRejected); err != nil {
					return fmt.Errorf("kandidat ablehnen: %w", err)
				}
				releasedMaster = a.MasterID
			}
			fields["master_id"] = nil
		}
		if err := tx.UpdateRequest(ctx, requestID, fields); err != nil {
			return fmt.Errorf("auftragsstatus setzen: %w", err)
		}

		changed = true
		request, err = tx.GetRequest(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return request, nil
	}

	logger.Log.Info("Auftragsstatus geändert:", zap.String("request_id", requestID), zap.String("from", string(from)), zap.String("to", string(status)))

	payload := map[string]any{
		"from": from,
		"to":   status,
	}
	if request.ScheduledAt != nil {
		payload["scheduled_at"] = request.ScheduledAt
	}
	if request.MasterID != nil {
		payload["master_id"] = *request.MasterID
	}
	if releasedMaster != "" {
		payload["released_master_id"] = releasedMaster
	}
	s.publish(data.NewEvent(data.EventRequestStatusChanged, requestID, payload))
	s.invalidate(ctx)
	return request, nil
}
