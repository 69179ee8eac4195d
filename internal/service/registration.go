package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

var (
	ErrRegistrationNotFound = domain.ErrRegistrationNotFound
	ErrEventNotOpened       = domain.ErrEventNotOpened
	ErrRegistrationTooLate  = domain.ErrRegistrationTooLate
	ErrCancellationTooLate  = domain.ErrCancellationTooLate
	ErrAlreadyRegistered    = domain.ErrAlreadyRegistered
	ErrCannotCancel         = domain.ErrCannotCancel
	ErrEventFull            = domain.ErrEventFull
	ErrInvalidStatus        = domain.ErrInvalidStatus
)

// DefaultRegistrationCutoff is the minimum lead time before the event start
// for registering, and for cancelling an approved seat.
const DefaultRegistrationCutoff = 24 * time.Hour

const reconcileBatchSize = 100

type RegistrationRepository interface {
	Create(ctx context.Context, registration domain.Registration) (domain.Registration, error)
	FindByID(ctx context.Context, id uint) (domain.Registration, error)
	FindByEventAndVolunteer(ctx context.Context, eventID, volunteerID uint) (domain.Registration, error)
	ListByEvent(ctx context.Context, eventID uint, status domain.RegistrationStatus, offset, limit int, oldestFirst bool) ([]domain.Registration, error)
	ListByVolunteer(ctx context.Context, volunteerID uint) ([]domain.Registration, error)
	CountApproved(ctx context.Context, eventID uint) (int, error)
	Reactivate(ctx context.Context, id uint, registeredAt time.Time) (domain.Registration, error)
	Transition(ctx context.Context, id uint, from, to domain.RegistrationStatus, set map[string]any) (domain.Registration, error)
	Approve(ctx context.Context, id, eventID, managerID uint) (domain.Registration, int, error)
	Cancel(ctx context.Context, id, eventID uint, from domain.RegistrationStatus) (domain.Registration, error)
	CompleteByEvent(ctx context.Context, eventID uint) (int, error)
	EventIDsChangedSince(ctx context.Context, since time.Time, limit int) ([]uint, error)
}

// RegistrationService owns the registration ledger and the approval
// coordination between registrations and the event capacity counter.
type RegistrationService struct {
	repo      RegistrationRepository
	eventRepo EventRepository
	notifier  Notifier
	cutoff    time.Duration

	mu        sync.Mutex
	lastSweep time.Time
}

func NewRegistrationService(repo RegistrationRepository, eventRepo EventRepository, notifier Notifier, cutoff time.Duration) *RegistrationService {
	if cutoff <= 0 {
		cutoff = DefaultRegistrationCutoff
	}

	return &RegistrationService{
		repo:      repo,
		eventRepo: eventRepo,
		notifier:  notifier,
		cutoff:    cutoff,
		lastSweep: time.Now(),
	}
}

// Register creates a PENDING registration for the volunteer, or reactivates
// their previously cancelled one. Pending volunteers do not reserve a seat;
// capacity is checked against the approved count only.
func (s *RegistrationService) Register(ctx context.Context, eventID uint, volunteer domain.User) (domain.Registration, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.eventRepo.FindByID -> %w", err)
	}

	if event.Status != domain.EventStatusOpened {
		return domain.Registration{}, domain.E(domain.KindEventNotOpened,
			"event %v is not open for registration (status %v)", eventID, event.Status)
	}

	now := time.Now()
	if !event.AcceptsRegistrationAt(now, s.cutoff) {
		return domain.Registration{}, domain.E(domain.KindRegistrationTooLate,
			"registration closes %v before the event start", s.cutoff)
	}

	existing, err := s.repo.FindByEventAndVolunteer(ctx, eventID, volunteer.ID)
	switch {
	case err == nil:
		if existing.Status != domain.RegistrationStatusCancelled {
			return domain.Registration{}, domain.E(domain.KindAlreadyRegistered,
				"volunteer %v is already registered for event %v (status %v)", volunteer.ID, eventID, existing.Status)
		}

		if err = s.checkCapacity(ctx, &event); err != nil {
			return domain.Registration{}, err
		}

		// Re-registration reuses the cancelled row instead of creating a
		// duplicate for the same (event, volunteer) pair.
		reactivated, err := s.repo.Reactivate(ctx, existing.ID, now)
		if err != nil {
			return domain.Registration{}, fmt.Errorf("s.repo.Reactivate -> %w", err)
		}

		return reactivated, nil
	case !errors.Is(err, domain.ErrRegistrationNotFound):
		return domain.Registration{}, fmt.Errorf("s.repo.FindByEventAndVolunteer -> %w", err)
	}

	if err = s.checkCapacity(ctx, &event); err != nil {
		return domain.Registration{}, err
	}

	created, err := s.repo.Create(ctx, domain.Registration{
		EventID:        eventID,
		VolunteerID:    volunteer.ID,
		VolunteerName:  volunteer.Name,
		VolunteerEmail: volunteer.Email,
		Status:         domain.RegistrationStatusPending,
		RegisteredAt:   now,
	})
	if err != nil {
		// The losing side of a concurrent duplicate insert surfaces here
		// as AlreadyRegistered via the uniqueness constraint.
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			return domain.Registration{}, err
		}

		return domain.Registration{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

// Cancel withdraws the volunteer's registration. Approved seats honor the
// cancellation cutoff; pending registrations may be withdrawn at any time.
// The flip is guarded on the status the guards were evaluated against: if a
// manager approves the registration between the read and the write, the
// write fails and the whole check runs again on the fresh snapshot, so the
// newly approved seat faces the cutoff guard instead of slipping past it.
func (s *RegistrationService) Cancel(ctx context.Context, eventID uint, volunteerID uint) (domain.Registration, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.eventRepo.FindByID -> %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		registration, err := s.repo.FindByEventAndVolunteer(ctx, eventID, volunteerID)
		if err != nil {
			return domain.Registration{}, fmt.Errorf("s.repo.FindByEventAndVolunteer -> %w", err)
		}

		if !registration.IsCancellable() {
			return domain.Registration{}, domain.E(domain.KindCannotCancel,
				"registration %v cannot be cancelled (status %v)", registration.ID, registration.Status)
		}

		if registration.Status == domain.RegistrationStatusApproved && time.Until(event.StartTime) < s.cutoff {
			return domain.Registration{}, domain.E(domain.KindCancellationTooLate,
				"approved registrations cannot be cancelled within %v of the event start", s.cutoff)
		}

		cancelled, err := s.repo.Cancel(ctx, registration.ID, eventID, registration.Status)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				lastErr = err
				continue
			}

			return domain.Registration{}, fmt.Errorf("s.repo.Cancel -> %w", err)
		}

		return cancelled, nil
	}

	return domain.Registration{}, lastErr
}

// Approve confirms a pending registration. Capacity is re-validated at
// approval time inside the storage transaction, so two racing approvals of
// the last seat end with exactly one APPROVED and one EventFull.
func (s *RegistrationService) Approve(ctx context.Context, registrationID, managerID uint) (domain.Registration, error) {
	registration, err := s.repo.FindByID(ctx, registrationID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	event, err := s.eventRepo.FindByID(ctx, registration.EventID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.eventRepo.FindByID -> %w", err)
	}

	if _, err = domain.NextRegistrationStatus(registration.Status, domain.RegistrationActionApprove); err != nil {
		return domain.Registration{}, err
	}

	// Cheap pre-check on the recomputed count; the transaction re-validates
	// before committing the increment.
	approvedCount, err := s.repo.CountApproved(ctx, event.ID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.repo.CountApproved -> %w", err)
	}
	if event.IsFull(approvedCount) {
		return domain.Registration{}, domain.E(domain.KindEventFull,
			"event %v already has %v approved participants", event.ID, approvedCount)
	}

	approved, _, err := s.repo.Approve(ctx, registration.ID, event.ID, managerID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.repo.Approve -> %w", err)
	}

	go s.notifier.RegistrationDecided(approved, managerID)

	return approved, nil
}

// Reject declines a pending registration. The capacity counter is untouched.
func (s *RegistrationService) Reject(ctx context.Context, registrationID, managerID uint, reason string) (domain.Registration, error) {
	registration, err := s.repo.FindByID(ctx, registrationID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	next, err := domain.NextRegistrationStatus(registration.Status, domain.RegistrationActionReject)
	if err != nil {
		return domain.Registration{}, err
	}

	if reason == "" {
		reason = defaultRejectionReason
	}

	rejected, err := s.repo.Transition(ctx, registration.ID, registration.Status, next, map[string]any{
		"approved_by":      managerID,
		"rejection_reason": reason,
	})
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.repo.Transition -> %w", err)
	}

	go s.notifier.RegistrationDecided(rejected, managerID)

	return rejected, nil
}

// CompleteEvent bulk-marks the approved registrations of a closed event as
// COMPLETED.
func (s *RegistrationService) CompleteEvent(ctx context.Context, eventID uint) (int, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("s.eventRepo.FindByID -> %w", err)
	}

	if event.Status != domain.EventStatusClosed {
		return 0, domain.E(domain.KindInvalidTransition,
			"only closed events can be completed (event %v is %v)", eventID, event.Status)
	}

	completed, err := s.repo.CompleteByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("s.repo.CompleteByEvent -> %w", err)
	}

	return completed, nil
}

func (s *RegistrationService) GetRegistration(ctx context.Context, id uint) (domain.Registration, error) {
	registration, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return registration, nil
}

// ListEventRegistrations returns the event's registrations, optionally
// filtered by status. Lists are most-recent-first, except the pending queue
// which is oldest-first so reviewers see a FIFO backlog.
func (s *RegistrationService) ListEventRegistrations(ctx context.Context, eventID uint, status domain.RegistrationStatus, offset, limit int) ([]domain.Registration, error) {
	if _, err := s.eventRepo.FindByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("s.eventRepo.FindByID -> %w", err)
	}

	oldestFirst := status == domain.RegistrationStatusPending

	registrations, err := s.repo.ListByEvent(ctx, eventID, status, offset, limit, oldestFirst)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByEvent -> %w", err)
	}

	return registrations, nil
}

func (s *RegistrationService) ListVolunteerRegistrations(ctx context.Context, volunteerID uint) ([]domain.Registration, error) {
	registrations, err := s.repo.ListByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByVolunteer -> %w", err)
	}

	return registrations, nil
}

// ReconcileCounters recounts the approved registrations of every event whose
// registration set changed since the previous sweep and overwrites the
// cached counters. This is the periodic half of the self-healing discipline;
// the inline half runs inside the approve/cancel transactions.
func (s *RegistrationService) ReconcileCounters(ctx context.Context) error {
	s.mu.Lock()
	since := s.lastSweep
	sweepStart := time.Now()
	s.mu.Unlock()

	eventIDs, err := s.repo.EventIDsChangedSince(ctx, since, reconcileBatchSize)
	if err != nil {
		return fmt.Errorf("s.repo.EventIDsChangedSince -> %w", err)
	}

	for _, eventID := range eventIDs {
		count, err := s.eventRepo.SyncParticipantCount(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrEventNotFound) {
				continue
			}

			return fmt.Errorf("s.eventRepo.SyncParticipantCount -> %w", err)
		}

		zap.L().Debug("reconciled participant counter",
			zap.Uint("event_id", eventID),
			zap.Int("current_participants", count),
		)
	}

	s.mu.Lock()
	s.lastSweep = sweepStart
	s.mu.Unlock()

	return nil
}

func (s *RegistrationService) checkCapacity(ctx context.Context, event *domain.Event) error {
	approvedCount, err := s.repo.CountApproved(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("s.repo.CountApproved -> %w", err)
	}
	if event.IsFull(approvedCount) {
		return domain.E(domain.KindEventFull,
			"event %v already has %v approved participants", event.ID, approvedCount)
	}

	return nil
}
