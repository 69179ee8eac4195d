package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
	"github.com/volunteerhub/volunteer-hub-api/internal/repository"
)

var (
	ErrEventNotFound          = domain.ErrEventNotFound
	ErrInvalidTransition      = domain.ErrInvalidTransition
	ErrInvalidCapacity        = domain.ErrInvalidCapacity
	ErrInvalidTime            = domain.ErrInvalidTime
	ErrIncompleteEvent        = domain.ErrIncompleteEvent
	ErrEditLimitExceeded      = domain.ErrEditLimitExceeded
	ErrEventNotEditable       = domain.ErrEventNotEditable
	ErrCannotCloseEmptyEvent  = domain.ErrCannotCloseEmptyEvent
	ErrConcurrentModification = domain.ErrConcurrentModification
)

const defaultRejectionReason = "no reason provided"

// conflictRetries bounds the re-read cycles when an optimistic write loses
// to a concurrent transition. The guards are re-evaluated against the fresh
// snapshot on every attempt.
const conflictRetries = 2

type EventRepository interface {
	CreateWithOwner(ctx context.Context, event domain.Event, owner domain.Registration) (domain.Event, domain.Registration, error)
	FindByID(ctx context.Context, id uint) (domain.Event, error)
	List(ctx context.Context, status domain.EventStatus, offset, limit int) ([]domain.Event, error)
	ListByOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error)
	Transition(ctx context.Context, id uint, from, to domain.EventStatus, set map[string]any) (domain.Event, error)
	ApplyPatch(ctx context.Context, id uint, from domain.EventStatus, expectedEditCount int, set map[string]any) (domain.Event, error)
	RecountParticipants(ctx context.Context, eventID uint) (int, error)
	SyncParticipantCount(ctx context.Context, eventID uint) (int, error)
}

// EventService owns the event lifecycle: creation, administrator decisions,
// organizer edits and the guards tying them together.
type EventService struct {
	repo     EventRepository
	notifier Notifier
}

func NewEventService(repo EventRepository, notifier Notifier) *EventService {
	return &EventService{
		repo:     repo,
		notifier: notifier,
	}
}

// CreateEvent persists a new event together with the organizer's
// auto-approved registration; the two rows are created atomically. The event
// starts PENDING unless asDraft is set.
func (s *EventService) CreateEvent(ctx context.Context, event domain.Event, organizer domain.User, asDraft bool) (domain.Event, error) {
	if !event.HasRequiredFields() {
		return domain.Event{}, domain.E(domain.KindIncompleteEvent, "title, description, location and start time are required")
	}
	if !event.StartTime.Before(event.EndTime) {
		return domain.Event{}, domain.E(domain.KindInvalidTime, "start time %v must precede end time %v", event.StartTime, event.EndTime)
	}
	if event.MaxParticipants < 0 {
		return domain.Event{}, domain.E(domain.KindInvalidCapacity, "max participants cannot be negative")
	}

	event.Status = domain.EventStatusPending
	if asDraft {
		event.Status = domain.EventStatusDraft
	}
	event.OrganizerID = organizer.ID
	event.CurrentParticipants = 1 // the organizer's own approved seat
	event.EditCount = 0
	event.ApprovedBy = nil
	event.ApprovedAt = nil
	event.RejectionReason = ""

	now := time.Now()
	owner := domain.Registration{
		VolunteerID:    organizer.ID,
		VolunteerName:  organizer.Name,
		VolunteerEmail: organizer.Email,
		Status:         domain.RegistrationStatusApproved,
		RegisteredAt:   now,
		ApprovedBy:     &organizer.ID,
	}

	created, _, err := s.repo.CreateWithOwner(ctx, event, owner)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.CreateWithOwner -> %w", err)
	}

	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uint) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context, status domain.EventStatus, offset, limit int) ([]domain.Event, error) {
	events, err := s.repo.List(ctx, status, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("s.repo.List -> %w", err)
	}

	return events, nil
}

func (s *EventService) ListEventsByOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error) {
	events, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByOrganizer -> %w", err)
	}

	return events, nil
}

// ApproveEvent opens a pending event. The precondition is re-checked at
// write time, so a stale snapshot fails instead of clobbering a concurrent
// decision.
func (s *EventService) ApproveEvent(ctx context.Context, id, adminID uint) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	next, err := domain.NextEventStatus(event.Status, domain.EventActionApprove)
	if err != nil {
		return domain.Event{}, err
	}

	now := time.Now()
	approved, err := s.repo.Transition(ctx, id, event.Status, next, map[string]any{
		"approved_by":      adminID,
		"approved_at":      now,
		"rejection_reason": "",
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Transition -> %w", err)
	}

	go s.notifier.EventDecided(approved, adminID)

	return approved, nil
}

// RejectEvent rejects a pending event, recording the reason.
func (s *EventService) RejectEvent(ctx context.Context, id, adminID uint, reason string) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	next, err := domain.NextEventStatus(event.Status, domain.EventActionReject)
	if err != nil {
		return domain.Event{}, err
	}

	if reason == "" {
		reason = defaultRejectionReason
	}

	rejected, err := s.repo.Transition(ctx, id, event.Status, next, map[string]any{
		"approved_by":      adminID,
		"rejection_reason": reason,
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Transition -> %w", err)
	}

	go s.notifier.EventDecided(rejected, adminID)

	return rejected, nil
}

// SubmitEvent sends a draft or rejected event back into the administrator
// queue. Resubmission requires the required fields to still be populated.
func (s *EventService) SubmitEvent(ctx context.Context, id uint) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	action := domain.EventActionSubmit
	if event.Status == domain.EventStatusRejected {
		action = domain.EventActionResubmit
		if !event.HasRequiredFields() {
			return domain.Event{}, domain.E(domain.KindIncompleteEvent,
				"event %v is missing required fields and cannot be resubmitted", id)
		}
	}

	next, err := domain.NextEventStatus(event.Status, action)
	if err != nil {
		return domain.Event{}, err
	}

	submitted, err := s.repo.Transition(ctx, id, event.Status, next, map[string]any{
		"rejection_reason": "",
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Transition -> %w", err)
	}

	return submitted, nil
}

// UpdateEvent applies an organizer/administrator patch under the edit
// guards. Guards run against the pre-update snapshot and the post-patch
// values; the write is optimistic on the snapshot's status and edit counter,
// so a patch never lands on top of a concurrent transition. When the write
// loses such a race the whole operation re-reads and re-runs the guards, so
// an event approved mid-update still gets the demote-for-re-approval
// treatment instead of a silent live edit.
func (s *EventService) UpdateEvent(ctx context.Context, id uint, patch domain.EventPatch) (domain.Event, error) {
	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		updated, err := s.updateEventOnce(ctx, id, patch)
		if err != nil && errors.Is(err, domain.ErrConcurrentModification) {
			lastErr = err
			continue
		}

		return updated, err
	}

	return domain.Event{}, lastErr
}

func (s *EventService) updateEventOnce(ctx context.Context, id uint, patch domain.EventPatch) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	if event.IsTerminal() {
		return domain.Event{}, domain.E(domain.KindEventNotEditable, "event %v is %v", id, event.Status)
	}
	if patch.IsEmpty() {
		return event, nil
	}

	if patch.MaxParticipants != nil {
		if *patch.MaxParticipants < 0 {
			return domain.Event{}, domain.E(domain.KindInvalidCapacity, "max participants cannot be negative")
		}
		if *patch.MaxParticipants > 0 && *patch.MaxParticipants < event.CurrentParticipants {
			return domain.Event{}, domain.E(domain.KindInvalidCapacity,
				"max participants %v is below the current approved count %v", *patch.MaxParticipants, event.CurrentParticipants)
		}
	}

	start, end := event.StartTime, event.EndTime
	if patch.StartTime != nil {
		start = *patch.StartTime
	}
	if patch.EndTime != nil {
		end = *patch.EndTime
	}
	if (patch.StartTime != nil || patch.EndTime != nil) && !start.Before(end) {
		return domain.Event{}, domain.E(domain.KindInvalidTime, "start time %v must precede end time %v", start, end)
	}

	// One content edit is allowed while OPENED; after that the organizer
	// must wait for re-approval. Status-only patches (close, cancel) are
	// not content edits.
	if event.Status == domain.EventStatusOpened && patch.HasContentChanges() && event.EditCount >= 1 {
		return domain.Event{}, domain.E(domain.KindEditLimitExceeded,
			"event %v has already been edited while opened", id)
	}

	set := repository.PatchColumns(patch)

	switch {
	case patch.Status != nil:
		next, err := s.statusPatchTarget(event, *patch.Status)
		if err != nil {
			return domain.Event{}, err
		}
		set["status"] = string(next)
	case event.Status == domain.EventStatusOpened:
		// Unreviewed edits to a live event require re-approval: demote to
		// PENDING and clear the prior decision.
		next, err := domain.NextEventStatus(event.Status, domain.EventActionDemote)
		if err != nil {
			return domain.Event{}, err
		}
		set["status"] = string(next)
		set["approved_by"] = nil
		set["approved_at"] = nil
	}

	updated, err := s.repo.ApplyPatch(ctx, id, event.Status, event.EditCount, set)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.ApplyPatch -> %w", err)
	}

	return updated, nil
}

// statusPatchTarget validates an explicit status carried in a patch. Only
// close and cancel may be requested this way; approval decisions have their
// own operations.
func (s *EventService) statusPatchTarget(event domain.Event, requested domain.EventStatus) (domain.EventStatus, error) {
	switch requested {
	case domain.EventStatusClosed:
		if event.CurrentParticipants == 0 {
			return "", domain.E(domain.KindCannotCloseEmptyEvent, "event %v has no approved participants", event.ID)
		}

		return domain.NextEventStatus(event.Status, domain.EventActionClose)
	case domain.EventStatusCancelled:
		return domain.NextEventStatus(event.Status, domain.EventActionCancel)
	default:
		return "", domain.E(domain.KindInvalidTransition, "status %v cannot be set directly", requested)
	}
}
