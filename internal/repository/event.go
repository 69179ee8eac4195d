package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
	"github.com/volunteerhub/volunteer-hub-api/internal/repository/dao"
)

type EventDAO interface {
	InsertWithOwnerRegistration(ctx context.Context, event dao.Event, owner dao.Registration) (dao.Event, dao.Registration, error)
	FindByID(ctx context.Context, id uint) (dao.Event, error)
	List(ctx context.Context, status string, offset, limit int) ([]dao.Event, error)
	ListByOrganizer(ctx context.Context, organizerID uint) ([]dao.Event, error)
	UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string, set map[string]any) (dao.Event, error)
	ApplyPatch(ctx context.Context, id uint, expectedStatus string, expectedEditCount int, set map[string]any) (dao.Event, error)
	RecountParticipants(ctx context.Context, eventID uint) (int, error)
	SyncParticipantCount(ctx context.Context, eventID uint) (int, error)
}

type EventRepository struct {
	dao EventDAO
}

func NewEventRepository(dao EventDAO) *EventRepository {
	return &EventRepository{
		dao: dao,
	}
}

// CreateWithOwner persists the event and the organizer's auto-approved
// registration atomically.
func (r *EventRepository) CreateWithOwner(ctx context.Context, event domain.Event, owner domain.Registration) (domain.Event, domain.Registration, error) {
	createdEvent, createdOwner, err := r.dao.InsertWithOwnerRegistration(ctx, r.domainToDao(event), registrationDomainToDao(owner))
	if err != nil {
		return domain.Event{}, domain.Registration{}, fmt.Errorf("r.dao.InsertWithOwnerRegistration -> %w", err)
	}

	return r.daoToDomain(createdEvent), registrationDaoToDomain(createdOwner), nil
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (domain.Event, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrEventNotFound) {
			return domain.Event{}, domain.E(domain.KindEventNotFound, "event %v does not exist", id)
		}

		return domain.Event{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *EventRepository) List(ctx context.Context, status domain.EventStatus, offset, limit int) ([]domain.Event, error) {
	found, err := r.dao.List(ctx, string(status), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.List -> %w", err)
	}

	return r.daosToDomain(found), nil
}

func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error) {
	found, err := r.dao.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByOrganizer -> %w", err)
	}

	return r.daosToDomain(found), nil
}

// Transition applies a status flip with an optimistic precondition on the
// status observed by the caller. A stale snapshot fails as InvalidTransition
// instead of silently overwriting a concurrent transition.
func (r *EventRepository) Transition(ctx context.Context, id uint, from, to domain.EventStatus, set map[string]any) (domain.Event, error) {
	updated, err := r.dao.UpdateStatus(ctx, id, string(from), string(to), set)
	if err != nil {
		switch {
		case errors.Is(err, dao.ErrEventNotFound):
			return domain.Event{}, domain.E(domain.KindEventNotFound, "event %v does not exist", id)
		case errors.Is(err, dao.ErrStaleEvent):
			return domain.Event{}, domain.E(domain.KindInvalidTransition, "event %v is no longer %v", id, from)
		}

		return domain.Event{}, fmt.Errorf("r.dao.UpdateStatus -> %w", err)
	}

	return r.daoToDomain(updated), nil
}

// ApplyPatch writes patched columns guarded by the status and edit counter
// observed in the pre-update snapshot. A stale snapshot surfaces as
// ConcurrentModification so the caller can re-read and re-run its guards.
func (r *EventRepository) ApplyPatch(ctx context.Context, id uint, from domain.EventStatus, expectedEditCount int, set map[string]any) (domain.Event, error) {
	updated, err := r.dao.ApplyPatch(ctx, id, string(from), expectedEditCount, set)
	if err != nil {
		switch {
		case errors.Is(err, dao.ErrEventNotFound):
			return domain.Event{}, domain.E(domain.KindEventNotFound, "event %v does not exist", id)
		case errors.Is(err, dao.ErrStaleEvent):
			return domain.Event{}, domain.E(domain.KindConcurrentModification, "event %v was modified concurrently", id)
		}

		return domain.Event{}, fmt.Errorf("r.dao.ApplyPatch -> %w", err)
	}

	return r.daoToDomain(updated), nil
}

func (r *EventRepository) RecountParticipants(ctx context.Context, eventID uint) (int, error) {
	count, err := r.dao.RecountParticipants(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.RecountParticipants -> %w", err)
	}

	return count, nil
}

func (r *EventRepository) SyncParticipantCount(ctx context.Context, eventID uint) (int, error) {
	count, err := r.dao.SyncParticipantCount(ctx, eventID)
	if err != nil {
		if errors.Is(err, dao.ErrEventNotFound) {
			return 0, domain.E(domain.KindEventNotFound, "event %v does not exist", eventID)
		}

		return 0, fmt.Errorf("r.dao.SyncParticipantCount -> %w", err)
	}

	return count, nil
}

func (r *EventRepository) domainToDao(e domain.Event) dao.Event {
	return dao.Event{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		Location:            e.Location,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		MaxParticipants:     e.MaxParticipants,
		Status:              string(e.Status),
		CurrentParticipants: e.CurrentParticipants,
		EditCount:           e.EditCount,
		OrganizerID:         e.OrganizerID,
		ApprovedBy:          e.ApprovedBy,
		ApprovedAt:          e.ApprovedAt,
		RejectionReason:     e.RejectionReason,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func (r *EventRepository) daoToDomain(e dao.Event) domain.Event {
	return domain.Event{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		Location:            e.Location,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		MaxParticipants:     e.MaxParticipants,
		Status:              domain.EventStatus(e.Status),
		CurrentParticipants: e.CurrentParticipants,
		EditCount:           e.EditCount,
		OrganizerID:         e.OrganizerID,
		ApprovedBy:          e.ApprovedBy,
		ApprovedAt:          e.ApprovedAt,
		RejectionReason:     e.RejectionReason,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func (r *EventRepository) daosToDomain(events []dao.Event) []domain.Event {
	result := make([]domain.Event, len(events))
	for i, e := range events {
		result[i] = r.daoToDomain(e)
	}

	return result
}

// PatchColumns builds the column set for an event patch. Only fields present
// in the patch appear; server-owned columns are never written from here.
func PatchColumns(patch domain.EventPatch) map[string]any {
	set := map[string]any{}

	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.StartTime != nil {
		set["start_time"] = *patch.StartTime
	}
	if patch.EndTime != nil {
		set["end_time"] = *patch.EndTime
	}
	if patch.MaxParticipants != nil {
		set["max_participants"] = *patch.MaxParticipants
	}

	return set
}
