package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
	"github.com/volunteerhub/volunteer-hub-api/internal/repository/dao"
)

type RegistrationDAO interface {
	Insert(ctx context.Context, registration dao.Registration) (dao.Registration, error)
	FindByID(ctx context.Context, id uint) (dao.Registration, error)
	FindByEventAndVolunteer(ctx context.Context, eventID, volunteerID uint) (dao.Registration, error)
	ListByEvent(ctx context.Context, eventID uint, status string, offset, limit int, oldestFirst bool) ([]dao.Registration, error)
	ListByVolunteer(ctx context.Context, volunteerID uint) ([]dao.Registration, error)
	CountByEventAndStatus(ctx context.Context, eventID uint, status string) (int, error)
	Reactivate(ctx context.Context, id uint, registeredAt time.Time) (dao.Registration, error)
	UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string, set map[string]any) (dao.Registration, error)
	ApproveTx(ctx context.Context, id, eventID, managerID uint) (dao.Registration, int, error)
	CancelTx(ctx context.Context, id, eventID uint, fromStatus string) (dao.Registration, error)
	CompleteByEvent(ctx context.Context, eventID uint) (int, error)
	EventIDsChangedSince(ctx context.Context, since time.Time, limit int) ([]uint, error)
}

type RegistrationRepository struct {
	dao RegistrationDAO
}

func NewRegistrationRepository(dao RegistrationDAO) *RegistrationRepository {
	return &RegistrationRepository{
		dao: dao,
	}
}

// Create inserts a fresh PENDING registration. A uniqueness violation on the
// (event, volunteer) pair is surfaced as AlreadyRegistered, which is how the
// losing side of a concurrent duplicate registration learns the outcome.
func (r *RegistrationRepository) Create(ctx context.Context, registration domain.Registration) (domain.Registration, error) {
	created, err := r.dao.Insert(ctx, registrationDomainToDao(registration))
	if err != nil {
		if errors.Is(err, dao.ErrDuplicateRegistration) {
			return domain.Registration{}, domain.E(domain.KindAlreadyRegistered,
				"volunteer %v already has a registration for event %v", registration.VolunteerID, registration.EventID)
		}

		return domain.Registration{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return registrationDaoToDomain(created), nil
}

func (r *RegistrationRepository) FindByID(ctx context.Context, id uint) (domain.Registration, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrRegistrationNotFound) {
			return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
		}

		return domain.Registration{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return registrationDaoToDomain(found), nil
}

func (r *RegistrationRepository) FindByEventAndVolunteer(ctx context.Context, eventID, volunteerID uint) (domain.Registration, error) {
	found, err := r.dao.FindByEventAndVolunteer(ctx, eventID, volunteerID)
	if err != nil {
		if errors.Is(err, dao.ErrRegistrationNotFound) {
			return domain.Registration{}, domain.E(domain.KindRegistrationNotFound,
				"no registration for event %v and volunteer %v", eventID, volunteerID)
		}

		return domain.Registration{}, fmt.Errorf("r.dao.FindByEventAndVolunteer -> %w", err)
	}

	return registrationDaoToDomain(found), nil
}

func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID uint, status domain.RegistrationStatus, offset, limit int, oldestFirst bool) ([]domain.Registration, error) {
	found, err := r.dao.ListByEvent(ctx, eventID, string(status), offset, limit, oldestFirst)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByEvent -> %w", err)
	}

	return registrationDaosToDomain(found), nil
}

func (r *RegistrationRepository) ListByVolunteer(ctx context.Context, volunteerID uint) ([]domain.Registration, error) {
	found, err := r.dao.ListByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByVolunteer -> %w", err)
	}

	return registrationDaosToDomain(found), nil
}

func (r *RegistrationRepository) CountApproved(ctx context.Context, eventID uint) (int, error) {
	count, err := r.dao.CountByEventAndStatus(ctx, eventID, string(domain.RegistrationStatusApproved))
	if err != nil {
		return 0, fmt.Errorf("r.dao.CountByEventAndStatus -> %w", err)
	}

	return count, nil
}

// Reactivate resets a cancelled registration back to PENDING, reusing the
// same row across re-registration cycles.
func (r *RegistrationRepository) Reactivate(ctx context.Context, id uint, registeredAt time.Time) (domain.Registration, error) {
	updated, err := r.dao.Reactivate(ctx, id, registeredAt)
	if err != nil {
		switch {
		case errors.Is(err, dao.ErrRegistrationNotFound):
			return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
		case errors.Is(err, dao.ErrStaleRegistration):
			return domain.Registration{}, domain.E(domain.KindAlreadyRegistered, "registration %v is no longer cancelled", id)
		}

		return domain.Registration{}, fmt.Errorf("r.dao.Reactivate -> %w", err)
	}

	return registrationDaoToDomain(updated), nil
}

// Transition applies a status flip with an optimistic precondition.
func (r *RegistrationRepository) Transition(ctx context.Context, id uint, from, to domain.RegistrationStatus, set map[string]any) (domain.Registration, error) {
	updated, err := r.dao.UpdateStatus(ctx, id, string(from), string(to), set)
	if err != nil {
		switch {
		case errors.Is(err, dao.ErrRegistrationNotFound):
			return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
		case errors.Is(err, dao.ErrStaleRegistration):
			return domain.Registration{}, domain.E(domain.KindInvalidStatus, "registration %v is no longer %v", id, from)
		}

		return domain.Registration{}, fmt.Errorf("r.dao.UpdateStatus -> %w", err)
	}

	return registrationDaoToDomain(updated), nil
}

// Approve runs the atomic approval: capacity re-validation, status flip and
// counter settle happen in one storage transaction.
func (r *RegistrationRepository) Approve(ctx context.Context, id, eventID, managerID uint) (domain.Registration, int, error) {
	approved, count, err := r.dao.ApproveTx(ctx, id, eventID, managerID)
	if err != nil {
		switch {
		case errors.Is(err, dao.ErrEventNotFound):
			return domain.Registration{}, 0, domain.E(domain.KindEventNotFound, "event %v does not exist", eventID)
		case errors.Is(err, dao.ErrRegistrationNotFound):
			return domain.Registration{}, 0, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
		case errors.Is(err, dao.ErrStaleRegistration):
			return domain.Registration{}, 0, domain.E(domain.KindInvalidStatus, "registration %v is not pending", id)
		case errors.Is(err, dao.ErrCapacityExceeded):
			return domain.Registration{}, 0, domain.E(domain.KindEventFull, "event %v has no remaining capacity", eventID)
		}

		return domain.Registration{}, 0, fmt.Errorf("r.dao.ApproveTx -> %w", err)
	}

	return registrationDaoToDomain(approved), count, nil
}

// Cancel flips the registration to CANCELLED, guarded on the status the
// caller observed, and settles the event counter when an approved seat is
// released. A row whose status moved since the read surfaces as
// ConcurrentModification so the caller re-reads and re-runs its guards.
func (r *RegistrationRepository) Cancel(ctx context.Context, id, eventID uint, from domain.RegistrationStatus) (domain.Registration, error) {
	cancelled, err := r.dao.CancelTx(ctx, id, eventID, string(from))
	if err != nil {
		switch {
		case errors.Is(err, dao.ErrRegistrationNotFound):
			return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
		case errors.Is(err, dao.ErrStaleRegistration):
			return domain.Registration{}, domain.E(domain.KindConcurrentModification, "registration %v was modified concurrently", id)
		}

		return domain.Registration{}, fmt.Errorf("r.dao.CancelTx -> %w", err)
	}

	return registrationDaoToDomain(cancelled), nil
}

func (r *RegistrationRepository) CompleteByEvent(ctx context.Context, eventID uint) (int, error) {
	completed, err := r.dao.CompleteByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.CompleteByEvent -> %w", err)
	}

	return completed, nil
}

func (r *RegistrationRepository) EventIDsChangedSince(ctx context.Context, since time.Time, limit int) ([]uint, error) {
	ids, err := r.dao.EventIDsChangedSince(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.EventIDsChangedSince -> %w", err)
	}

	return ids, nil
}

func registrationDomainToDao(r domain.Registration) dao.Registration {
	return dao.Registration{
		ID:              r.ID,
		EventID:         r.EventID,
		VolunteerID:     r.VolunteerID,
		VolunteerName:   r.VolunteerName,
		VolunteerEmail:  r.VolunteerEmail,
		Status:          string(r.Status),
		RegisteredAt:    r.RegisteredAt,
		ApprovedBy:      r.ApprovedBy,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func registrationDaoToDomain(r dao.Registration) domain.Registration {
	return domain.Registration{
		ID:              r.ID,
		EventID:         r.EventID,
		VolunteerID:     r.VolunteerID,
		VolunteerName:   r.VolunteerName,
		VolunteerEmail:  r.VolunteerEmail,
		Status:          domain.RegistrationStatus(r.Status),
		RegisteredAt:    r.RegisteredAt,
		ApprovedBy:      r.ApprovedBy,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func registrationDaosToDomain(registrations []dao.Registration) []domain.Registration {
	result := make([]domain.Registration, len(registrations))
	for i, r := range registrations {
		result[i] = registrationDaoToDomain(r)
	}

	return result
}
