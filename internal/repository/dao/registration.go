package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrDuplicateRegistration surfaces the (event, volunteer) uniqueness
	// constraint; concurrent duplicate inserts have exactly one winner.
	ErrDuplicateRegistration = errors.New("registration already exists for this event and volunteer")
	ErrStaleRegistration     = errors.New("registration was modified concurrently")
	ErrCapacityExceeded      = errors.New("event capacity exceeded")
)

type Registration struct {
	ID uint `gorm:"primaryKey"`

	EventID     uint `gorm:"not null;uniqueIndex:idx_registrations_event_volunteer,priority:1;index:idx_registrations_event_status,priority:1"`
	VolunteerID uint `gorm:"not null;uniqueIndex:idx_registrations_event_volunteer,priority:2"`

	VolunteerName  string `gorm:"not null"`
	VolunteerEmail string `gorm:"not null"`

	Status       string    `gorm:"not null;index:idx_registrations_event_status,priority:2"`
	RegisteredAt time.Time `gorm:"not null;index:idx_registrations_event_status,priority:3"`

	ApprovedBy      *uint
	RejectionReason string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type RegistrationDAO struct {
	db *gorm.DB
}

func NewRegistrationDAO(db *gorm.DB) *RegistrationDAO {
	return &RegistrationDAO{
		db: db,
	}
}

func (d *RegistrationDAO) Insert(ctx context.Context, registration Registration) (Registration, error) {
	result := d.db.WithContext(ctx).Create(&registration)
	if result.Error != nil {
		var err *pgconn.PgError
		if errors.As(result.Error, &err) &&
			err.Code == pgerrcode.UniqueViolation &&
			strings.Contains(err.Message, "idx_registrations_event_volunteer") {
			return Registration{}, ErrDuplicateRegistration
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

func (d *RegistrationDAO) FindByID(ctx context.Context, id uint) (Registration, error) {
	var registration Registration

	result := d.db.WithContext(ctx).First(&registration, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Registration{}, ErrRegistrationNotFound
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

func (d *RegistrationDAO) FindByEventAndVolunteer(ctx context.Context, eventID, volunteerID uint) (Registration, error) {
	var registration Registration

	result := d.db.WithContext(ctx).
		First(&registration, "event_id = ? AND volunteer_id = ?", eventID, volunteerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Registration{}, ErrRegistrationNotFound
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

// ListByEvent returns registrations most-recent-first; pending-approval
// queues ask for oldestFirst so reviewers work FIFO.
func (d *RegistrationDAO) ListByEvent(ctx context.Context, eventID uint, status string, offset, limit int, oldestFirst bool) ([]Registration, error) {
	var registrations []Registration

	order := "registered_at DESC"
	if oldestFirst {
		order = "registered_at ASC"
	}

	query := d.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order(order)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}

	if err := query.Find(&registrations).Error; err != nil {
		return nil, err
	}

	return registrations, nil
}

func (d *RegistrationDAO) ListByVolunteer(ctx context.Context, volunteerID uint) ([]Registration, error) {
	var registrations []Registration

	result := d.db.WithContext(ctx).
		Where("volunteer_id = ?", volunteerID).
		Order("registered_at DESC").
		Find(&registrations)
	if result.Error != nil {
		return nil, result.Error
	}

	return registrations, nil
}

func (d *RegistrationDAO) CountByEventAndStatus(ctx context.Context, eventID uint, status string) (int, error) {
	var count int64

	result := d.db.WithContext(ctx).
		Model(&Registration{}).
		Where("event_id = ? AND status = ?", eventID, status).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}

	return int(count), nil
}

// Reactivate reuses a cancelled row for re-registration. The row id is
// preserved across register/cancel/register cycles.
func (d *RegistrationDAO) Reactivate(ctx context.Context, id uint, registeredAt time.Time) (Registration, error) {
	result := d.db.WithContext(ctx).
		Model(&Registration{}).
		Where("id = ? AND status = ?", id, "CANCELLED").
		Updates(map[string]any{
			"status":           "PENDING",
			"registered_at":    registeredAt,
			"approved_by":      nil,
			"rejection_reason": "",
		})
	if result.Error != nil {
		return Registration{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := d.FindByID(ctx, id); err != nil {
			return Registration{}, err
		}

		return Registration{}, ErrStaleRegistration
	}

	return d.FindByID(ctx, id)
}

// UpdateStatus flips the status only if the row still holds fromStatus.
func (d *RegistrationDAO) UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string, set map[string]any) (Registration, error) {
	if set == nil {
		set = map[string]any{}
	}
	set["status"] = toStatus

	result := d.db.WithContext(ctx).
		Model(&Registration{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(set)
	if result.Error != nil {
		return Registration{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := d.FindByID(ctx, id); err != nil {
			return Registration{}, err
		}

		return Registration{}, ErrStaleRegistration
	}

	return d.FindByID(ctx, id)
}

// ApproveTx approves one pending registration and settles the event counter
// in a single transaction. The guarded counter increment serializes racing
// approvals on the event row: the loser re-evaluates against the committed
// counter and fails with ErrCapacityExceeded instead of overshooting. The
// counter is then overwritten with a fresh recount rather than trusted.
func (d *RegistrationDAO) ApproveTx(ctx context.Context, id, eventID, managerID uint) (Registration, int, error) {
	var (
		registration Registration
		count        int
	)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded increment; acquires the event row lock and fails the
		// transaction that would overshoot a bounded capacity.
		result := tx.Model(&Event{}).
			Where("id = ? AND (max_participants = 0 OR current_participants < max_participants)", eventID).
			UpdateColumn("current_participants", gorm.Expr("current_participants + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// The cached counter says full, but it may have drifted high.
			// Lock the row, recount, and fail only if the true count fills
			// the capacity; otherwise settle the counter and take the seat.
			var event Event
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrEventNotFound
				}

				return err
			}

			var approved int64
			if err := tx.Model(&Registration{}).
				Where("event_id = ? AND status = ?", eventID, "APPROVED").
				Count(&approved).Error; err != nil {
				return err
			}
			if event.MaxParticipants > 0 && int(approved) >= event.MaxParticipants {
				return ErrCapacityExceeded
			}

			if err := tx.Model(&Event{}).
				Where("id = ?", eventID).
				UpdateColumn("current_participants", int(approved)+1).Error; err != nil {
				return err
			}
		}

		result = tx.Model(&Registration{}).
			Where("id = ? AND status = ?", id, "PENDING").
			Updates(map[string]any{
				"status":      "APPROVED",
				"approved_by": managerID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.First(&Registration{}, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRegistrationNotFound
				}

				return err
			}

			return ErrStaleRegistration
		}

		// Self-healing settle: replace the incremented counter with the
		// true approved count and re-check the capacity bound against it.
		var n int64
		if err := tx.Model(&Registration{}).
			Where("event_id = ? AND status = ?", eventID, "APPROVED").
			Count(&n).Error; err != nil {
			return err
		}
		count = int(n)

		var event Event
		if err := tx.First(&event, eventID).Error; err != nil {
			return err
		}
		if event.MaxParticipants > 0 && count > event.MaxParticipants {
			return ErrCapacityExceeded
		}

		if err := tx.Model(&Event{}).
			Where("id = ?", eventID).
			UpdateColumn("current_participants", count).Error; err != nil {
			return err
		}

		if err := tx.First(&registration, id).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return Registration{}, 0, err
	}

	return registration, count, nil
}

// CancelTx cancels the registration and, when it held an approved seat,
// settles the event counter from a recount in the same transaction. The flip
// is guarded on the status the caller's guards were evaluated against: a row
// that was approved between the read and this write fails as stale instead
// of slipping past the cancellation cutoff with its seat still counted.
func (d *RegistrationDAO) CancelTx(ctx context.Context, id, eventID uint, fromStatus string) (Registration, error) {
	var registration Registration

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Registration{}).
			Where("id = ? AND status = ?", id, fromStatus).
			Update("status", "CANCELLED")
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.First(&Registration{}, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRegistrationNotFound
				}

				return err
			}

			return ErrStaleRegistration
		}

		if fromStatus == "APPROVED" {
			var n int64
			if err := tx.Model(&Registration{}).
				Where("event_id = ? AND status = ?", eventID, "APPROVED").
				Count(&n).Error; err != nil {
				return err
			}

			if err := tx.Model(&Event{}).
				Where("id = ?", eventID).
				UpdateColumn("current_participants", int(n)).Error; err != nil {
				return err
			}
		}

		if err := tx.First(&registration, id).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return Registration{}, err
	}

	return registration, nil
}

// CompleteByEvent bulk-marks approved registrations of a closed event.
func (d *RegistrationDAO) CompleteByEvent(ctx context.Context, eventID uint) (int, error) {
	result := d.db.WithContext(ctx).
		Model(&Registration{}).
		Where("event_id = ? AND status = ?", eventID, "APPROVED").
		Update("status", "COMPLETED")
	if result.Error != nil {
		return 0, result.Error
	}

	return int(result.RowsAffected), nil
}

// EventIDsChangedSince feeds the periodic counter reconciliation sweep.
func (d *RegistrationDAO) EventIDsChangedSince(ctx context.Context, since time.Time, limit int) ([]uint, error) {
	var ids []uint

	result := d.db.WithContext(ctx).
		Model(&Registration{}).
		Distinct("event_id").
		Where("updated_at >= ?", since).
		Limit(limit).
		Pluck("event_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}

	return ids, nil
}
