package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrEventNotFound = errors.New("event not found")
	// ErrStaleEvent means the status or edit counter observed by the caller
	// no longer matches the row; the transition was built on a stale snapshot.
	ErrStaleEvent = errors.New("event was modified concurrently")
)

type Event struct {
	ID uint `gorm:"primaryKey"`

	Title       string `gorm:"not null"`
	Description string
	Location    string

	StartTime time.Time `gorm:"not null;index:idx_events_status_start,priority:2"`
	EndTime   time.Time `gorm:"not null"`

	MaxParticipants     int    `gorm:"not null;default:0"` // 0 = unlimited
	Status              string `gorm:"not null;index:idx_events_status_start,priority:1"`
	CurrentParticipants int    `gorm:"not null;default:0"`
	EditCount           int    `gorm:"not null;default:0"`

	OrganizerID     uint `gorm:"not null;index"`
	ApprovedBy      *uint
	ApprovedAt      *time.Time
	RejectionReason string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

// InsertWithOwnerRegistration creates the event together with the organizer's
// auto-approved registration. Either both rows exist afterwards or neither.
func (d *EventDAO) InsertWithOwnerRegistration(ctx context.Context, event Event, owner Registration) (Event, Registration, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		owner.EventID = event.ID
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return Event{}, Registration{}, err
	}

	return event, owner, nil
}

func (d *EventDAO) FindByID(ctx context.Context, id uint) (Event, error) {
	var event Event

	result := d.db.WithContext(ctx).First(&event, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, result.Error
	}

	return event, nil
}

func (d *EventDAO) List(ctx context.Context, status string, offset, limit int) ([]Event, error) {
	var events []Event

	query := d.db.WithContext(ctx).Order("start_time ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (d *EventDAO) ListByOrganizer(ctx context.Context, organizerID uint) ([]Event, error) {
	var events []Event

	result := d.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("start_time ASC").
		Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}

	return events, nil
}

// UpdateStatus flips the status only if the row still holds fromStatus.
// Zero rows affected means the precondition no longer holds.
func (d *EventDAO) UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string, set map[string]any) (Event, error) {
	if set == nil {
		set = map[string]any{}
	}
	set["status"] = toStatus

	result := d.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(set)
	if result.Error != nil {
		return Event{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := d.FindByID(ctx, id); err != nil {
			return Event{}, err
		}

		return Event{}, ErrStaleEvent
	}

	return d.FindByID(ctx, id)
}

// ApplyPatch writes the patched columns only if the status and edit counter
// still match the snapshot the guards were evaluated against, and bumps the
// counter. The status precondition matters on its own: Approve and Submit go
// through UpdateStatus without touching the edit counter, so a patch built on
// a pre-transition snapshot must fail here rather than land unreviewed.
func (d *EventDAO) ApplyPatch(ctx context.Context, id uint, expectedStatus string, expectedEditCount int, set map[string]any) (Event, error) {
	set["edit_count"] = expectedEditCount + 1

	result := d.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND status = ? AND edit_count = ?", id, expectedStatus, expectedEditCount).
		Updates(set)
	if result.Error != nil {
		return Event{}, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := d.FindByID(ctx, id); err != nil {
			return Event{}, err
		}

		return Event{}, ErrStaleEvent
	}

	return d.FindByID(ctx, id)
}

// RecountParticipants derives the true approved count from the registration
// set. Pure read, no side effect.
func (d *EventDAO) RecountParticipants(ctx context.Context, eventID uint) (int, error) {
	var count int64

	result := d.db.WithContext(ctx).
		Model(&Registration{}).
		Where("event_id = ? AND status = ?", eventID, "APPROVED").
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}

	return int(count), nil
}

// SyncParticipantCount overwrites the cached counter with a fresh recount.
// This is the self-healing write: the counter is never trusted, only replaced.
func (d *EventDAO) SyncParticipantCount(ctx context.Context, eventID uint) (int, error) {
	var count int

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Registration{}).
			Where("event_id = ? AND status = ?", eventID, "APPROVED").
			Count(&n).Error; err != nil {
			return err
		}
		count = int(n)

		result := tx.Model(&Event{}).
			Where("id = ?", eventID).
			UpdateColumn("current_participants", count)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrEventNotFound
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}
