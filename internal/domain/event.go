package domain

import "time"

type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPending   EventStatus = "PENDING"
	EventStatusOpened    EventStatus = "OPENED"
	EventStatusClosed    EventStatus = "CLOSED"
	EventStatusCancelled EventStatus = "CANCELLED"
	EventStatusRejected  EventStatus = "REJECTED"
)

// EventAction names a lifecycle transition on an event.
type EventAction string

const (
	EventActionSubmit   EventAction = "submit"
	EventActionApprove  EventAction = "approve"
	EventActionReject   EventAction = "reject"
	EventActionResubmit EventAction = "resubmit"
	EventActionClose    EventAction = "close"
	EventActionCancel   EventAction = "cancel"
	// EventActionDemote is the implicit PENDING demotion when an opened
	// event is edited without an explicit status in the patch.
	EventActionDemote EventAction = "demote"
)

// eventTransitions is the exhaustive transition table for the event
// lifecycle. Anything absent here is an illegal transition.
var eventTransitions = map[EventStatus]map[EventAction]EventStatus{
	EventStatusDraft: {
		EventActionSubmit: EventStatusPending,
		EventActionCancel: EventStatusCancelled,
	},
	EventStatusPending: {
		EventActionApprove: EventStatusOpened,
		EventActionReject:  EventStatusRejected,
		EventActionClose:   EventStatusClosed,
		EventActionCancel:  EventStatusCancelled,
	},
	EventStatusOpened: {
		EventActionClose:  EventStatusClosed,
		EventActionCancel: EventStatusCancelled,
		EventActionDemote: EventStatusPending,
	},
	EventStatusRejected: {
		EventActionResubmit: EventStatusPending,
	},
	// CLOSED and CANCELLED are terminal.
	EventStatusClosed:    {},
	EventStatusCancelled: {},
}

// NextEventStatus resolves the transition table for (current, action).
func NextEventStatus(current EventStatus, action EventAction) (EventStatus, error) {
	next, ok := eventTransitions[current][action]
	if !ok {
		return "", E(KindInvalidTransition, "cannot %v an event in status %v", action, current)
	}

	return next, nil
}

type Event struct {
	ID                  uint        `json:"id"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	Location            string      `json:"location"`
	StartTime           time.Time   `json:"start_time"`
	EndTime             time.Time   `json:"end_time"`
	MaxParticipants     int         `json:"max_participants"` // 0 = unlimited
	Status              EventStatus `json:"status"`
	CurrentParticipants int         `json:"current_participants"`
	EditCount           int         `json:"edit_count"`
	OrganizerID         uint        `json:"organizer_id"`
	ApprovedBy          *uint       `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time  `json:"approved_at,omitempty"`
	RejectionReason     string      `json:"rejection_reason,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// HasRequiredFields reports whether the event carries everything an
// administrator needs to review it.
func (e *Event) HasRequiredFields() bool {
	return e.Title != "" && e.Description != "" && e.Location != "" && !e.StartTime.IsZero()
}

// IsFull reports whether approvedCount exhausts the capacity. Unbounded
// events (MaxParticipants == 0) are never full.
func (e *Event) IsFull(approvedCount int) bool {
	return e.MaxParticipants > 0 && approvedCount >= e.MaxParticipants
}

// AcceptsRegistrationAt checks the registration cutoff window against the
// event start.
func (e *Event) AcceptsRegistrationAt(now time.Time, cutoff time.Duration) bool {
	return e.StartTime.Sub(now) >= cutoff
}

// IsTerminal reports whether the event can no longer change state.
func (e *Event) IsTerminal() bool {
	return e.Status == EventStatusClosed || e.Status == EventStatusCancelled
}

// EventPatch is an organizer/administrator update. Server-owned fields
// (organizer, participant counter, edit counter, timestamps) have no
// representation here, which is how they are stripped before applying.
type EventPatch struct {
	Title           *string      `json:"title,omitempty"`
	Description     *string      `json:"description,omitempty"`
	Location        *string      `json:"location,omitempty"`
	StartTime       *time.Time   `json:"start_time,omitempty"`
	EndTime         *time.Time   `json:"end_time,omitempty"`
	MaxParticipants *int         `json:"max_participants,omitempty"`
	Status          *EventStatus `json:"status,omitempty"`
}

// HasContentChanges reports whether the patch touches anything besides the
// status. Status-only patches (close, cancel) bypass the edit-limit guard.
func (p *EventPatch) HasContentChanges() bool {
	return p.Title != nil || p.Description != nil || p.Location != nil ||
		p.StartTime != nil || p.EndTime != nil || p.MaxParticipants != nil
}

// IsEmpty reports whether the patch changes nothing at all.
func (p *EventPatch) IsEmpty() bool {
	return !p.HasContentChanges() && p.Status == nil
}
