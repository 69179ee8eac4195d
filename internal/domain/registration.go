package domain

import "time"

type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusApproved  RegistrationStatus = "APPROVED"
	RegistrationStatusRejected  RegistrationStatus = "REJECTED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
	RegistrationStatusCompleted RegistrationStatus = "COMPLETED"
)

type RegistrationAction string

const (
	RegistrationActionApprove RegistrationAction = "approve"
	RegistrationActionReject  RegistrationAction = "reject"
	RegistrationActionCancel  RegistrationAction = "cancel"
	// RegistrationActionReactivate reuses a cancelled row on re-registration
	// instead of inserting a duplicate.
	RegistrationActionReactivate RegistrationAction = "reactivate"
	RegistrationActionComplete   RegistrationAction = "complete"
)

var registrationTransitions = map[RegistrationStatus]map[RegistrationAction]RegistrationStatus{
	RegistrationStatusPending: {
		RegistrationActionApprove: RegistrationStatusApproved,
		RegistrationActionReject:  RegistrationStatusRejected,
		RegistrationActionCancel:  RegistrationStatusCancelled,
	},
	RegistrationStatusApproved: {
		RegistrationActionCancel:   RegistrationStatusCancelled,
		RegistrationActionComplete: RegistrationStatusCompleted,
	},
	RegistrationStatusCancelled: {
		RegistrationActionReactivate: RegistrationStatusPending,
	},
	// REJECTED and COMPLETED are terminal.
	RegistrationStatusRejected:  {},
	RegistrationStatusCompleted: {},
}

// NextRegistrationStatus resolves the transition table for (current, action).
func NextRegistrationStatus(current RegistrationStatus, action RegistrationAction) (RegistrationStatus, error) {
	next, ok := registrationTransitions[current][action]
	if !ok {
		return "", E(KindInvalidStatus, "cannot %v a registration in status %v", action, current)
	}

	return next, nil
}

type Registration struct {
	ID              uint               `json:"id"`
	EventID         uint               `json:"event_id"`
	VolunteerID     uint               `json:"volunteer_id"`
	VolunteerName   string             `json:"volunteer_name"`
	VolunteerEmail  string             `json:"volunteer_email"`
	Status          RegistrationStatus `json:"status"`
	RegisteredAt    time.Time          `json:"registered_at"`
	ApprovedBy      *uint              `json:"approved_by,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// IsCancellable reports whether the volunteer may still withdraw.
func (r *Registration) IsCancellable() bool {
	return r.Status == RegistrationStatusPending || r.Status == RegistrationStatusApproved
}
