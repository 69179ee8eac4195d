package request

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

var (
	errEndBeforeStart = errors.New("end_time must be after start_time")
	errNegativeLimit  = errors.New("max_participants cannot be negative")
)

type CreateEventRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxParticipants int       `json:"max_participants"`
	Draft           bool      `json:"draft"`
}

func (req *CreateEventRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Description, validation.Required, validation.Length(2, 2000)),
		validation.Field(&req.Location, validation.Required, validation.Length(2, 200)),
		validation.Field(&req.StartTime, validation.Required),
		validation.Field(&req.EndTime, validation.Required),
	)
	if err != nil {
		return err
	}

	if !req.EndTime.After(req.StartTime) {
		return errEndBeforeStart
	}

	if req.MaxParticipants < 0 {
		return errNegativeLimit
	}

	return nil
}

type UpdateEventRequest struct {
	Title           *string             `json:"title"`
	Description     *string             `json:"description"`
	Location        *string             `json:"location"`
	StartTime       *time.Time          `json:"start_time"`
	EndTime         *time.Time          `json:"end_time"`
	MaxParticipants *int                `json:"max_participants"`
	Status          *domain.EventStatus `json:"status"`
}

func (req *UpdateEventRequest) Validate() error {
	if req.Title != nil {
		if err := validation.Validate(*req.Title, validation.Required, validation.Length(2, 100)); err != nil {
			return err
		}
	}

	if req.Location != nil {
		if err := validation.Validate(*req.Location, validation.Required, validation.Length(2, 200)); err != nil {
			return err
		}
	}

	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		return errEndBeforeStart
	}

	if req.MaxParticipants != nil && *req.MaxParticipants < 0 {
		return errNegativeLimit
	}

	return nil
}

// ToPatch converts the request into the patch the workflow engine applies.
// Anything the client is not allowed to set has no field here to begin with.
func (req *UpdateEventRequest) ToPatch() domain.EventPatch {
	return domain.EventPatch{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
		Status:          req.Status,
	}
}

type RejectEventRequest struct {
	Reason string `json:"reason"`
}

func (req *RejectEventRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Length(0, 500)),
	)
}
