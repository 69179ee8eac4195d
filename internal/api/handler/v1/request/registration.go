package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type RejectRegistrationRequest struct {
	Reason string `json:"reason"`
}

func (req *RejectRegistrationRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Length(0, 500)),
	)
}
