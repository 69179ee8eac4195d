package response

import "github.com/volunteerhub/volunteer-hub-api/internal/domain"

type ListRegistrationsResponse struct {
	Registrations []domain.Registration `json:"registrations"`
}
