package response

import "github.com/volunteerhub/volunteer-hub-api/internal/domain"

type ListUsersResponse struct {
	Users []domain.User `json:"users"`
}
