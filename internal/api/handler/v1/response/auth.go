package response

import "github.com/volunteerhub/volunteer-hub-api/internal/domain"

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}
