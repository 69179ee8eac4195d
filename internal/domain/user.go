package domain

import "time"

const (
	RoleVolunteer = "volunteer"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

type User struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanDecideEvents reports whether the user may approve or reject events.
func (u *User) CanDecideEvents() bool {
	return u.Role == RoleAdmin
}

// CanManageEvent reports whether the user may edit the event or decide its
// registrations.
func (u *User) CanManageEvent(e *Event) bool {
	return u.Role == RoleAdmin || (u.Role == RoleOrganizer && e.OrganizerID == u.ID)
}
