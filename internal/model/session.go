package model

// Role is asserted by the backend. Checks against it on this side only
// decide what to render; the backend authorizes every call on its own.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleUser      Role = "USER"
)

// Staff reports whether the role may use the admin console at all.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleModerator
}

type Session struct {
	Token      string      `json:"token"`
	User       SessionUser `json:"user"`
	IsLoggedIn bool        `json:"isLoggedIn"`
}

type SessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleName Role   `json:"roleName"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
