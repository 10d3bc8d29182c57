package models

// UserRole represents the roles known to the pass-request API.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleDeanery UserRole = "deanery"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleDeanery, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Privileged roles review everyone's requests instead of only their own.
func (r UserRole) Privileged() bool {
	return r == RoleAdmin || r == RoleDeanery || r == RoleTeacher
}

// Group is a study group. Deleted groups stay in listings flagged as such.
type Group struct {
	GroupNumber int  `json:"groupNumber"`
	IsDeleted   bool `json:"isDeleted"`
}

// User is the profile returned by /user/profile. The requester embedded in a
// pass request uses the same shape with email, group and blocked flag often
// omitted.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email,omitempty"`
	FullName  string   `json:"fullName"`
	Role      UserRole `json:"role"`
	Group     *Group   `json:"group,omitempty"`
	IsBlocked bool     `json:"isBlocked"`
}

// GroupNumber returns the user's group number, or zero when none is set.
func (u User) GroupNumber() int {
	if u.Group == nil {
		return 0
	}
	return u.Group.GroupNumber
}
