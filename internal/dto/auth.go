package dto

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,passemail"`
	Password string `json:"password" validate:"required"`
}

// RegistrationRequest is the POST /auth/registration payload. ConfirmPassword
// is checked locally and never sent.
type RegistrationRequest struct {
	FullName        string `json:"fullName" validate:"required"`
	Email           string `json:"email" validate:"required,passemail"`
	GroupNumber     *int   `json:"groupNumber,omitempty" validate:"omitempty,gt=0"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
}

// EditProfileRequest carries the edited profile form. Only fields that differ
// from the current profile end up in the PATCH body.
type EditProfileRequest struct {
	FullName    string `validate:"required"`
	Email       string `validate:"required,passemail"`
	GroupNumber *int   `validate:"omitempty,gt=0"`
}

// ProfilePatch is the PATCH /user/profile body.
type ProfilePatch struct {
	FullName *string `json:"fullName,omitempty"`
	Group    *int    `json:"group,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Empty reports whether nothing changed.
func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.Group == nil && p.Email == nil
}
