package dto

// Presence checks live in the application layer so the caller gets the
// same message whichever transport is used. Tags here only reject
// malformed values.

type SignupRequest struct {
	Name            string `json:"name" validate:"max=40"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	// Role is accepted for compatibility and ignored.
	Role string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"omitempty,max=254"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

// UpdateMeRequest uses pointers so absent fields are left untouched.
// Password fields are decoded only to be refused.
type UpdateMeRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=40"`
	Email           *string `json:"email" validate:"omitempty,email,max=254"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (r UpdateMeRequest) TouchesPassword() bool {
	return r.Password != nil || r.PasswordConfirm != nil
}
