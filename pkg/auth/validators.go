package auth

// LoginPayload represents the login request body.
type LoginPayload struct {
	Username string `json:"username" mod:"trim" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required"`
}

// SetupPayload represents the initial setup request body.
type SetupPayload struct {
	Username string  `json:"username" mod:"trim" validate:"required,min=3,max=50"`
	Email    *string `json:"email" mod:"trim" validate:"omitempty,email"`
	FullName *string `json:"full_name" mod:"trim" validate:"omitempty,max=100"`
	Password string  `json:"password" validate:"required,min=8"`
}

// ChangePasswordPayload is the body of a self-service password change.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// StatusResponse represents the auth status response.
type StatusResponse struct {
	NeedsSetup bool `json:"needs_setup"`
}

// MeResponse represents the current user response.
type MeResponse struct {
	ID                 int      `json:"id"`
	Username           string   `json:"username"`
	Email              *string  `json:"email,omitempty"`
	FullName           *string  `json:"full_name,omitempty"`
	Role               string   `json:"role"`
	Grants             []string `json:"grants"`
	MustChangePassword bool     `json:"must_change_password"`
}

// LoginResponse is returned by login and setup. The token is also set as an
// HttpOnly cookie; it's included here for API clients that send it as a
// bearer token.
type LoginResponse struct {
	MeResponse
	Token string `json:"token"`
}
