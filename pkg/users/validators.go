package users

// CreateUserPayload represents the request body for creating a user.
type CreateUserPayload struct {
	Username             string  `json:"username" validate:"required,min=3,max=50" mod:"trim"`
	Email                *string `json:"email" validate:"omitempty,email" mod:"trim"`
	FullName             *string `json:"full_name" validate:"omitempty,max=100" mod:"trim"`
	Password             string  `json:"password" validate:"required,min=8"`
	Role                 string  `json:"role" validate:"required,oneof=admin librarian viewer" mod:"trim,lcase"`
	RequirePasswordReset bool    `json:"require_password_reset"`
}

// UpdateUserPayload represents the request body for updating a user. The
// username can't be changed.
type UpdateUserPayload struct {
	Email    *string `json:"email" validate:"omitempty,email" mod:"trim"`
	FullName *string `json:"full_name" validate:"omitempty,max=100" mod:"trim"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin librarian viewer" mod:"trim,lcase"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	// RequirePasswordReset only applies together with Password.
	RequirePasswordReset bool `json:"require_password_reset"`
}

// ListUsersQuery represents the query parameters for listing users.
type ListUsersQuery struct {
	Limit    int     `query:"limit" default:"50" validate:"min=1,max=200"`
	Offset   int     `query:"offset" default:"0" validate:"min=0"`
	Role     *string `query:"role" validate:"omitempty,oneof=admin librarian viewer"`
	IsActive *bool   `query:"is_active"`
	Search   *string `query:"search" mod:"trim"`
}
