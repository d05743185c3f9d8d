package model

import "time"

// User is the learner profile owned by the user service.
// Exactly one profile exists per account.
type User struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateProfileRequest is the payload for PUT /users/me.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}
