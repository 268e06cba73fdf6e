package models

import "time"

// BroadcastRequest sends a message to every student of a stage.
type BroadcastRequest struct {
	Stage   string `json:"stage" validate:"required,max=60"`
	Message string `json:"message" validate:"required,max=500"`
}

// Notification is a broadcast message from a principal to a stage.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	PrincipalID string    `db:"principal_id" json:"principal_id"`
	Stage       string    `db:"stage" json:"stage"`
	SenderName  string    `db:"sender_name" json:"sender_name"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
