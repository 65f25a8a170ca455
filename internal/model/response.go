package model

import "github.com/google/uuid"

// Response is the success envelope returned by every flow.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// IDPayload carries a user ID in a Response.
type IDPayload struct {
	ID uuid.UUID `json:"id"`
}

// TokenPayload carries a session token in a Response.
type TokenPayload struct {
	Token string `json:"token"`
}
