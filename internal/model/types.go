package model

import (
	"time"

	"github.com/google/uuid"
)

// Role governs authorization for admin-gated operations.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// AccountStatus is the document-verification state of an account,
// independent of phone verification.
type AccountStatus string

const (
	StatusPending  AccountStatus = "PENDING"
	StatusVerified AccountStatus = "VERIFIED"
	StatusRejected AccountStatus = "REJECTED"
)

// User represents a user record. Phone and email are globally unique.
// OTPHash/OTPExpiresAt describe at most one outstanding code; issuing a
// new code overwrites the previous one.
type User struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Phone           string
	Email           *string
	Password        string
	OTPHash         *string
	OTPExpiresAt    *time.Time
	IsPhoneVerified bool
	AccountStatus   *AccountStatus
	Role            Role
	Country         *string
	DocType         *string
	DocNumber       *string
	DocPath         *string
	ProfilePath     *string
	Gender          *string
	MaritalStatus   *string
	DateOfBirth     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublicUser is the read-facing projection of a User with credential and
// OTP fields stripped.
type PublicUser struct {
	ID              uuid.UUID      `json:"id"`
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	Phone           string         `json:"phone"`
	Email           *string        `json:"email"`
	IsPhoneVerified bool           `json:"isPhoneVerified"`
	AccountStatus   *AccountStatus `json:"accountStatus"`
	Role            Role           `json:"role"`
	Country         *string        `json:"country"`
	DocType         *string        `json:"docType"`
	DocNumber       *string        `json:"docNumber"`
	DocPath         *string        `json:"docPath"`
	ProfilePath     *string        `json:"profilePath"`
	Gender          *string        `json:"gender"`
	MaritalStatus   *string        `json:"maritalStatus"`
	DateOfBirth     *time.Time     `json:"dob"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Public returns the secret-stripped projection of u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		Email:           u.Email,
		IsPhoneVerified: u.IsPhoneVerified,
		AccountStatus:   u.AccountStatus,
		Role:            u.Role,
		Country:         u.Country,
		DocType:         u.DocType,
		DocNumber:       u.DocNumber,
		DocPath:         u.DocPath,
		ProfilePath:     u.ProfilePath,
		Gender:          u.Gender,
		MaritalStatus:   u.MaritalStatus,
		DateOfBirth:     u.DateOfBirth,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// EmailOrEmpty returns the email value or "" when absent.
func (u User) EmailOrEmpty() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
