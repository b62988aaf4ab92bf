package domain

import "time"

type User struct {
	ID              string
	Phone           string
	FirstName       string
	LastName        string
	Email           string // optional
	IsPhoneVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
