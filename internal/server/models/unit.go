package models

import "time"

// Unit is a consejo comunal, the organizational unit a user belongs to.
type Unit struct {
	ID           string
	Name         string
	Parish       string
	Municipality string
	State        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
