// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the portal role of an account.
type Role string

const (
	RoleAdmin             Role = "Admin"
	RoleElderlyManager    Role = "Gestor Adulto Mayor"
	RoleDisabilityManager Role = "Gestor Discapacidad"
)

// DefaultSecurityQuestion is stored for accounts created before security
// questions were configurable.
const DefaultSecurityQuestion = "¿Cuál es el nombre de tu primera mascota?"

type User struct {
	ID                 string
	UserName           string
	PasswordHash       string
	Role               Role
	UnitID             *string
	SecurityQuestion   string
	SecurityAnswerHash string
	CreatedAt          time.Time
}

// SecurityConfigured reports whether the account can take part in
// password recovery. An empty answer hash is the legacy "never set" marker.
func (u *User) SecurityConfigured() bool {
	return u.SecurityAnswerHash != "" && u.SecurityQuestion != ""
}
