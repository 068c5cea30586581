package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account of the library.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsBanned     bool
	BanReason    string
	BannedAt     *time.Time
	DOB          string
	Gender       string
	Address      string
	Phone        string
	ProfileImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	DOB          *string
	Gender       *string
	Address      *string
	Phone        *string
	ProfileImage *string
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.DOB == nil && p.Gender == nil && p.Address == nil && p.Phone == nil && p.ProfileImage == nil
}
