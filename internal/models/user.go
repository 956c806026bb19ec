package models

import "slices"

// User is an account. Username is the key and never changes.
type User struct {
	Username       string
	HashedPassword string
	Roles          []Role
	Enabled        bool
}

func (u *User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

func (u User) Clone() User {
	u.Roles = slices.Clone(u.Roles)
	return u
}

// UserRecord is the persisted form of a User.
type UserRecord struct {
	Username       string `gorm:"primaryKey;type:varchar(20)"`
	HashedPassword string `gorm:"type:varchar(255);not null"`
	Roles          string `gorm:"type:varchar(64);not null"`
	Enabled        bool   `gorm:"not null"`
}

func (UserRecord) TableName() string { return "users" }
