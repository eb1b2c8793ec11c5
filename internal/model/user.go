package model

import "time"

type User struct {
	ID           int64
	Identifier   string
	PasswordHash string
	RoleID       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserInfo struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
	RoleID     int    `json:"roleId"`
}

func (u *User) Info() *UserInfo {
	return &UserInfo{
		ID:         u.ID,
		Identifier: u.Identifier,
		RoleID:     u.RoleID,
	}
}
