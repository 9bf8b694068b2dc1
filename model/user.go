package model

import "time"

type User struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"unique"`
	Username      string `gorm:"unique;not null"`
	Password      string
	EmailVerified bool   `gorm:"default:false"`
	Role          string `gorm:"default:user;size:20"` // user, developer, admin
	LastLogin     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountAgeDays is used as a trust factor; new accounts carry a penalty.
func (u *User) AccountAgeDays(now time.Time) int {
	return int(now.Sub(u.CreatedAt).Hours() / 24)
}
