package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email        string `gorm:"column:email;uniqueIndex"`
	PasswordHash string `gorm:"column:password_hash"`
	IsVerified   bool   `gorm:"column:is_verified;default:false"`
	IsAdmin      bool   `gorm:"column:is_admin;default:false"`

	// VerificationCode and CodeExpiresAt are either both NULL (no code
	// outstanding) or both set. They are cleared together on successful
	// verification and on lazy expiry invalidation.
	VerificationCode *string    `gorm:"column:verification_code;size:10"`
	CodeExpiresAt    *time.Time `gorm:"column:code_expires_at"`
}
