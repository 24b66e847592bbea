package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username    string      `json:"username" gorm:"uniqueIndex;size:150;not null"`
	Email       string      `json:"email" gorm:"uniqueIndex;size:254;not null"`
	Password    string      `json:"-" gorm:"not null"`
	IsStaff     bool        `json:"is_staff" gorm:"default:false"`
	IsSuperuser bool        `json:"is_superuser" gorm:"default:false"`
	LastLogin   *time.Time  `json:"last_login"`
	IsBlocked   bool        `json:"is_blocked" gorm:"default:false"`
	IsDeleted   bool        `json:"-" gorm:"default:false"`
	Profile     UserProfile `json:"profile" gorm:"foreignKey:UserID"`
}

// UserProfile carries the personal data sent to credit providers.
type UserProfile struct {
	gorm.Model
	UserID         uint    `json:"user_id" gorm:"uniqueIndex;not null"`
	Name           string  `json:"name" gorm:"default:''"`
	MailingAddress *string `json:"mailing_address"`
	Country        string  `json:"country" gorm:"size:2;default:''"` // ISO 3166-1 alpha-2
}
