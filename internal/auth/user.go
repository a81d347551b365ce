package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is a signed-in identity, keyed by the identity provider's subject.
type Profile struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Email           string    `gorm:"uniqueIndex;not null"`
	Provider        string    `gorm:"size:32;not null"`
	ProviderSubject string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"column:created_datetime_utc;autoCreateTime"`
	ModifiedAt      time.Time `gorm:"column:modified_datetime_utc;autoUpdateTime"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// User is the identity carried by a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
