package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Profiles struct {
	DB *gorm.DB
}

// Upsert finds the profile for an identity, creating it on first sign-in
// and refreshing the email when the provider reports a new one.
func (p *Profiles) Upsert(ctx context.Context, id Identity) (Profile, error) {
	var out Profile
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND provider_subject = ?", id.Provider, id.Subject).First(&out).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = Profile{Email: id.Email, Provider: id.Provider, ProviderSubject: id.Subject}
			return tx.Create(&out).Error
		}
		if err != nil {
			return err
		}
		if out.Email != id.Email {
			out.Email = id.Email
			return tx.Model(&out).Update("email", id.Email).Error
		}
		return nil
	})
	return out, err
}
