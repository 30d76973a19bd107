// Package store defines repository interfaces for persisted client state.
package store

import (
	"context"

	"github.com/mkb69/aaxconnect/internal/domain"
)

// AuthRecord is the persisted credential document: the device credentials
// plus the locale they were registered under.
type AuthRecord struct {
	Credentials *domain.DeviceCredentials `json:"auth_data"`
	LocaleCode  string                    `json:"locale_code"`
}

// AuthRepository persists one device credential set across process restarts.
type AuthRepository interface {
	Save(ctx context.Context, record *AuthRecord) error
	Load(ctx context.Context) (*AuthRecord, error)
	Delete(ctx context.Context) error
}

// LicenseRepository persists fetched licenses, voucher included, keyed by
// catalog item, for later re-validation.
type LicenseRepository interface {
	Save(ctx context.Context, asin string, info *domain.LicenseInfo) error
	Load(ctx context.Context, asin string) (*domain.LicenseInfo, error)
}

// Store aggregates all repositories.
type Store interface {
	Auth() AuthRepository
	Licenses() LicenseRepository
	Close() error
}
