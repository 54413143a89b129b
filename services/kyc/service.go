package kyc

import (
	"context"
	"time"

	"grovevest-settlement/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Provider answers the two questions the eligibility guard asks. Backed by
// the shared store here; a remote KYC vendor client would satisfy the same
// interface. WithTrx lets callers holding an open transaction read through
// it instead of drawing a second connection from the pool.
type Provider interface {
	WithTrx(tx *gorm.DB) Provider
	IsVerified(ctx context.Context, userID string) (bool, error)
	IsExpired(ctx context.Context, userID string) (bool, error)
}

type dbProvider struct {
	profiles repository.Repository[Profile]
}

type ProviderParams struct {
	fx.In
	DB *gorm.DB
}

func NewProvider(p ProviderParams) Provider {
	return &dbProvider{
		profiles: repository.ProvideStore[Profile](p.DB),
	}
}

func (p *dbProvider) WithTrx(tx *gorm.DB) Provider {
	if tx == nil {
		return p
	}
	return &dbProvider{profiles: p.profiles.WithTrx(tx)}
}

func (p *dbProvider) IsVerified(ctx context.Context, userID string) (bool, error) {
	profile, err := p.profiles.FindOne(ctx, &Profile{UserID: userID})
	if err != nil {
		return false, err
	}
	if profile == nil {
		return false, nil
	}
	return profile.Status == StatusVerified, nil
}

func (p *dbProvider) IsExpired(ctx context.Context, userID string) (bool, error) {
	profile, err := p.profiles.FindOne(ctx, &Profile{UserID: userID})
	if err != nil {
		return false, err
	}
	if profile == nil || profile.ExpiresAt == nil {
		return false, nil
	}
	return profile.ExpiresAt.Before(time.Now()), nil
}
