package verification

import (
	"context"

	"payrouter/internal/apperr"
	"payrouter/internal/repository"

	"github.com/google/uuid"
)

// Known KYC providers.
const (
	ProviderStripe   = "Stripe"
	ProviderInternal = "Internal"
	ProviderSumsub   = "Sumsub"
)

// StateVerified is the only state that unlocks provider features.
const StateVerified = "verified"

// States holds one creator's KYC outcome per provider.
type States struct {
	creatorID uuid.UUID
	byName    map[string]string
}

// LoadStates reads the creator's verification rows.
func LoadStates(ctx context.Context, repo repository.VerificationRepository, creatorID uuid.UUID) (*States, error) {
	rows, err := repo.FindStates(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(rows))
	for _, row := range rows {
		byName[row.Provider] = row.State
	}
	return &States{creatorID: creatorID, byName: byName}, nil
}

// IsVerified reports whether the provider has verified the creator.
func (s *States) IsVerified(provider string) bool {
	return s.byName[provider] == StateVerified
}

// CheckRequirement fails unless the provider has verified the creator.
func (s *States) CheckRequirement(provider string) error {
	if !s.IsVerified(provider) {
		return apperr.New(apperr.AccessError, "User %s is not verified by %s", s.creatorID, provider)
	}
	return nil
}
