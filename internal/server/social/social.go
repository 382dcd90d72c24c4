// Package social verifies identity tokens issued by external sign-in
// providers and turns them into a Claim the account coordinator can trust.
package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Claim is a verified external identity.
type Claim struct {
	Provider models.Provider
	Subject  string
	Email    string
	Name     string
}

// Verifier checks one provider token against one client configuration.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claim, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, rawToken string) (*Claim, error)

func (f VerifierFunc) Verify(ctx context.Context, rawToken string) (*Claim, error) {
	return f(ctx, rawToken)
}

var ErrUnsupportedProvider = fmt.Errorf("unsupported provider: %w", common.ErrValidation)

// Registry holds the ordered candidate verifiers per provider. A token is
// accepted by the first candidate that verifies it, which lets one provider
// serve several client ids (web, iOS, Android).
type Registry struct {
	verifiers map[models.Provider][]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: map[models.Provider][]Verifier{}}
}

// Register appends candidates for provider.
func (r *Registry) Register(provider models.Provider, vs ...Verifier) *Registry {
	r.verifiers[provider] = append(r.verifiers[provider], vs...)
	return r
}

// Supports reports whether at least one verifier is registered for provider.
func (r *Registry) Supports(provider models.Provider) bool {
	return len(r.verifiers[provider]) > 0
}

// Verify runs the candidates of provider in order. When none accepts the
// token the result wraps common.ErrorUnauthorized, unless a candidate
// failed for an availability reason, in which case that failure is returned.
func (r *Registry) Verify(ctx context.Context, provider models.Provider, rawToken string) (*Claim, error) {
	candidates := r.verifiers[provider]
	if len(candidates) == 0 {
		return nil, ErrUnsupportedProvider
	}
	if rawToken == "" {
		return nil, fmt.Errorf("empty provider token: %w", common.ErrValidation)
	}

	var unavailable error
	for _, v := range candidates {
		claim, err := v.Verify(ctx, rawToken)
		if err == nil {
			if claim.Subject == "" || claim.Email == "" {
				return nil, fmt.Errorf("provider token lacks subject or email: %w", common.ErrorUnauthorized)
			}
			claim.Provider = provider
			claim.Email = common.NormalizeEmail(claim.Email)
			return claim, nil
		}
		if errors.Is(err, common.ErrUnavailable) && unavailable == nil {
			unavailable = err
		}
	}
	if unavailable != nil {
		return nil, unavailable
	}
	return nil, fmt.Errorf("%s token rejected: %w", provider, common.ErrorUnauthorized)
}
