// Package otp issues and checks the six-digit one-time passcodes that gate
// account verification, password reset and account deletion.
//
// Every account has a single challenge slot. Issuing a code for any purpose
// overwrites whatever was pending, so a deletion code invalidates an unused
// signup code and vice versa.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// DefaultTTL is the lifetime of a freshly issued code.
const DefaultTTL = 10 * time.Minute

const (
	codeMin = 100000
	codeMax = 999999
)

// Purpose tells the mailer which message to send. It is not stored.
type Purpose string

const (
	PurposeSignup          Purpose = "signup"
	PurposeForgotPassword  Purpose = "forgotPassword"
	PurposeAccountDeletion Purpose = "accountDeletion"
)

var (
	ErrNoChallenge = fmt.Errorf("no pending otp: %w", common.ErrorNotFound)
	ErrMismatch    = fmt.Errorf("otp mismatch: %w", common.ErrValidation)
	ErrExpired     = fmt.Errorf("otp: %w", common.ErrExpired)
)

// Generator produces a code. Tests inject fixed values.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// Fixed returns a Generator that always yields code.
func Fixed(code string) Generator {
	return GeneratorFunc(func() (string, error) { return code, nil })
}

// RandomGenerator draws uniformly from [100000, 999999] using crypto/rand.
type RandomGenerator struct{}

func (RandomGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Manager applies challenges to accounts in memory. Callers persist the
// result through the credential store.
type Manager struct {
	gen Generator
	ttl time.Duration
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithGenerator(g Generator) Option { return func(m *Manager) { m.gen = g } }

func WithTTL(ttl time.Duration) Option { return func(m *Manager) { m.ttl = ttl } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(opts ...Option) *Manager {
	m := &Manager{gen: RandomGenerator{}, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL returns the configured code lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue sets a new code and expiry on user, replacing any pending one, and
// returns the code for delivery.
func (m *Manager) Issue(user *models.User, _ Purpose) (string, error) {
	code, err := m.gen.Generate()
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", errors.New("otp generate: empty code")
	}
	user.OTPCode = code
	user.OTPExpiresAt = m.now().Add(m.ttl)
	return code, nil
}

// Verify checks code against the pending challenge and clears it on
// success. A failed check leaves the challenge in place.
func (m *Manager) Verify(user *models.User, code string) error {
	if !user.HasOTP() {
		return ErrNoChallenge
	}
	if !cryptox.EqualStrings(user.OTPCode, code) {
		return ErrMismatch
	}
	if !m.now().Before(user.OTPExpiresAt) {
		return ErrExpired
	}
	user.OTPCode = ""
	user.OTPExpiresAt = time.Time{}
	return nil
}
