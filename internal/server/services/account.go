package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mailer"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/social"
)

// SignupInput is the payload of Signup. Password must be empty in deferred
// mode and set otherwise. Referral is an optional invitation token.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     models.Role
	Referral string
}

// AuthResult is returned by every flow that signs the user in.
type AuthResult struct {
	User   *models.User
	Tokens *TokenPair
}

// CascadeResult lists what an account deletion removed.
type CascadeResult struct {
	UserID             string
	SessionsDeleted    int64
	InvitationsDeleted int64
}

// AccountConfig selects signup behaviour.
type AccountConfig struct {
	SignupMode  config.SignupMode
	DefaultRole models.Role
}

// AccountService coordinates signup, verification, sign-in, password
// changes, social login and the deletion cascade.
type AccountService struct {
	store    dbx.Store
	repos    repomanager.RepositoryManager
	sessions *SessionService
	otp      *otp.Manager
	hasher   cryptox.PasswordHasher
	mail     mailer.Sender
	social   *social.Registry
	cfg      AccountConfig
	log      logging.Logger
	now      func() time.Time
}

// AccountDeps groups the collaborators of AccountService.
type AccountDeps struct {
	Store    dbx.Store
	Repos    repomanager.RepositoryManager
	Sessions *SessionService
	OTP      *otp.Manager
	Hasher   cryptox.PasswordHasher
	Mailer   mailer.Sender
	Social   *social.Registry
	Logger   logging.Logger
}

func NewAccountService(d AccountDeps, cfg AccountConfig) *AccountService {
	if cfg.SignupMode == "" {
		cfg.SignupMode = config.SignupWithPassword
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = models.RoleUser
	}
	if d.Social == nil {
		d.Social = social.NewRegistry()
	}
	return &AccountService{
		store:    d.Store,
		repos:    d.Repos,
		sessions: d.Sessions,
		otp:      d.OTP,
		hasher:   d.Hasher,
		mail:     d.Mailer,
		social:   d.Social,
		cfg:      cfg,
		log:      d.Logger.With("module", "accounts"),
		now:      time.Now,
	}
}

// Signup creates an unverified account and mails a signup code.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, err := s.role(in.Role)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		Role:     role,
		Provider: models.ProviderEmail,
	}

	switch s.cfg.SignupMode {
	case config.SignupDeferred:
		if in.Password != "" {
			return nil, fmt.Errorf("password is set after verification: %w", common.ErrValidation)
		}
		user.CanCreatePassword = true
	default:
		if in.Password == "" {
			return nil, fmt.Errorf("password is required: %w", common.ErrValidation)
		}
		if user.PasswordHash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	code, err := s.otp.Issue(user, otp.PurposeSignup)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		if in.Referral != "" {
			if _, err := acceptInvitation(ctx, s.repos.Invitations(tx), in.Referral, user.ID, s.now()); err != nil {
				return fmt.Errorf("referral: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "account created", "user_id", user.ID, "mode", string(s.cfg.SignupMode))
	s.sendOTP(ctx, email, code, otp.PurposeSignup)
	return publicUser(user), nil
}

// ResendSignupOTP replaces the pending signup code of an unverified account.
func (s *AccountService) ResendSignupOTP(ctx context.Context, email string) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return fmt.Errorf("account already verified: %w", common.ErrConflict)
	}
	return s.challenge(ctx, user, otp.PurposeSignup)
}

// VerifySignupOTP activates the account and signs the user in.
func (s *AccountService) VerifySignupOTP(ctx context.Context, email string, code string) (*AuthResult, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, fmt.Errorf("account already verified: %w", common.ErrConflict)
	}
	pending := user.OTPCode
	if err := s.otp.Verify(user, code); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := s.repos.Users(tx).ConsumeOTP(ctx, user.ID, pending, users.OTPEffects{Verify: true})
		if err != nil {
			return err
		}
		if !ok {
			return otp.ErrNoChallenge
		}
		user.IsVerified = true
		pair, err = s.sessions.issueLocked(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "account verified", "user_id", user.ID)
	return &AuthResult{User: publicUser(user), Tokens: pair}, nil
}

// CreatePassword sets the first password of a verified account that has
// none, and signs the user in.
func (s *AccountService) CreatePassword(ctx context.Context, email string, password string) (*AuthResult, error) {
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", common.ErrValidation)
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNotAllowed
		}
		return nil, err
	}
	if !user.IsVerified || user.HasPassword() {
		return nil, common.ErrNotAllowed
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var pair *TokenPair
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := s.repos.Users(tx).CreatePassword(ctx, user.ID, hash)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrNotAllowed
		}
		user.PasswordHash, user.CanCreatePassword = hash, false
		pair, err = s.sessions.issueLocked(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "password created", "user_id", user.ID)
	return &AuthResult{User: publicUser(user), Tokens: pair}, nil
}

// SignIn checks a password and issues a session.
func (s *AccountService) SignIn(ctx context.Context, email string, password string) (*AuthResult, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrValidation) {
			return nil, fmt.Errorf("invalid or unverified account: %w", common.ErrForbidden)
		}
		return nil, err
	}
	if !user.IsVerified {
		return nil, fmt.Errorf("invalid or unverified account: %w", common.ErrForbidden)
	}
	if !user.HasPassword() {
		return nil, common.ErrorUnauthorized
	}
	match, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		s.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if !match {
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: publicUser(user), Tokens: pair}, nil
}

// ForgotPassword mails a reset code. An unknown email gets the same nil
// result without any side effect.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	return s.challenge(ctx, user, otp.PurposeForgotPassword)
}

// VerifyForgotPasswordOTP grants the one-shot reset permission.
func (s *AccountService) VerifyForgotPasswordOTP(ctx context.Context, email string, code string) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	pending := user.OTPCode
	if err := s.otp.Verify(user, code); err != nil {
		return err
	}

	ok, err := s.repos.Users(s.store.Conn()).ConsumeOTP(ctx, user.ID, pending, users.OTPEffects{AllowReset: true})
	if err != nil {
		return err
	}
	if !ok {
		return otp.ErrNoChallenge
	}
	return nil
}

// ResetPassword replaces the password of an account holding the reset
// permission and revokes its active sessions.
func (s *AccountService) ResetPassword(ctx context.Context, email string, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("password is required: %w", common.ErrValidation)
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrNotAllowed
		}
		return err
	}
	if !user.CanResetPassword {
		return common.ErrNotAllowed
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := s.repos.Users(tx).ResetPassword(ctx, user.ID, hash)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrNotAllowed
		}
		revoked, err = s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password reset", "user_id", user.ID, "sessions_revoked", revoked)
	return nil
}

// RequestDeleteOTP mails a deletion code to the caller's own verified account.
func (s *AccountService) RequestDeleteOTP(ctx context.Context, callerID string, email string) error {
	user, err := s.owned(ctx, callerID, email)
	if err != nil {
		return err
	}
	if !user.IsVerified {
		return common.ErrNotAllowed
	}
	return s.challenge(ctx, user, otp.PurposeAccountDeletion)
}

// VerifyDeleteOTP checks the deletion code and removes the account with
// its sessions and issued invitations in one transaction.
func (s *AccountService) VerifyDeleteOTP(ctx context.Context, callerID string, email string, code string) (*CascadeResult, error) {
	user, err := s.owned(ctx, callerID, email)
	if err != nil {
		return nil, err
	}
	pending := user.OTPCode
	if err := s.otp.Verify(user, code); err != nil {
		return nil, err
	}

	res := &CascadeResult{UserID: user.ID}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repos.Users(tx)
		if err := accounts.LockForUpdate(ctx, user.ID); err != nil {
			return err
		}
		ok, err := accounts.ConsumeOTP(ctx, user.ID, pending, users.OTPEffects{})
		if err != nil {
			return err
		}
		if !ok {
			return otp.ErrNoChallenge
		}
		if res.SessionsDeleted, err = s.repos.RefreshTokens(tx).DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if res.InvitationsDeleted, err = s.repos.Invitations(tx).DeleteByInviter(ctx, user.ID); err != nil {
			return fmt.Errorf("delete invitations: %w", err)
		}
		n, err := accounts.Delete(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "account deletion aborted", "user_id", user.ID, "error", err)
		return nil, err
	}

	s.log.Info(ctx, "account deleted", "user_id", user.ID,
		"sessions", res.SessionsDeleted, "invitations", res.InvitationsDeleted)
	return res, nil
}

// SocialLogin signs in with a provider ID token, creating or linking the
// account on first use.
func (s *AccountService) SocialLogin(ctx context.Context, provider models.Provider, rawToken string, role models.Role) (*AuthResult, error) {
	role, err := s.role(role)
	if err != nil {
		return nil, err
	}
	claim, err := s.social.Verify(ctx, provider, rawToken)
	if err != nil {
		return nil, err
	}

	var (
		user *models.User
		pair *TokenPair
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repos.Users(tx)

		existing, err := accounts.GetByEmail(ctx, claim.Email)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			user, err = accounts.Create(ctx, &models.User{
				Email:             claim.Email,
				Name:              claim.Name,
				Role:              role,
				Provider:          provider,
				ProviderSubject:   claim.Subject,
				IsVerified:        true,
				CanCreatePassword: true,
			})
			if err != nil {
				return err
			}
			s.log.Info(ctx, "account created from provider", "user_id", user.ID, "provider", string(provider))
		case err != nil:
			return err
		default:
			user = existing
			if err := s.link(ctx, accounts, user, claim); err != nil {
				return err
			}
		}

		pair, err = s.sessions.issueLocked(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: publicUser(user), Tokens: pair}, nil
}

// link binds an unlinked account to the claim. An account already bound to
// the same provider must carry the same subject; one bound to another
// provider signs in unchanged.
func (s *AccountService) link(ctx context.Context, accounts users.Repository, user *models.User, claim *social.Claim) error {
	linked, ok := user.LinkedTo()
	if ok {
		if linked == claim.Provider && user.ProviderSubject != claim.Subject {
			s.log.Warn(ctx, "provider subject mismatch", "user_id", user.ID, "provider", string(claim.Provider))
			return fmt.Errorf("account linked to another %s identity: %w", claim.Provider, common.ErrForbidden)
		}
		return nil
	}

	done, err := accounts.LinkProvider(ctx, user.ID, claim.Provider, claim.Subject)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("account link changed concurrently: %w", common.ErrConflict)
	}
	user.Provider, user.ProviderSubject, user.IsVerified = claim.Provider, claim.Subject, true
	s.log.Info(ctx, "provider linked", "user_id", user.ID, "provider", string(claim.Provider))
	return nil
}

// challenge stores a fresh code for purpose and mails it.
func (s *AccountService) challenge(ctx context.Context, user *models.User, purpose otp.Purpose) error {
	code, err := s.otp.Issue(user, purpose)
	if err != nil {
		return err
	}
	if err := s.repos.Users(s.store.Conn()).SetOTP(ctx, user.ID, code, user.OTPExpiresAt); err != nil {
		return err
	}
	s.sendOTP(ctx, user.Email, code, purpose)
	return nil
}

func (s *AccountService) sendOTP(ctx context.Context, email, code string, purpose otp.Purpose) {
	if err := s.mail.SendOTP(ctx, email, code, purpose); err != nil {
		s.log.Warn(ctx, "otp mail failed", "purpose", string(purpose), "error", err)
	}
}

func (s *AccountService) lookup(ctx context.Context, email string) (*models.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.repos.Users(s.store.Conn()).GetByEmail(ctx, normalized)
}

// owned loads the account behind email and checks it belongs to callerID.
func (s *AccountService) owned(ctx context.Context, callerID string, email string) (*models.User, error) {
	if callerID == "" {
		return nil, common.ErrorUnauthorized
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.ID != callerID {
		s.log.Warn(ctx, "caller does not own account", "caller_id", callerID)
		return nil, fmt.Errorf("account does not belong to caller: %w", common.ErrForbidden)
	}
	return user, nil
}

func (s *AccountService) role(r models.Role) (models.Role, error) {
	if r == "" {
		return s.cfg.DefaultRole, nil
	}
	if !r.SelfAssignable() {
		return "", fmt.Errorf("role %q: %w", r, common.ErrValidation)
	}
	return r, nil
}

func normalizeEmail(email string) (string, error) {
	e := common.NormalizeEmail(email)
	if e == "" || !strings.Contains(e, "@") {
		return "", fmt.Errorf("email: %w", common.ErrValidation)
	}
	return e, nil
}

// publicUser strips credential material before a user leaves the service.
func publicUser(u *models.User) *models.User {
	c := *u
	c.PasswordHash = ""
	c.OTPCode = ""
	c.OTPExpiresAt = time.Time{}
	return &c
}
