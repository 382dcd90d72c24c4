package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readPassword(prompt string) (string, error) {
	pw, err := getPassword(a.writer(), prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Signup registers a new account. The password may be left empty when the
// server defers password creation until after verification.
func (a *App) Signup(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	name, err := a.prompt("Enter name (optional)")
	if err != nil {
		return err
	}
	password, err := a.readPassword("Password (empty to set it after verification)")
	if err != nil {
		return err
	}
	referral, err := a.prompt("Referral code (optional)")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.authService.Signup(ctx, &api.SignupRequest{
		Email:    email,
		Password: password,
		Name:     name,
		Referral: referral,
	})
	if err != nil {
		return err
	}
	a.printf("Verification code sent to %s\n", u.Email)
	return nil
}

func (a *App) ResendSignupOTP(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.authService.ResendSignupOTP(ctx, email); err != nil {
		return err
	}
	a.printf("Verification code sent to %s\n", email)
	return nil
}

// Verify confirms the signup code and signs the user in.
func (a *App) Verify(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	code, err := a.prompt("Enter code")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.authService.VerifySignup(ctx, email, code)
	if err != nil {
		return err
	}
	if u.CanCreatePassword {
		a.printf("Verified %s. Run createpw to set a password.\n", u.Email)
		return nil
	}
	a.printf("Signed in as %s\n", u.Email)
	return nil
}

func (a *App) CreatePassword(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.readPassword("New password")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.authService.CreatePassword(ctx, email, password)
	if err != nil {
		return err
	}
	a.printf("Password set. Signed in as %s\n", u.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.readPassword("Password")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.authService.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	a.printf("Signed in as %s\n", u.Email)
	return nil
}

// SocialLogin exchanges an identity token issued by an external provider.
func (a *App) SocialLogin(ctx context.Context) error {
	provider, err := a.prompt("Provider (google, apple)")
	if err != nil {
		return err
	}
	idToken, err := a.prompt("Paste ID token")
	if err != nil {
		return err
	}
	role, err := a.prompt("Role (optional)")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.authService.SocialLogin(ctx, strings.ToLower(provider), idToken, role)
	if err != nil {
		return err
	}
	a.printf("Signed in as %s via %s\n", u.Email, u.Provider)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	who, err := a.authService.WhoAmI(ctx)
	if err != nil {
		return err
	}
	a.printf("user %s, role %s\n", who.UserID, who.Role)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.printf("Signed out\n")
	return nil
}

// Forgot walks through the password reset: request a code, verify it and
// choose a new password.
func (a *App) Forgot(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	rctx, cancel := a.call(ctx)
	err = a.authService.ForgotPassword(rctx, email)
	cancel()
	if err != nil {
		return err
	}
	a.printf("If the account exists, a code was sent to %s\n", email)

	code, err := a.prompt("Enter code")
	if err != nil {
		return err
	}
	rctx, cancel = a.call(ctx)
	err = a.authService.VerifyForgotPassword(rctx, email, code)
	cancel()
	if err != nil {
		return err
	}

	password, err := a.readPassword("New password")
	if err != nil {
		return err
	}
	rctx, cancel = a.call(ctx)
	defer cancel()
	if err := a.authService.ResetPassword(rctx, email, password); err != nil {
		return err
	}
	a.printf("Password updated. Sign in with login.\n")
	return nil
}

// Delete removes the signed-in account after confirming a one-time code.
func (a *App) Delete(ctx context.Context) error {
	rctx, cancel := a.call(ctx)
	err := a.authService.RequestDelete(rctx)
	cancel()
	if err != nil {
		return err
	}

	code, err := a.prompt("Enter the code sent to your email")
	if err != nil {
		return err
	}

	rctx, cancel = a.call(ctx)
	defer cancel()
	res, err := a.authService.ConfirmDelete(rctx, code)
	if err != nil {
		return err
	}
	a.printf("Account deleted (%d sessions, %d invitations)\n", res.SessionsDeleted, res.InvitationsDeleted)
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.authService.Ping(ctx); err != nil {
		return err
	}
	a.printf("OK\n")
	return nil
}
