package cli

import (
	"context"
	"text/tabwriter"
)

func (a *App) Invite(ctx context.Context) error {
	email, err := a.prompt("Invitee email (optional)")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	inv, err := a.authService.Invite(ctx, email)
	if err != nil {
		return err
	}
	a.printf("Invitation token: %s\n", inv.Token)
	return nil
}

func (a *App) Accept(ctx context.Context) error {
	token, err := a.prompt("Invitation token")
	if err != nil {
		return err
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if _, err := a.authService.Accept(ctx, token); err != nil {
		return err
	}
	a.printf("Invitation accepted\n")
	return nil
}

// Invitations prints the invitations sent by the signed-in user.
func (a *App) Invitations(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	list, err := a.authService.Invitations(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No invitations\n")
		return nil
	}

	w := tabwriter.NewWriter(a.writer(), 0, 0, 2, ' ', 0)
	_, _ = w.Write([]byte("TOKEN\tEMAIL\tACCEPTED\tCREATED\n"))
	for _, inv := range list {
		accepted := "no"
		if inv.Accepted {
			accepted = "yes"
		}
		_, _ = w.Write([]byte(inv.Token + "\t" + inv.Email + "\t" + accepted + "\t" + inv.CreatedAt.Format("2006-01-02 15:04") + "\n"))
	}
	return w.Flush()
}

// Sweep asks the server to expire and purge stale sessions. Admin only.
func (a *App) Sweep(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	res, err := a.authService.Sweep(ctx)
	if err != nil {
		return err
	}
	a.printf("Revoked %d, purged %d\n", res.Revoked, res.Purged)
	return nil
}
