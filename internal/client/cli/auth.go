package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/nextshape/internal/client/guard"
	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/payload"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// Register prompts for the sign-up form and creates the account. It does not
// log in.
func (a *App) Register(ctx context.Context) error {
	var r models.Registration
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Enter first name", &r.FirstName},
		{"Enter last name", &r.LastName},
		{"Enter email", &r.Email},
		{"Enter gender (H/F)", &r.Gender},
		{"Enter birth date (YYYY-MM-DD)", &r.BirthDate},
		{"Enter phone number", &r.PhoneNumber},
	}
	for _, f := range fields {
		v, err := a.prompt(f.prompt)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	if r.BirthDate != "" {
		if _, err := payload.ParseDate(r.BirthDate); err != nil {
			return common.Errorf(common.KindValidation, "birth date must be YYYY-MM-DD")
		}
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer wipe(password)
	r.Password = string(password)

	out, err := a.session.Register(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, messageOr(out, "Success!"))
	return nil
}

// Login prompts for credentials and starts a session. When the login surface
// was reached through a redirect, the user is sent back to the original
// destination.
func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer wipe(password)

	if err := a.session.Login(ctx, email, string(password)); err != nil {
		a.log.Info(ctx, "login unsuccessful", "error", err)
		return err
	}
	a.setMode(ModeOnline)

	id := a.session.Identity()
	fmt.Fprintf(a.out, "Welcome, %s!\n", id.FirstName)

	if loc := a.currentLocation(); strings.HasPrefix(loc, common.LoginPath) {
		a.Navigate(ctx, guard.ReturnPath(loc))
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI(_ context.Context) error {
	id := a.session.Identity()
	if id == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintln(a.out, id.String())
	fmt.Fprintf(a.out, "  gender: %s  birth date: %s  phone: %s\n", id.Gender, id.BirthDate, id.PhoneNumber)
	return nil
}

// Check asks the server whether the session is still valid.
func (a *App) Check(ctx context.Context) error {
	ok, err := a.session.CheckAuthentication(ctx)
	if err != nil {
		a.setMode(ModeOffline)
		return err
	}
	a.setMode(ModeOnline)
	if ok {
		fmt.Fprintln(a.out, "Session is valid")
	} else {
		fmt.Fprintln(a.out, "Not authenticated")
	}
	return nil
}

func (a *App) Profile(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("profile <" + strings.Join(models.ProfileFields, "|") + "> <value>")
	}
	if !a.isLoggedIn() {
		return a.requireLogin(ctx)
	}
	if err := a.session.UpdateProfileField(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile updated")
	return nil
}

func (a *App) DeleteAccount(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.requireLogin(ctx)
	}
	answer, err := a.prompt("Type 'yes' to delete your account and all its records")
	if err != nil {
		return err
	}
	if answer != "yes" {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.session.DeleteAccount(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account deleted")
	return nil
}

func (a *App) SendCode(ctx context.Context, args []string) error {
	if len(args) != 2 || !models.CodePurpose(args[1]).Valid() {
		return usageError("send-code <email> <registration|reset-password>")
	}
	out, err := a.session.SendVerificationCode(ctx, args[0], models.CodePurpose(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, messageOr(out, "Code sent"))
	return nil
}

func (a *App) VerifyCode(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("verify-code <email> <code>")
	}
	res, err := a.session.VerifyCode(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if res.Valid {
		fmt.Fprintln(a.out, messageOr(res.Outcome, "Code is valid"))
	} else {
		fmt.Fprintln(a.out, messageOr(res.Outcome, "Code is invalid"))
	}
	return nil
}

func (a *App) ResetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("reset-password <email>")
	}
	password, err := getPassword(a.out, "Enter new password")
	if err != nil {
		return err
	}
	defer wipe(password)

	out, err := a.session.ResetPassword(ctx, args[0], string(password))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, messageOr(out, "Password changed"))
	return nil
}

// requireLogin sends the user to the login surface, keeping the current
// location as the return path.
func (a *App) requireLogin(ctx context.Context) error {
	a.Navigate(ctx, guard.LoginURL(a.currentLocation()))
	return errLoginRequired
}

func messageOr(out models.Outcome, fallback string) string {
	if out.Message != "" {
		return out.Message
	}
	return fallback
}
