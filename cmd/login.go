package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"storefront/app"
	"storefront/output"
	"storefront/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a phone number",
	Long: `Sign in with a phone number. Accounts with a password are asked for it;
new accounts and accounts without one get a one-time code instead, and new
accounts fill in their profile.

Examples:
  storefront login                              # Prompt for everything
  storefront login --phone 09123456789          # Prompt for the password or code
  printf 'secret\n' | storefront login -p 09123456789`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringP("phone", "p", "", "phone number (11 digits starting with 09)")
}

// prompter reads answers line by line from the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", usageError("no answer for %s", strings.ToLower(label))
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	printer := newPrinter(cmd)
	ask := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.Session()
	if sess.Phase() == session.PhaseAuthenticated {
		info, err := sess.EnsureFresh(ctx)
		if err != nil {
			return err
		}
		printer.Info("Already signed in as %s.", info.PhoneNumber)
		return nil
	}

	phone, _ := cmd.Flags().GetString("phone")
	if phone == "" {
		if phone, err = ask.ask("Phone number"); err != nil {
			return err
		}
	}

	phase, err := sess.SubmitPhoneNumber(ctx, phone)
	if err != nil {
		return err
	}

	switch phase {
	case session.PhaseAwaitingPassword:
		password, err := ask.ask("Password")
		if err != nil {
			return err
		}
		if err := sess.SubmitPassword(ctx, password); err != nil {
			sess.CancelLogin()
			return err
		}
	case session.PhaseAwaitingOTP:
		printer.Info("A %d-digit code was sent to %s.", session.OTPLength, phone)
		if err := verifyOTP(ctx, sess, ask); err != nil {
			sess.CancelLogin()
			return err
		}
	default:
		return fmt.Errorf("unexpected login phase %s", phase)
	}

	printer.Success("Signed in as %s %s", phone, printer.PhaseBadge(string(sess.Phase())))
	showWelcome(ctx, a, printer)
	return nil
}

func verifyOTP(ctx context.Context, sess *session.Manager, ask *prompter) error {
	code, err := ask.ask("Code")
	if err != nil {
		return err
	}

	var profile session.ProfileForm
	// Empty answers leave a field unset.
	for _, field := range []struct {
		label string
		dst   *string
	}{
		{"First name", &profile.FirstName},
		{"Last name", &profile.LastName},
		{"Email", &profile.Email},
		{"Password (optional)", &profile.Password},
	} {
		if *field.dst, err = ask.ask(field.label); err != nil {
			return err
		}
	}
	if profile.Password != "" {
		if profile.ConfirmPassword, err = ask.ask("Confirm password"); err != nil {
			return err
		}
	}

	return sess.SubmitOTP(ctx, code, profile)
}

// showWelcome prints the first-run banner once per store.
func showWelcome(ctx context.Context, a *app.App, printer *output.Printer) {
	if a.WelcomeSeen(ctx) {
		return
	}
	printer.Header("Welcome to the shop")
	printer.Info("Add products with 'storefront cart add <id>' and check out with 'storefront checkout order'.")
	if err := a.MarkWelcomeSeen(ctx); err != nil {
		logger.Warn("failed to save welcome flag", "error", err)
	}
}
