package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/madrasa/internal/model"
	"github.com/verte-zerg/madrasa/internal/report"
)

var (
	loginEmail    string
	loginPassword string

	profileName    string
	profileEmail   string
	profilePhone   string
	profileAddress string
	profileBio     string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when empty)")
	cmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	email := strings.TrimSpace(loginEmail)
	if email == "" {
		email, err = promptLine(in, cmd.ErrOrStderr(), "Email: ")
		if err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		password, err = promptPassword(in, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	user, err := a.client.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}
	a.logger.Info("signed in", "user_id", user.ID, "role", user.Role)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", userLabel(user))
	return err
}

func promptLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err
	}
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(in *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(in, out, "Password: ")
	}
	if _, err := fmt.Fprint(out, "Password: "); err != nil {
		return "", err
	}
	secret, err := term.ReadPassword(fd)
	if _, perr := fmt.Fprintln(out); perr != nil {
		return "", perr
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return err
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSignedIn(); err != nil {
				return err
			}
			sess := a.client.Session()
			line := userLabel(sess.User())
			if exp, ok := sess.ExpiresAt(); ok {
				line += fmt.Sprintf(" (token expires %s)", exp.Local().Format("2006-01-02 15:04"))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the account profile",
		Args:  cobra.NoArgs,
		RunE:  runProfileCmd,
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE:  runProfileSetCmd,
	}
	set.Flags().StringVar(&profileName, "name", "", "display name")
	set.Flags().StringVar(&profileEmail, "email", "", "email address")
	set.Flags().StringVar(&profilePhone, "phone", "", "phone in international format (+15551234567)")
	set.Flags().StringVar(&profileAddress, "address", "", "postal address")
	set.Flags().StringVar(&profileBio, "bio", "", "short bio")
	cmd.AddCommand(set)
	return cmd
}

func runProfileCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	p, err := a.client.Profile(cmd.Context())
	if err != nil {
		return err
	}
	return report.RenderProfile(cmd.OutOrStdout(), p)
}

func runProfileSetCmd(cmd *cobra.Command, _ []string) error {
	update := model.ProfileUpdate{
		Name:    strings.TrimSpace(profileName),
		Email:   strings.TrimSpace(profileEmail),
		Phone:   strings.TrimSpace(profilePhone),
		Address: strings.TrimSpace(profileAddress),
		Bio:     strings.TrimSpace(profileBio),
	}
	if update == (model.ProfileUpdate{}) {
		return fmt.Errorf("nothing to update (use --name, --email, --phone, --address or --bio)")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	p, err := a.client.UpdateProfile(cmd.Context(), update)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), "Profile updated"); err != nil {
		return err
	}
	return report.RenderProfile(cmd.OutOrStdout(), p)
}

func userLabel(u model.User) string {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	if name == "" {
		name = fmt.Sprintf("user %d", u.ID)
	}
	if u.Role != "" {
		name += " [" + u.Role + "]"
	}
	return name
}
