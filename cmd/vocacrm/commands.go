package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vocacrm/vocacrm-go/auth"
	"github.com/vocacrm/vocacrm-go/identity"
	"github.com/vocacrm/vocacrm-go/internal/config"
)

// newRootCmd builds the CLI. identities replaces the browser based provider
// sign-in when not nil.
func newRootCmd(cfg config.Config, identities auth.Authenticator) *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:          "vocacrm",
		Short:        "Sign in to VocaCRM and call its API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(cfg, identities, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.OutOrStdout() == os.Stdout {
				displayAppname(cfg.GetAppName())
			}
			return cmd.Help()
		},
	}

	appRef := func() *app { return a }
	root.AddCommand(
		newLoginCmd(appRef),
		newSignupCmd(appRef),
		newLogoutCmd(appRef),
		newStatusCmd(appRef),
		newGetCmd(appRef),
		newTenantsCmd(appRef),
	)
	return root
}

type signupFlags struct {
	username string
	phone    string
	email    string
}

func (f *signupFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.username, "username", "", "display name for a new account")
	cmd.Flags().StringVar(&f.phone, "phone", "", "phone number for a new account, e.g. 010-1234-5678")
	cmd.Flags().StringVar(&f.email, "email", "", "optional email for a new account")
}

func (f *signupFlags) params(res *identity.Result) auth.SignupParams {
	return auth.SignupParams{
		Provider: res.Provider,
		Token:    res.Token,
		Username: f.username,
		Phone:    f.phone,
		Email:    f.email,
	}
}

func newLoginCmd(a func() *app) *cobra.Command {
	var signup signupFlags
	cmd := &cobra.Command{
		Use:       "login <google|kakao|apple>",
		Short:     "Sign in with an identity provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"google", "kakao", "apple"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			ctx := cmd.Context()
			app.start(ctx)

			claims, err := app.controller.Login(ctx, args[0])
			if identity.IsCancelled(err) {
				return nil
			}
			if signupErr, ok := auth.IsSignupRequired(err); ok {
				if signup.username == "" || signup.phone == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "rerun with --username and --phone to create the account")
					return err
				}
				claims, err = app.controller.Signup(ctx, signup.params(signupErr.Result))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", displayName(claims.DisplayName, claims.SubjectID))
			return nil
		},
	}
	signup.register(cmd)
	return cmd
}

func newSignupCmd(a func() *app) *cobra.Command {
	var signup signupFlags
	cmd := &cobra.Command{
		Use:   "signup <google|kakao|apple>",
		Short: "Create an account for a provider identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			ctx := cmd.Context()

			res, err := app.identities.Authenticate(ctx, args[0])
			if identity.IsCancelled(err) {
				return nil
			}
			if err != nil {
				return err
			}
			claims, err := app.controller.Signup(ctx, signup.params(res))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account created for %s\n", displayName(claims.DisplayName, claims.SubjectID))
			return nil
		},
	}
	signup.register(cmd)
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func newLogoutCmd(a func() *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := a()
			ctx := cmd.Context()
			app.start(ctx)

			if all {
				if err := app.session.LogoutAll(ctx); err != nil {
					app.logger.Warn().Err(err).Msg("logout on all devices failed")
				}
			}
			app.controller.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "end the sessions on every device")
	return cmd
}

func newStatusCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current sign-in state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := a().start(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", snap.State)
			if !snap.IsAuthenticated {
				return nil
			}
			u := snap.User
			fmt.Fprintf(out, "user: %s (%s)\n", displayName(u.DisplayName, u.SubjectID), u.Role)
			if u.Email != "" {
				fmt.Fprintf(out, "email: %s\n", u.Email)
			}
			if u.IsSystemAdmin {
				fmt.Fprintln(out, "system admin: yes")
			}
			fmt.Fprintf(out, "session valid until: %s\n", u.Expiry().Local().Format("2006-01-02 15:04:05"))
			if snap.CurrentTenant != nil {
				fmt.Fprintf(out, "business place: %s [%s]\n", snap.CurrentTenant.Name, snap.CurrentTenant.Role)
			}
			return nil
		},
	}
}

func newGetCmd(a func() *app) *cobra.Command {
	var query []string
	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "Call an authenticated GET endpoint and print the JSON answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := a()
			ctx := cmd.Context()
			app.start(ctx)
			if err := app.controller.RequireAuthenticated(); err != nil {
				return err
			}

			values := url.Values{}
			for _, kv := range query {
				k, v, _ := strings.Cut(kv, "=")
				values.Add(k, v)
			}

			var raw json.RawMessage
			if err := app.session.Get(ctx, args[0], values, &raw); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter as key=value, repeatable")
	return cmd
}

func newTenantsCmd(a func() *app) *cobra.Command {
	var selectID string
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "List your business places",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := a()
			snap := app.start(cmd.Context())
			if err := app.controller.RequireAuthenticated(); err != nil {
				return err
			}
			if selectID != "" {
				if err := app.controller.SelectTenant(selectID); err != nil {
					return err
				}
				snap = app.controller.Snapshot()
			}

			out := cmd.OutOrStdout()
			for _, t := range snap.Tenants {
				marker := " "
				if snap.CurrentTenant != nil && snap.CurrentTenant.ID == t.ID {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\t%s\t%d members\n", marker, t.ID, t.Name, t.Role, t.MemberCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selectID, "select", "", "business place id to mark as current")
	return cmd
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = w.Write(append(raw, '\n'))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
