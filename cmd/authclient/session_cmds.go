package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func loginCmd(flags *globalFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and load the profile",
		Long: `Log in with email and password. The password is read from
AUTHCLIENT_PASSWORD when --password is not given.

If the last navigation was redirected to login, the client continues to the
originally requested path afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("AUTHCLIENT_PASSWORD")
			}

			ctx := cmd.Context()
			s, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			cfg := s.Config
			target := cfg.GetLandingPath()
			if previous := s.navigator.Current(); strings.HasPrefix(previous, cfg.GetLoginPath()) {
				if u, err := url.Parse(previous); err == nil {
					target = authclient.RedirectTarget(u.RawQuery, cfg.GetRedirectParam(), target)
				}
			} else {
				s.navigator.Go(cfg.GetLoginPath())
			}

			if err := s.Session.Login(ctx, email, password); err != nil {
				if msg := s.Session.Error(); msg != "" {
					return errors.New(msg)
				}
				return err
			}

			user := s.Session.User()
			if user == nil {
				return errors.New("session ended before the profile loaded")
			}
			s.printf("logged in as %s", user.Email)

			decision := s.Navigate(ctx, target)
			s.navigator.Go(decision.Location)
			s.printf("location: %s", decision.Location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			s.Session.Logout(ctx)
			s.navigator.Go(s.Config.GetLoginPath())
			s.printf("logged out")
			return nil
		},
	}
}

func whoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the profile of the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if !s.Session.IsAuthenticated() {
				s.printf("anonymous")
				return nil
			}

			if err := s.Session.FetchProfile(ctx); err != nil {
				return fmt.Errorf("whoami: %w", err)
			}

			user := s.Session.User()
			if user == nil {
				s.printf("anonymous")
				return nil
			}

			s.printf("%s", print.MaybePrettyJSON(user))
			return nil
		},
	}
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the local session state without contacting the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			state := s.Session.Snapshot()
			out := map[string]any{
				"variant":  s.Config.GetVariant(),
				"phase":    state.Phase(),
				"location": s.navigator.Current(),
				"device":   s.Device.DeviceID(ctx),
			}
			if info, ok := authclient.InspectToken(state.Token); ok {
				out["subject"] = info.Subject
				out["expires_at"] = info.ExpiresAt
			}

			s.printf("%s", print.MaybePrettyJSON(out))
			return nil
		},
	}
}

func navigateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <path>",
		Short: "Run the navigation guard for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			decision := s.Navigate(ctx, args[0])
			s.navigator.Go(decision.Location)
			s.printf("%s: %s", decision.Kind, decision.Location)
			return nil
		},
	}
}

func deviceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print the device identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			s.printf("%s", s.Device.DeviceID(ctx))
			return nil
		},
	}
}
