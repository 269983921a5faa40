package main

import (
	"fmt"
	"net"
	"strings"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/internal/devbackend"
	"github.com/spf13/cobra"
)

func serveDevCmd(flags *globalFlags) *cobra.Command {
	var (
		addr       string
		signingKey string
		users      []string
	)

	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run an in-memory auth backend for local development",
		Long: `Serve the login, profile and logout endpoints from memory.

Accounts are given as email:password:role[:name]. Without --user two
accounts are created: admin@example.com/admin and member@example.com/member.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newCLILogger(cmd.ErrOrStderr(), flags.verbose)

			srv := devbackend.New(
				devbackend.WithSigningKey(signingKey),
				devbackend.WithLogger(logger),
			)

			if len(users) == 0 {
				users = []string{
					"admin@example.com:admin:admin:Admin",
					"member@example.com:member:member:Member",
				}
			}
			for _, entry := range users {
				if err := addUser(srv, entry); err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}

			errc := make(chan error, 1)
			go func() { errc <- srv.Serve(ln) }()

			fmt.Fprintf(cmd.OutOrStdout(), "dev backend listening on http://%s\n", ln.Addr())

			select {
			case <-ctx.Done():
				return srv.Shutdown()
			case err := <-errc:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "HMAC key for issued tokens")
	cmd.Flags().StringArrayVar(&users, "user", nil, "account as email:password:role[:name], repeatable")

	return cmd
}

func addUser(srv *devbackend.Server, entry string) error {
	parts := strings.SplitN(entry, ":", 4)
	if len(parts) < 3 {
		return fmt.Errorf("invalid --user %q, want email:password:role[:name]", entry)
	}

	role, ok := authclient.ParseRole(parts[2])
	if !ok {
		return fmt.Errorf("invalid role %q in --user %q", parts[2], entry)
	}

	name := parts[0]
	if len(parts) == 4 && parts[3] != "" {
		name = parts[3]
	}

	_, err := srv.AddUser(name, parts[0], parts[1], role)
	return err
}
