package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
	"github.com/goliatone/go-auth-client/storage"
	"github.com/spf13/cobra"
)

const locationKey = "location"

type globalFlags struct {
	config      string
	variant     string
	db          string
	baseURL     string
	activityLog string
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "authclient",
		Short: "Drive an auth client session from the terminal",
		Long: `authclient keeps a device identity and a bearer token in a local SQLite
file and talks to the backend auth endpoints the same way the web clients do.

Navigation is simulated: guarded paths print the decision and the location
the client ends on, and unauthorized responses print the hard redirect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "YAML options file")
	pf.StringVar(&flags.variant, "variant", "", "preset to use: admin or portal")
	pf.StringVar(&flags.db, "db", defaultDBPath(), "SQLite file holding client storage")
	pf.StringVar(&flags.baseURL, "base-url", "", "backend base URL, overrides the config")
	pf.StringVar(&flags.activityLog, "activity-log", "", "append session activity as JSON lines to this file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		loginCmd(flags),
		logoutCmd(flags),
		whoamiCmd(flags),
		statusCmd(flags),
		navigateCmd(flags),
		deviceCmd(flags),
		serveDevCmd(flags),
	)

	return root
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "authclient.db"
	}
	return filepath.Join(dir, "go-auth-client", "client.db")
}

func (f *globalFlags) options() (authclient.Options, error) {
	var (
		opts authclient.Options
		err  error
	)

	if f.config != "" {
		opts, err = authclient.LoadOptions(f.config)
	} else {
		opts, err = authclient.OptionsForVariant(authclient.Variant(f.variant))
	}
	if err != nil {
		return authclient.Options{}, err
	}

	if f.config != "" && f.variant != "" && authclient.Variant(f.variant) != opts.GetVariant() {
		return authclient.Options{}, fmt.Errorf("--variant %s does not match config variant %s", f.variant, opts.GetVariant())
	}

	if f.baseURL != "" {
		opts.BaseURL = f.baseURL
	}

	return opts, opts.Validate()
}

// session is what every client command works with.
type session struct {
	*authclient.Runtime
	navigator *storageNavigator
	out       io.Writer
	close     func() error
}

func (f *globalFlags) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(f.db); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, closeDB, err := storage.OpenSQLite(ctx, "file:"+f.db, string(opts.GetVariant()))
	if err != nil {
		return nil, err
	}

	logger := newCLILogger(cmd.ErrOrStderr(), f.verbose)
	navigator := newStorageNavigator(ctx, store, cmd.OutOrStdout(), opts.GetLandingPath(), logger)

	runtimeOpts := []authclient.RuntimeOption{
		authclient.WithLogger(logger),
		authclient.WithNavigator(navigator),
	}

	closeLog := func() error { return nil }
	if f.activityLog != "" {
		file, err := os.OpenFile(f.activityLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_ = closeDB()
			return nil, fmt.Errorf("open activity log: %w", err)
		}
		closeLog = file.Close
		runtimeOpts = append(runtimeOpts, authclient.WithActivitySink(
			activitymap.NewWriterSink(file, activitymap.WithDefaultChannel("cli")),
		))
	}

	rt := authclient.NewRuntime(opts, store, runtimeOpts...)

	return &session{
		Runtime:   rt,
		navigator: navigator,
		out:       cmd.OutOrStdout(),
		close: func() error {
			rt.Close()
			_ = closeLog()
			return closeDB()
		},
	}, nil
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}
