package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/hostcat/internal/config"
	"github.com/roach88/hostcat/internal/loader"
	"github.com/roach88/hostcat/internal/logging"
	"github.com/roach88/hostcat/internal/registry"
	"github.com/roach88/hostcat/internal/resolver"
	"github.com/roach88/hostcat/internal/store"
)

// app wires the components a command needs against one store.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	out      *OutputFormatter
	store    *store.Store
	registry *registry.Registry
	resolver *resolver.Resolver
	loader   *loader.Loader
}

// openApp resolves configuration, builds the components and initializes the
// store. Failures are reported through the formatter; callers return the
// error as-is. On success the caller must defer app.close.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid logging configuration", err)
	}

	st := store.New(cfg.AclDatabaseFile, logger)
	reg := registry.New(st, logger)
	a := &app{
		cfg:      cfg,
		log:      logger,
		out:      out,
		store:    st,
		registry: reg,
		resolver: resolver.New(st, logger),
		loader:   loader.New(st, reg, logger, opts.LoaderOptions...),
	}

	out.VerboseLog("Opening database %s", cfg.AclDatabaseFile)
	if err := st.Init(cmd.Context()); err != nil {
		st.Close()
		return nil, out.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return a, nil
}

func (a *app) close() {
	a.store.Close()
}

// resolveConfig loads the config file if given and applies flag overrides.
func resolveConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.AclDatabaseFile = opts.Database
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
