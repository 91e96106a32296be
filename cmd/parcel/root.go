package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/backend/builtin"
	"github.com/born-ml/parcel/internal/catalog"
	"github.com/born-ml/parcel/internal/config"
	"github.com/born-ml/parcel/internal/pack"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds state shared by all commands of one invocation.
type app struct {
	configFile string
	noCatalog  bool

	settings *config.Settings
	logger   *slog.Logger
	registry *backend.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{registry: builtin.Registry()}

	cmd := &cobra.Command{
		Use:   "parcel",
		Short: "Package, verify and run models",
		Long: `parcel packages a model together with its input/output contract into a
versioned directory, verifies it with a trial inference, and runs it later
through the backend registered for its platform.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: parcel.yaml in the working directory)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("catalog", "", "package catalog database (default: <user config dir>/parcel/catalog.db)")
	pf.BoolVar(&a.noCatalog, "no-catalog", false, "neither read nor write the package catalog")

	cmd.AddCommand(
		newCreateCmd(a),
		newInspectCmd(a),
		newInferCmd(a),
		newVerifyCmd(a),
		newListCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	s, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if a.noCatalog {
		s.Catalog.Enabled = false
	}
	logger, err := s.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = logger
	a.logger.Debug("configuration loaded", "file", s.File, "catalog", s.Catalog.Path, "catalog_enabled", s.Catalog.Enabled)
	return nil
}

// packOptions returns the pack options for this invocation.
func (a *app) packOptions() []pack.Option {
	return append(a.settings.PackOptions(), pack.WithLogger(a.logger), pack.WithRegistry(a.registry))
}

// openCatalog opens the catalog, or returns nil when it is disabled.
func (a *app) openCatalog() (*catalog.Store, error) {
	if !a.settings.Catalog.Enabled {
		return nil, nil
	}
	return catalog.Open(a.settings.Catalog.Path)
}

// exitCode maps errors caused by user input to exitUserError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, pack.ErrArgument),
		errors.Is(err, pack.ErrPathExists),
		errors.Is(err, pack.ErrSpec),
		errors.Is(err, pack.ErrSpecMismatch),
		errors.Is(err, pack.ErrMissingInput),
		errors.Is(err, pack.ErrUnexpectedInput),
		errors.Is(err, pack.ErrNotFound),
		errors.Is(err, pack.ErrCorruptPackage),
		errors.Is(err, pack.ErrVerification),
		errors.Is(err, pack.ErrUnsupportedPlatform),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}

// errUsage marks command-line mistakes.
var errUsage = errors.New("usage")
