package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/sitegraph/internal/catalog"
	"github.com/agentic-research/sitegraph/internal/config"
	"github.com/agentic-research/sitegraph/internal/content"
	"github.com/agentic-research/sitegraph/internal/engine"
	"github.com/agentic-research/sitegraph/internal/resolve"
	"github.com/agentic-research/sitegraph/internal/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	configPath string

	vp  = config.New()
	cfg *config.Config
	log = zap.NewNop()
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to sitegraph.yaml (default: ./sitegraph.yaml if present)")
	pf.StringP("database", "d", "", "SQLite content store")
	pf.StringP("fixture", "f", "", "JSON content fixture served from memory")
	pf.StringP("schemas", "s", "", "HCL schema settings file")
	pf.Bool("commerce", false, "Enable commerce schema types and rules")
	pf.Int("max-depth", resolve.DefaultMaxDepth, "Maximum nested placeholder expansion depth")
	pf.Int("step-budget", resolve.DefaultStepBudget, "Placeholder substitutions allowed per render (0 = unlimited)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"database":    "database",
		"fixture":     "fixture",
		"schemas":     "schemas",
		"commerce":    "commerce",
		"max_depth":   "max-depth",
		"step_budget": "step-budget",
		"log_level":   "log-level",
	} {
		bindFlag(vp, key, pf.Lookup(flag))
	}
}

var rootCmd = &cobra.Command{
	Use:           "sitegraph",
	Short:         "sitegraph: schema.org structured data for every page of a site",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(vp, configPath)
		if err != nil {
			return err
		}
		l, err := config.NewLogger(c.LogLevel)
		if err != nil {
			return err
		}
		cfg, log = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// errNoContent is returned by commands that render but have no content
// source configured.
var errNoContent = errors.New("no content source: set --database or --fixture")

// openProvider opens the configured content source. With required unset a
// missing source yields an empty in-memory provider.
func openProvider(c *config.Config, required bool) (content.Provider, error) {
	switch {
	case c.Database != "":
		return content.OpenSQLite(c.Database)
	case c.Fixture != "":
		f, err := content.LoadFixture(c.Fixture)
		if err != nil {
			return nil, err
		}
		return content.NewMemoryProvider(f)
	case required:
		return nil, errNoContent
	default:
		return content.NewMemoryProvider(nil)
	}
}

// openEngine wires a render engine from the configuration.
func openEngine(c *config.Config, l *zap.Logger, requireContent bool) (*engine.Engine, error) {
	reg, err := catalog.New(catalog.WithCommerce(c.Commerce))
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(l),
		engine.WithCatalog(reg),
		engine.WithCommerce(c.Commerce),
		engine.WithMaxDepth(c.MaxDepth),
		engine.WithStepBudget(c.StepBudget),
	}
	if c.Schemas != "" {
		s, err := settings.Load(c.Schemas)
		if err != nil {
			return nil, err
		}
		if err := s.Validate(reg); err != nil {
			return nil, fmt.Errorf("settings %s: %w", c.Schemas, err)
		}
		opts = append(opts, engine.WithPostTypes(s.PostTypes), engine.WithDefaults(s.Defaults))
		l.Debug("loaded schema settings",
			zap.String("path", c.Schemas),
			zap.Int("schemas", len(s.Defaults)),
			zap.Int("post_types", len(s.PostTypes)))
	}

	p, err := openProvider(c, requireContent)
	if err != nil {
		return nil, err
	}
	e, err := engine.New(p, opts...)
	if err != nil {
		if cl, ok := p.(interface{ Close() error }); ok {
			_ = cl.Close()
		}
		return nil, err
	}
	return e, nil
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
