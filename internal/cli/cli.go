package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/buildinfo"
	"github.com/matzehuels/knotview/pkg/cache"
	"github.com/matzehuels/knotview/pkg/config"
	"github.com/matzehuels/knotview/pkg/dataapi"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "knotview"

	// defaultSurface is the id of the headless surface commands render on.
	defaultSurface = "map"

	// defaultWidth and defaultHeight are the headless canvas size.
	defaultWidth  = 800
	defaultHeight = 600
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        config.Config
	noCache    bool
	refresh    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Config returns the resolved configuration.
func (c *CLI) Config() config.Config { return c.cfg }

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		dataDir string
		dataURL string
		viewID  int
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "knotview renders grammar-driven 3D knots and their linked plots",
		Long: `knotview renders geometric data layers as grammar-driven 3D "knots" and keeps
them synchronized with linked 2D plots and with picking and selection.

A grammar names the knots of a map view, the layers they read, the joins
between layers and the plots fed by each knot. Commands accept a grammar as a
file path (.json, .yaml, .toml) or as the name of a stored grammar.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("data") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("data-url") {
				cfg.DataURL = dataURL
			}
			if flags.Changed("view") {
				cfg.ViewID = viewID
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/knotview/config.toml)")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "directory holding layer, joined and camera files")
	pf.StringVar(&dataURL, "data-url", "", "data server URL (overrides --data)")
	pf.IntVar(&viewID, "view", 0, "grammar view to render")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the payload cache")
	pf.BoolVar(&c.refresh, "refresh", false, "refetch payloads, ignoring cached entries")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.plotsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.grammarCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Loader Factory
// =============================================================================

// newLoader builds the data loader the configuration describes, wrapped in
// the configured cache. The returned close function releases the cache.
func (c *CLI) newLoader(ctx context.Context) (dataapi.Loader, func(), error) {
	var (
		base   dataapi.Loader
		source string
	)
	if c.cfg.DataURL != "" {
		l, err := dataapi.NewHTTPLoader(c.cfg.DataURL, dataapi.WithLogger(c.Logger))
		if err != nil {
			return nil, nil, err
		}
		base, source = l, l.Source()
	} else {
		dir, err := filepath.Abs(c.cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve data dir: %w", err)
		}
		base, source = dataapi.NewFileLoader(dir), dir
	}

	cc, err := c.newCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := []dataapi.CachedOption{
		dataapi.WithRefresh(c.refresh),
		dataapi.WithCacheLogger(c.Logger),
	}
	if c.cfg.CacheBackend == config.CacheRedis && c.cfg.RedisPrefix != "" {
		opts = append(opts, dataapi.WithKeyer(cache.NewScopedKeyer(nil, c.cfg.RedisPrefix)))
	}
	loader := dataapi.NewCachedLoader(base, cc, source, opts...)
	return loader, func() { _ = cc.Close() }, nil
}

func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	switch c.cfg.CacheBackend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, c.cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		return rc, nil
	case config.CacheNone:
		return cache.NewNullCache(), nil
	default:
		dir, err := c.cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}

// =============================================================================
// Grammar Sources
// =============================================================================

// newStore opens the grammar store: MongoDB when a URI is configured,
// otherwise the local file store.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	if c.cfg.MongoURI != "" {
		return store.NewMongoStore(ctx, store.MongoConfig{
			URI:      c.cfg.MongoURI,
			Database: c.cfg.MongoDatabase,
		})
	}
	return store.NewFileStore("")
}

// loadGrammar resolves ref as a grammar file, falling back to a stored
// grammar of that name.
func (c *CLI) loadGrammar(ctx context.Context, ref string) (*grammar.Grammar, error) {
	if _, err := os.Stat(ref); err == nil {
		g, err := grammar.Load(ref)
		if err != nil {
			return nil, fmt.Errorf("load grammar %s: %w", ref, err)
		}
		return g, nil
	}

	st, err := c.newStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	doc, err := st.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("grammar %q is neither a file nor a stored grammar: %w", ref, err)
	}
	c.Logger.Debug("loaded stored grammar", "name", doc.Name, "updated", doc.UpdatedAt)
	return doc.Grammar()
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/knotview/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
