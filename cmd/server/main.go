package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/road_router/pkg/api"
	"github.com/azybler/road_router/pkg/config"
	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/routing"
	"github.com/azybler/road_router/pkg/store"
)

type options struct {
	configPath      string
	dbPath          string
	addr            string
	graphDir        string
	corsOrigin      string
	contractMissing bool
	verbose         bool
}

func main() {
	var opts options
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve route queries over HTTP from a preprocessed database.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	f := rootCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (defaults apply when empty)")
	f.StringVar(&opts.dbPath, "db", "", "database path (overrides storage.path)")
	f.StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	f.StringVar(&opts.graphDir, "graph-dir", "", "serve memory-mapped <profile>.graph files from this directory")
	f.StringVar(&opts.corsOrigin, "cors-origin", "", "CORS allowed origin (empty = same-origin)")
	f.BoolVar(&opts.contractMissing, "contract-missing", false, "contract profiles whose graph is missing or stale before serving")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	applyFlags(&cfg, opts)
	logger := cfg.Logger()
	if opts.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	start := time.Now()
	s, err := store.Open(cfg.Storage.Path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	db, err := routing.NewDb(s, routing.WithContraction(cfg.Contraction), routing.WithLogger(logger))
	if err != nil {
		return err
	}
	n := db.Network()
	logger.Infof("loaded network: %d vertices, %d roads", n.VertexCount(), len(n.Roads))

	snapper := routing.NewSnapper(n, cfg.Snap.MaxDistance)
	svc, closers, err := loadService(context.Background(), cfg, db, snapper, opts.contractMissing)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if cfg.Server.DefaultProfile != "" {
		if err := svc.SetDefault(cfg.Server.DefaultProfile); err != nil {
			return err
		}
	}

	stats := api.StatsResponse{NumVertices: n.VertexCount(), NumRoads: len(n.Roads)}
	for _, p := range cfg.Profiles {
		r, _ := svc.Get(p.Name)
		stats.Profiles = append(stats.Profiles, api.ProfileStats{Name: p.Name, Metric: string(p.Metric), NumEdges: r.EdgeCount()})
	}
	logger.Infof("ready in %s with profiles %v", time.Since(start).Round(time.Millisecond), svc.Profiles())

	handlers := api.NewHandlers(svc, stats, api.WithMaxTargets(cfg.Server.MaxTargets), api.WithLogger(logger))
	srv := api.NewServer(cfg.Server, handlers, logger)
	if err := api.ListenAndServe(srv, logger); err != nil {
		return errors.Wrap(err, "server stopped")
	}
	return nil
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.graphDir != "" {
		cfg.Storage.GraphDir = opts.graphDir
	}
	if opts.corsOrigin != "" {
		cfg.Server.CORSOrigin = opts.corsOrigin
	}
}

// loadService builds the router for every configured profile, from mapped
// graph files when a graph directory is configured.
func loadService(ctx context.Context, cfg config.Config, db *routing.Db, snapper *routing.Snapper, contractMissing bool) (*routing.Service, []io.Closer, error) {
	if cfg.Storage.GraphDir == "" {
		svc, err := db.Service(ctx, cfg.Profiles, snapper, contractMissing)
		return svc, nil, err
	}

	svc := routing.NewService()
	var closers []io.Closer
	for _, p := range cfg.Profiles {
		path := filepath.Join(cfg.Storage.GraphDir, p.Name+".graph")
		r, c, err := db.LoadMapped(p, snapper, path, graph.DefaultMappedOptions())
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, err
		}
		closers = append(closers, c)
		svc.Add(p.Name, r)
	}
	return svc, closers, nil
}
