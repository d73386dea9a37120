package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azybler/road_router/pkg/config"
	"github.com/azybler/road_router/pkg/network"
	osmparser "github.com/azybler/road_router/pkg/osm"
	"github.com/azybler/road_router/pkg/profile"
	"github.com/azybler/road_router/pkg/routing"
	"github.com/azybler/road_router/pkg/store"
)

type options struct {
	configPath string
	input      string
	dbPath     string
	bbox       string
	singapore  bool
	kl         bool
	profiles   []string
	exportDir  string
	allComps   bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts options
	rootCmd := &cobra.Command{
		Use:          "preprocess --input <file.osm.pbf>",
		Short:        "Import an OSM extract and contract it for every configured profile.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(ctx, opts)
		},
	}
	f := rootCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (defaults apply when empty)")
	f.StringVarP(&opts.input, "input", "i", "", "path to .osm.pbf file")
	f.StringVar(&opts.dbPath, "db", "", "database path (overrides storage.path)")
	f.StringVar(&opts.bbox, "bbox", "", "bounding box filter: minLat,minLng,maxLat,maxLng")
	f.BoolVar(&opts.singapore, "singapore", false, "shortcut for --bbox 1.15,103.6,1.48,104.1")
	f.BoolVar(&opts.kl, "kl", false, "shortcut for --bbox 2.75,101.2,3.5,102.0 (Selangor + Kuala Lumpur)")
	f.StringSliceVarP(&opts.profiles, "profile", "p", nil, "profiles to contract (default all configured)")
	f.StringVar(&opts.exportDir, "export", "", "also write <profile>.graph files for memory-mapped serving")
	f.BoolVar(&opts.allComps, "all-components", false, "keep every connected component")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.MarkFlagRequired("input")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	logger := cfg.Logger()
	if opts.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	bbox, err := selectBBox(opts)
	if err != nil {
		return err
	}
	profiles, err := selectProfiles(cfg, opts.profiles)
	if err != nil {
		return err
	}

	start := time.Now()

	logger.Infof("parsing %s", opts.input)
	in, err := os.Open(opts.input)
	if err != nil {
		return errors.Wrap(err, "open input")
	}
	defer in.Close()
	parsed, err := osmparser.Parse(ctx, in, osmparser.ParseOptions{BBox: bbox, Logger: logger})
	if err != nil {
		return err
	}
	logger.Infof("parsed %d segments, %d nodes, %d edge profiles", len(parsed.Segments), len(parsed.Coords), len(parsed.Profiles))

	n := network.Build(parsed)
	logger.Infof("network: %d vertices, %d roads", n.VertexCount(), len(n.Roads))
	if !opts.allComps && n.VertexCount() > 0 {
		comp := n.LargestComponent()
		logger.Infof("largest component: %d vertices (%.1f%%)", len(comp), float64(len(comp))/float64(n.VertexCount())*100)
		n = n.Filter(comp)
	}

	s, err := store.Open(cfg.Storage.Path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.PutNetwork(n); err != nil {
		return err
	}

	db, err := routing.NewDb(s, routing.WithContraction(cfg.Contraction), routing.WithLogger(logger))
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := db.Contract(ctx, p); err != nil {
			return err
		}
		if opts.exportDir != "" {
			if err := os.MkdirAll(opts.exportDir, 0o755); err != nil {
				return errors.Wrap(err, "create export dir")
			}
			if err := db.Export(p.Name, filepath.Join(opts.exportDir, p.Name+".graph")); err != nil {
				return err
			}
		}
	}

	info, err := os.Stat(cfg.Storage.Path)
	if err != nil {
		return errors.Wrap(err, "stat database")
	}
	logger.Infof("done in %s: %s (%.1f MB)", time.Since(start).Round(time.Second), cfg.Storage.Path, float64(info.Size())/(1024*1024))
	return nil
}

func selectBBox(opts options) (osmparser.BBox, error) {
	switch {
	case opts.kl:
		return osmparser.BBox{MinLat: 2.75, MaxLat: 3.5, MinLng: 101.2, MaxLng: 102.0}, nil
	case opts.singapore:
		return osmparser.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}, nil
	case opts.bbox != "":
		return parseBBox(opts.bbox)
	}
	return osmparser.BBox{}, nil
}

func parseBBox(s string) (osmparser.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return osmparser.BBox{}, errors.Errorf("invalid bbox %q (expected minLat,minLng,maxLat,maxLng)", s)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return osmparser.BBox{}, errors.Wrapf(err, "invalid bbox %q", s)
		}
		v[i] = f
	}
	b := osmparser.BBox{MinLat: v[0], MinLng: v[1], MaxLat: v[2], MaxLng: v[3]}
	if b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng {
		return osmparser.BBox{}, errors.Errorf("invalid bbox %q: min must be below max", s)
	}
	return b, nil
}

func selectProfiles(cfg config.Config, names []string) ([]profile.Profile, error) {
	if len(names) == 0 {
		return cfg.Profiles, nil
	}
	out := make([]profile.Profile, 0, len(names))
	for _, name := range names {
		p, ok := cfg.Profile(name)
		if !ok {
			return nil, errors.Wrapf(routing.ErrUnknownProfile, "%q", name)
		}
		out = append(out, p)
	}
	return out, nil
}
