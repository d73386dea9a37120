package routing

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/azybler/road_router/pkg/ch"
	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/network"
	"github.com/azybler/road_router/pkg/profile"
	"github.com/azybler/road_router/pkg/store"
	"github.com/azybler/road_router/pkg/weight"
)

// Db ties a stored network to the contracted graphs of its profiles.
type Db struct {
	store  *store.Store
	net    *network.Network
	cfg    ch.Config
	logger logrus.FieldLogger
}

// DbOption configures a Db.
type DbOption func(*Db)

// WithContraction sets the contraction tuning.
func WithContraction(cfg ch.Config) DbOption {
	return func(d *Db) { d.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) DbOption {
	return func(d *Db) { d.logger = l }
}

// NewDb loads the network held by s.
func NewDb(s *store.Store, opts ...DbOption) (*Db, error) {
	discard := logrus.New()
	discard.Out = io.Discard
	d := &Db{store: s, cfg: ch.DefaultConfig(), logger: discard}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithField("module", "routing")

	n, err := s.Network()
	if err != nil {
		return nil, errors.Wrap(err, "load network")
	}
	d.net = n
	return d, nil
}

// Network returns the road network.
func (d *Db) Network() *network.Network { return d.net }

// HasContracted reports whether an up-to-date contracted graph of p exists.
func (d *Db) HasContracted(p profile.Profile) (bool, error) {
	return d.store.HasContracted(p)
}

// Contract builds and stores the contracted graph of p.
func (d *Db) Contract(ctx context.Context, p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	src := p.Source(d.net.Profiles)
	var (
		g   *graph.DirectedMeta
		err error
	)
	if p.Augmented() {
		g, err = contract[weight.Augmented](ctx, d, p, weight.NewAugmented(src))
	} else {
		g, err = contract[float32](ctx, d, p, weight.NewDefault(src))
	}
	if err != nil {
		return errors.Wrapf(err, "contract %s", p.Name)
	}
	return d.store.PutContracted(p, g)
}

func contract[T any](ctx context.Context, d *Db, p profile.Profile, h weight.Handler[T]) (*graph.DirectedMeta, error) {
	log := d.logger.WithField("profile", p.Name)
	start := time.Now()

	g, err := network.BuildGraph(d.net, h)
	if err != nil {
		return nil, err
	}
	log.Infof("built graph: %d vertices, %d edges", g.VertexCount(), g.EdgeCount())

	b, err := ch.NewBuilder(g, h, ch.WithConfig(d.cfg), ch.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := b.Run(ctx); err != nil {
		return nil, err
	}
	if err := g.Compress(true); err != nil {
		return nil, err
	}
	st := b.Stats()
	log.Infof("contracted in %v: %d shortcuts, %d edges", time.Since(start).Round(time.Millisecond), st.Shortcuts, g.EdgeCount())
	return g, nil
}

// Export writes the stored contracted graph of the named profile to path,
// for use with LoadMapped.
func (d *Db) Export(name, path string) error {
	g, err := d.store.Contracted(name)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	n, err := g.Serialize(f)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	d.logger.WithField("profile", name).Infof("exported %d bytes to %s", n, path)
	return nil
}

// Engine returns a router for p over its stored contracted graph.
func (d *Db) Engine(p profile.Profile, snapper *Snapper) (ProfileRouter, error) {
	ok, err := d.HasContracted(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "no up-to-date contracted graph for %s", p.Name)
	}
	g, err := d.store.Contracted(p.Name)
	if err != nil {
		return nil, err
	}
	return newEngine(d.net, snapper, g, p), nil
}

// LoadMapped returns a router for p over a memory-mapped graph file written
// by Export. The returned closer unmaps the file.
func (d *Db) LoadMapped(p profile.Profile, snapper *Snapper, path string, opts graph.MappedOptions) (ProfileRouter, io.Closer, error) {
	m, err := graph.OpenMapped(path, opts)
	if err != nil {
		return nil, nil, err
	}
	if m.VertexCount() > d.net.VertexCount() {
		m.Close()
		return nil, nil, errors.Errorf("%s has %d vertices, network has %d", path, m.VertexCount(), d.net.VertexCount())
	}
	return newEngine(d.net, snapper, m.DirectedMeta, p), m, nil
}

func newEngine(n *network.Network, snapper *Snapper, g *graph.DirectedMeta, p profile.Profile) ProfileRouter {
	src := p.Source(n.Profiles)
	if p.Augmented() {
		return NewEngine(n, snapper, g, weight.Handler[weight.Augmented](weight.NewAugmented(src)), src)
	}
	return NewEngine(n, snapper, g, weight.Handler[float32](weight.NewDefault(src)), src)
}

// Service returns a router over every profile in profiles. Profiles without
// an up-to-date contracted graph are contracted first when contractMissing
// is set, and fail otherwise.
func (d *Db) Service(ctx context.Context, profiles []profile.Profile, snapper *Snapper, contractMissing bool) (*Service, error) {
	svc := NewService()
	for _, p := range profiles {
		ok, err := d.HasContracted(p)
		if err != nil {
			return nil, err
		}
		if !ok && contractMissing {
			d.logger.WithField("profile", p.Name).Info("contracted graph missing or stale, contracting")
			if err := d.Contract(ctx, p); err != nil {
				return nil, err
			}
		}
		r, err := d.Engine(p, snapper)
		if err != nil {
			return nil, err
		}
		svc.Add(p.Name, r)
	}
	return svc, nil
}
