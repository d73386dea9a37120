// Package store keeps the road network and its contracted graphs, one per
// profile, in a bbolt database.
package store

import (
	"bytes"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/network"
	"github.com/azybler/road_router/pkg/profile"
)

var (
	bucketNetwork    = []byte("network")
	bucketContracted = []byte("contracted")
	bucketProfiles   = []byte("profiles")

	keyNetwork = []byte("data")
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is safe for concurrent use.
type Store struct {
	db     *bbolt.DB
	logger logrus.FieldLogger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	discard := logrus.New()
	discard.Out = io.Discard
	s := &Store{logger: discard}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("module", "store")

	db, err := bbolt.Open(path, 0o644, &bbolt.Options{
		Timeout:      5 * time.Second,
		NoGrowSync:   bbolt.DefaultOptions.NoGrowSync,
		FreelistType: bbolt.DefaultOptions.FreelistType,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketNetwork, bucketContracted, bucketProfiles} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}
	s.db = db
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// PutNetwork replaces the network. Contracted graphs built from the previous
// network are dropped.
func (s *Store) PutNetwork(n *network.Network) error {
	var buf bytes.Buffer
	if _, err := n.Serialize(&buf); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketContracted, bucketProfiles} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketNetwork).Put(keyNetwork, buf.Bytes())
	})
	if err != nil {
		return errors.Wrap(err, "put network")
	}
	s.logger.Infof("stored network: %d vertices, %d roads, %d bytes", n.VertexCount(), len(n.Roads), buf.Len())
	return nil
}

// Network loads the stored network.
func (s *Store) Network() (*network.Network, error) {
	var n *network.Network
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketNetwork).Get(keyNetwork)
		if v == nil {
			return errors.Wrap(ErrNotFound, "network")
		}
		var err error
		n, err = network.Deserialize(bytes.NewReader(v))
		return err
	})
	return n, err
}

// PutContracted stores g as the contracted graph of p, together with the
// definition it was built from.
func (s *Store) PutContracted(p profile.Profile, g *graph.DirectedMeta) error {
	def, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode profile")
	}
	var buf bytes.Buffer
	if _, err := g.Serialize(&buf); err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketProfiles).Put([]byte(p.Name), def); err != nil {
			return err
		}
		return tx.Bucket(bucketContracted).Put([]byte(p.Name), buf.Bytes())
	})
	if err != nil {
		return errors.Wrapf(err, "put contracted %s", p.Name)
	}
	s.logger.WithField("profile", p.Name).Infof("stored contracted graph: %d bytes", buf.Len())
	return nil
}

// Contracted loads the contracted graph of the named profile. The graph is
// read-only.
func (s *Store) Contracted(name string) (*graph.DirectedMeta, error) {
	var g *graph.DirectedMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketContracted).Get([]byte(name))
		if v == nil {
			return errors.Wrapf(ErrNotFound, "contracted graph %s", name)
		}
		var err error
		g, err = graph.DeserializeMeta(bytes.NewReader(v))
		return err
	})
	return g, err
}

// HasContracted reports whether a contracted graph exists for p and was
// built from the same definition.
func (s *Store) HasContracted(p profile.Profile) (bool, error) {
	def, err := yaml.Marshal(p)
	if err != nil {
		return false, errors.Wrap(err, "encode profile")
	}
	var ok bool
	err = s.db.View(func(tx *bbolt.Tx) error {
		stored := tx.Bucket(bucketProfiles).Get([]byte(p.Name))
		ok = stored != nil && bytes.Equal(stored, def) &&
			tx.Bucket(bucketContracted).Get([]byte(p.Name)) != nil
		return nil
	})
	return ok, err
}

// RemoveContracted deletes the contracted graph of the named profile.
func (s *Store) RemoveContracted(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketContracted).Get([]byte(name)) == nil {
			return errors.Wrapf(ErrNotFound, "contracted graph %s", name)
		}
		if err := tx.Bucket(bucketProfiles).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketContracted).Delete([]byte(name))
	})
}

// Profiles returns the definitions of every stored contracted graph, sorted
// by name.
func (s *Store) Profiles() ([]profile.Profile, error) {
	var out []profile.Profile
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(k, v []byte) error {
			var p profile.Profile
			if err := yaml.Unmarshal(v, &p); err != nil {
				return errors.Wrapf(err, "decode profile %s", k)
			}
			out = append(out, p)
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
