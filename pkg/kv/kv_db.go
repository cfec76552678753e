package kv

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
)

var (
	ErrLinksNotFound    = errors.New("links not found")
	ErrSnapshotNotFound = errors.New("network snapshot not found")
	ErrCorruptSnapshot  = errors.New("network snapshot does not match its meta record")
)

const (
	h3Resolution = 9
	maxGridDisk  = 10
	batchSize    = 1000
)

var (
	metaKey    = []byte("meta")
	nodePrefix = []byte("n:")
	linkPrefix = []byte("l:")
	h3Prefix   = []byte("h3:")
)

func prefixed(prefix []byte, id string) []byte {
	return append(slices.Clone(prefix), id...)
}

// KVDB stores network snapshots and an h3 bucket index of links in badger.
type KVDB struct {
	db     *badger.DB
	logger *zap.Logger
}

type Option func(*KVDB)

func WithLogger(logger *zap.Logger) Option {
	return func(k *KVDB) {
		k.logger = logger
	}
}

func NewKVDB(db *badger.DB, opts ...Option) *KVDB {
	k := &KVDB{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

type batchData struct {
	key   []byte
	value []byte
}

func (k *KVDB) saveBatch(ctx context.Context, batchData []batchData) error {
	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for _, data := range batchData {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Set(data.key, data.value); err != nil {
			return errors.Wrap(err, "set batch entry")
		}
	}

	if err := batch.Flush(); err != nil {
		return errors.Wrap(err, "flush batch")
	}
	k.logger.Debug("saved batch", zap.Int("entries", len(batchData)))
	return nil
}

// batchWriter collects entries and flushes them every batchSize.
type batchWriter struct {
	k       *KVDB
	ctx     context.Context
	pending []batchData
}

func (w *batchWriter) add(key, value []byte) error {
	w.pending = append(w.pending, batchData{key: key, value: value})
	if len(w.pending) == batchSize {
		return w.flush()
	}
	return nil
}

func (w *batchWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	err := w.k.saveBatch(w.ctx, w.pending)
	w.pending = make([]batchData, 0, batchSize)
	return err
}

// generationKey addresses a record of one snapshot generation, e.g. "l:000000000000002a:<id>".
func generationKey(prefix []byte, gen uint64, id string) []byte {
	return prefixed(generationPrefix(prefix, gen), id)
}

func generationPrefix(prefix []byte, gen uint64) []byte {
	return fmt.Appendf(slices.Clone(prefix), "%016x:", gen)
}

func (k *KVDB) readMeta() (metaRecord, error) {
	metaVal, err := k.get(metaKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return metaRecord{}, ErrSnapshotNotFound
	}
	if err != nil {
		return metaRecord{}, errors.Wrap(err, "read snapshot meta")
	}
	return decodeValue[metaRecord](metaVal)
}

// SaveNetwork replaces the stored snapshot with net. Records go to a new generation and the
// meta record is switched to it only once every record is written, so a failed save leaves the
// previous snapshot loadable.
func (k *KVDB) SaveNetwork(ctx context.Context, net *network.Network) error {
	k.logger.Info("saving network snapshot",
		zap.Int("nodes", net.NumberOfNodes()), zap.Int("links", net.NumberOfLinks()))

	current, err := k.readMeta()
	hasCurrent := err == nil
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return err
	}

	// leftovers of failed saves
	keep := [][]byte{}
	if hasCurrent {
		keep = append(keep, generationPrefix(nodePrefix, current.Generation),
			generationPrefix(linkPrefix, current.Generation))
	}
	if err := k.deletePrefixes(ctx, keep, nodePrefix, linkPrefix); err != nil {
		return errors.Wrap(err, "drop stale snapshot records")
	}

	gen := current.Generation + 1
	w := &batchWriter{k: k, ctx: ctx}

	seq := 0
	for id, attrs := range net.Nodes() {
		rec, err := newNodeRecord(seq, id, attrs)
		if err != nil {
			return errors.Wrapf(err, "node %s", id)
		}
		val, err := encodeValue(rec)
		if err != nil {
			return errors.Wrapf(err, "encode node %s", id)
		}
		if err := w.add(generationKey(nodePrefix, gen, id), val); err != nil {
			return err
		}
		seq++
	}

	seq = 0
	for l := range net.Edges() {
		rec, err := newLinkRecord(seq, l, net.Transformer())
		if err != nil {
			return errors.Wrapf(err, "link %s", l.ID)
		}
		val, err := encodeValue(rec)
		if err != nil {
			return errors.Wrapf(err, "encode link %s", l.ID)
		}
		if err := w.add(generationKey(linkPrefix, gen, l.ID), val); err != nil {
			return err
		}
		seq++
	}
	if err := w.flush(); err != nil {
		return err
	}

	meta, err := encodeValue(metaRecord{
		CRS:        net.CRS(),
		Nodes:      net.NumberOfNodes(),
		Links:      net.NumberOfLinks(),
		Generation: gen,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = k.db.Update(func(txn *badger.Txn) error {
		return txn.Set(slices.Clone(metaKey), meta)
	})
	if err != nil {
		return errors.Wrap(err, "write snapshot meta")
	}

	// the new snapshot is committed, old generations only take space from here on
	keep = [][]byte{generationPrefix(nodePrefix, gen), generationPrefix(linkPrefix, gen)}
	if err := k.deletePrefixes(context.WithoutCancel(ctx), keep, nodePrefix, linkPrefix); err != nil {
		k.logger.Warn("cannot drop previous snapshot generation", zap.Error(err))
	}

	k.logger.Info("network snapshot saved", zap.Uint64("generation", gen))
	return nil
}

// deletePrefixes deletes every key under prefixes except those under one of keep.
func (k *KVDB) deletePrefixes(ctx context.Context, keep [][]byte, prefixes ...[]byte) error {
	kept := func(key []byte) bool {
		for _, p := range keep {
			if bytes.HasPrefix(key, p) {
				return true
			}
		}
		return false
	}

	var keys [][]byte
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for _, prefix := range prefixes {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if !kept(it.Item().Key()) {
					keys = append(keys, it.Item().KeyCopy(nil))
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}

func scanPrefix[T any](ctx context.Context, db *badger.DB, prefix []byte) ([]T, error) {
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeValue[T](val)
			if err != nil {
				return errors.Wrapf(err, "decode %s", bytes.Clone(it.Item().Key()))
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// LoadNetwork rebuilds the stored network with the same node order, link ids and multi edge
// indices. The change log of the returned network starts empty.
func (k *KVDB) LoadNetwork(ctx context.Context, opts ...network.Option) (*network.Network, error) {
	meta, err := k.readMeta()
	if err != nil {
		return nil, err
	}

	net, err := network.New(append([]network.Option{network.WithCRS(meta.CRS)}, opts...)...)
	if err != nil {
		return nil, err
	}

	nodes, err := scanPrefix[nodeRecord](ctx, k.db, generationPrefix(nodePrefix, meta.Generation))
	if err != nil {
		return nil, errors.Wrap(err, "load nodes")
	}
	if len(nodes) != meta.Nodes {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "%d nodes stored, meta records %d", len(nodes), meta.Nodes)
	}
	slices.SortFunc(nodes, func(a, b nodeRecord) int { return a.Seq - b.Seq })
	for _, n := range nodes {
		attrs, err := n.toAttrs()
		if err != nil {
			return nil, errors.Wrapf(err, "decode node %s", n.ID)
		}
		net.AddNode(n.ID, attrs)
	}

	links, err := scanPrefix[linkRecord](ctx, k.db, generationPrefix(linkPrefix, meta.Generation))
	if err != nil {
		return nil, errors.Wrap(err, "load links")
	}
	if len(links) != meta.Links {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "%d links stored, meta records %d", len(links), meta.Links)
	}
	slices.SortFunc(links, func(a, b linkRecord) int { return a.Seq - b.Seq })
	for _, l := range links {
		attrs, err := l.toAttrs(net.Transformer())
		if err != nil {
			return nil, errors.Wrapf(err, "decode link %s", l.ID)
		}
		id := net.AddLink(l.ID, l.From, l.To, attrs)
		ref, _ := net.LinkReference(id)
		if id != l.ID || ref.MultiEdgeIdx != l.MultiEdgeIdx {
			return nil, errors.Errorf("snapshot link %s restored as %s index %d, stored index %d",
				l.ID, id, ref.MultiEdgeIdx, l.MultiEdgeIdx)
		}
	}
	net.ChangeLog().Flush()

	k.logger.Info("network snapshot loaded", zap.Int("nodes", len(nodes)), zap.Int("links", len(links)))
	return net, nil
}

// BuildH3IndexedLinks buckets every link by the h3 cell of its first point.
func (k *KVDB) BuildH3IndexedLinks(ctx context.Context, net *network.Network) error {
	k.logger.Info("creating h3 indexed links")

	if err := k.deletePrefixes(ctx, nil, h3Prefix); err != nil {
		return errors.Wrap(err, "drop previous h3 index")
	}

	buckets := make(map[h3.Cell][]h3Link)
	for _, id := range net.LinkIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := net.LinkGeometry(id)
		if err != nil {
			k.logger.Debug("link without geometry is not h3 indexed", zap.String("link", id))
			continue
		}
		start := geo.CoordinateFromPoint(line[0])
		cell := h3.LatLngToCell(h3.NewLatLng(start.Lat, start.Lon), h3Resolution)
		buckets[cell] = append(buckets[cell], h3Link{LinkID: id, Lat: start.Lat, Lon: start.Lon})
	}

	w := &batchWriter{k: k, ctx: ctx}
	for cell, links := range buckets {
		val, err := encodeValue(links)
		if err != nil {
			return err
		}
		if err := w.add(prefixed(h3Prefix, cell.String()), val); err != nil {
			return err
		}
	}
	if err := w.flush(); err != nil {
		return err
	}

	k.logger.Info("h3 indexed links saved", zap.Int("cells", len(buckets)))
	return nil
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (k *KVDB) linksInCell(cell h3.Cell) ([]h3Link, error) {
	val, err := k.get(prefixed(h3Prefix, cell.String()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeValue[[]h3Link](val)
}

func (k *KVDB) linksInCells(cells []h3.Cell, skip map[h3.Cell]bool) ([]h3Link, error) {
	var links []h3Link
	for _, cell := range cells {
		if skip[cell] {
			continue
		}
		skip[cell] = true
		found, err := k.linksInCell(cell)
		if err != nil {
			return nil, err
		}
		links = append(links, found...)
	}
	return links, nil
}

// GetNearestLinksFromPointCoord returns the ids of links starting in the h3 cell of the point,
// widening to the surrounding 1 km and then to grid disks of growing size until something is
// found.
func (k *KVDB) GetNearestLinksFromPointCoord(lat, lon float64) ([]string, error) {
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lon), h3Resolution)
	visited := map[h3.Cell]bool{}

	links, err := k.linksInCells([]h3.Cell{cell}, visited)
	if err != nil {
		return nil, err
	}

	if len(links) == 0 {
		links, err = k.linksInCells(kRingIndexesArea(lat, lon, 1), visited)
		if err != nil {
			return nil, err
		}
	}

	for lev := 1; lev <= maxGridDisk && len(links) == 0; lev++ {
		links, err = k.linksInCells(h3.GridDisk(cell, lev), visited)
		if err != nil {
			return nil, err
		}
	}

	if len(links) == 0 {
		return nil, ErrLinksNotFound
	}

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.LinkID)
	}
	slices.Sort(ids)
	return ids, nil
}

func kRingIndexesArea(lat, lon, searchRadiusKm float64) []h3.Cell {
	origin := h3.LatLngToCell(h3.NewLatLng(lat, lon), h3Resolution)
	originArea := h3.CellAreaKm2(origin)
	searchArea := math.Pi * searchRadiusKm * searchRadiusKm

	radius := 0
	diskArea := originArea
	for diskArea < searchArea {
		radius++
		cellCount := float64(3*radius*(radius+1) + 1)
		diskArea = cellCount * originArea
	}

	return h3.GridDisk(origin, radius)
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
