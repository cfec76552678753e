package kv

import (
	"encoding/json"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/util"
	"github.com/pkg/errors"
)

// metaRecord is written last by a save and points at the generation holding the snapshot.
type metaRecord struct {
	CRS        string
	Nodes      int
	Links      int
	Generation uint64
}

// attrRecord stores an attribute map. Numbers come back as float64. Values of any other type
// than the typed buckets are JSON encoded and come back as decoded JSON (maps, []any, float64).
type attrRecord struct {
	Numbers     map[string]float64
	Strings     map[string]string
	Bools       map[string]bool
	StringLists map[string][]string
	JSON        map[string][]byte
}

type nodeRecord struct {
	Seq   int
	ID    string
	S2ID  uint64
	HasS2 bool
	Attrs attrRecord
}

type linkRecord struct {
	Seq          int
	ID           string
	From         string
	To           string
	MultiEdgeIdx int
	HasModes     bool
	Modes        []string
	// Geometry is a polyline of the WGS84 link geometry, empty when the link has none.
	Geometry string
	Attrs    attrRecord
}

type h3Link struct {
	LinkID string
	Lat    float64
	Lon    float64
}

func newAttrRecord(attrs graph.Attrs, skip func(string) bool) (attrRecord, error) {
	rec := attrRecord{
		Numbers:     map[string]float64{},
		Strings:     map[string]string{},
		Bools:       map[string]bool{},
		StringLists: map[string][]string{},
		JSON:        map[string][]byte{},
	}
	for k, v := range attrs {
		if skip(k) {
			continue
		}
		switch val := v.(type) {
		case string:
			rec.Strings[k] = val
			continue
		case bool:
			rec.Bools[k] = val
			continue
		case []string:
			rec.StringLists[k] = val
			continue
		}
		if f, ok := util.ToFloat64(v); ok {
			rec.Numbers[k] = f
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return attrRecord{}, errors.Wrapf(err, "encode attribute %s", k)
		}
		rec.JSON[k] = raw
	}
	return rec, nil
}

func (r attrRecord) toAttrs() (graph.Attrs, error) {
	attrs := make(graph.Attrs, len(r.Numbers)+len(r.Strings)+len(r.Bools)+len(r.StringLists)+len(r.JSON))
	for k, v := range r.Numbers {
		attrs[k] = v
	}
	for k, v := range r.Strings {
		attrs[k] = v
	}
	for k, v := range r.Bools {
		attrs[k] = v
	}
	for k, v := range r.StringLists {
		attrs[k] = v
	}
	for k, raw := range r.JSON {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "decode attribute %s", k)
		}
		attrs[k] = v
	}
	return attrs, nil
}

func newNodeRecord(seq int, id string, attrs graph.Attrs) (nodeRecord, error) {
	rec := nodeRecord{Seq: seq, ID: id}
	if s2, ok := attrs[network.AttrS2ID].(uint64); ok {
		rec.S2ID, rec.HasS2 = s2, true
	}
	var err error
	rec.Attrs, err = newAttrRecord(attrs, func(k string) bool { return k == network.AttrS2ID })
	return rec, err
}

func (r nodeRecord) toAttrs() (graph.Attrs, error) {
	attrs, err := r.Attrs.toAttrs()
	if err != nil {
		return nil, err
	}
	if r.HasS2 {
		attrs[network.AttrS2ID] = r.S2ID
	}
	return attrs, nil
}

func newLinkRecord(seq int, l network.Link, t *geo.Transformer) (linkRecord, error) {
	rec := linkRecord{
		Seq:          seq,
		ID:           l.ID,
		From:         l.From,
		To:           l.To,
		MultiEdgeIdx: l.MultiEdgeIdx,
	}
	if _, ok := l.Attrs[network.AttrModes]; ok {
		rec.Modes, rec.HasModes = network.Modes(l.Attrs), true
	}
	if ls, ok := network.Geometry(l.Attrs); ok {
		rec.Geometry = geo.EncodePolyline(geo.CoordinatesFromLineString(t.LineToWGS84(ls)))
	}
	var err error
	rec.Attrs, err = newAttrRecord(l.Attrs, func(k string) bool {
		switch k {
		case network.AttrID, network.AttrFrom, network.AttrTo, network.AttrModes, network.AttrGeometry:
			return true
		}
		return false
	})
	return rec, err
}

func (r linkRecord) toAttrs(t *geo.Transformer) (graph.Attrs, error) {
	attrs, err := r.Attrs.toAttrs()
	if err != nil {
		return nil, err
	}
	if r.HasModes {
		attrs[network.AttrModes] = r.Modes
	}
	if r.Geometry != "" {
		coords, err := geo.DecodePolyline(r.Geometry)
		if err != nil {
			return nil, err
		}
		attrs[network.AttrGeometry] = t.LineFromWGS84(geo.LineStringFromCoordinates(coords))
	}
	return attrs, nil
}
