package spatial

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/util"
	"go.uber.org/zap"
)

var ErrInvalidSearchConfig = errors.New("invalid catchment search config")

// radii are rounded to a micrometre so repeated steps do not drift
const (
	radiusPrecision = 6
	// MinStepSize is the smallest step that still moves a radius rounded to radiusPrecision.
	MinStepSize = 1e-6
)

// Point is a feature to snap, in WGS84.
type Point struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SearchConfig drives ClosestLinks. Distances are in metres.
type SearchConfig struct {
	// InitialDistance is the first radius searched; zero means StepSize.
	InitialDistance float64
	StepSize        float64
	// DistanceThreshold caps the radius; nil searches until every point matches.
	DistanceThreshold *float64
	// Modes restricts candidate links; empty means every link.
	Modes []string
}

func (c SearchConfig) validate() error {
	if c.StepSize < MinStepSize {
		return fmt.Errorf("%w: step size must be at least %g, got %g", ErrInvalidSearchConfig, MinStepSize, c.StepSize)
	}
	if c.InitialDistance < 0 {
		return fmt.Errorf("%w: initial distance must not be negative", ErrInvalidSearchConfig)
	}
	if c.DistanceThreshold != nil && *c.DistanceThreshold <= 0 {
		return fmt.Errorf("%w: distance threshold must be positive", ErrInvalidSearchConfig)
	}
	return nil
}

// CatchmentRow is one (point, link) pair found at radius Catchment.
type CatchmentRow struct {
	PointID   string  `json:"point_id"`
	LinkID    string  `json:"link_id"`
	Catchment float64 `json:"catchment"`
}

// Unmatched is a point for which no link was found before the search stopped.
type Unmatched struct {
	PointID    string  `json:"point_id"`
	LastRadius float64 `json:"last_radius"`
}

// CatchmentResult holds every link found per point, ordered by point id then link id.
// A point can have several rows at the same radius; choosing among them is the caller's call.
type CatchmentResult struct {
	Rows      []CatchmentRow `json:"rows"`
	Unmatched []Unmatched    `json:"unmatched"`
}

// ClosestLinks searches around every point with a radius growing by StepSize per round.
// A point leaves the search at the first radius where any link lies within it; all links found
// at that radius are reported. Points still unresolved when the radius passes DistanceThreshold
// are reported as unmatched. If ctx is done between rounds the partial result is returned with
// the remaining points unmatched, together with ctx.Err().
func (t *SpatialTree) ClosestLinks(ctx context.Context, points []Point, cfg SearchConfig) (CatchmentResult, error) {
	if err := cfg.validate(); err != nil {
		return CatchmentResult{}, err
	}

	tree := t
	if len(cfg.Modes) > 0 {
		sub, err := t.ModalSubtree(cfg.Modes...)
		if err != nil {
			return CatchmentResult{}, err
		}
		tree = sub
	}
	if tree.index.Size() == 0 {
		return CatchmentResult{}, fmt.Errorf("%w: no link geometry to search", ErrEmptySpatialResult)
	}

	start := cfg.InitialDistance
	if start == 0 {
		start = cfg.StepSize
	}
	radius := start

	unresolved := slices.Clone(points)
	var (
		rows         []CatchmentRow
		lastSearched float64
		searchErr    error
		round        int
	)

	for len(unresolved) > 0 {
		if cfg.DistanceThreshold != nil && radius > *cfg.DistanceThreshold {
			break
		}
		if err := ctx.Err(); err != nil {
			searchErr = err
			break
		}

		remaining := unresolved[:0]
		for _, p := range unresolved {
			d := geo.MetresToDegrees(radius, p.Lat)
			found := tree.index.WithinDistance(geo.NewCoordinate(p.Lat, p.Lon).Point(), d)
			if len(found) == 0 {
				remaining = append(remaining, p)
				continue
			}
			for _, linkID := range found {
				rows = append(rows, CatchmentRow{PointID: p.ID, LinkID: linkID, Catchment: radius})
			}
		}

		round++
		tree.logger.Debug("catchment round done",
			zap.Int("round", round),
			zap.Float64("radius", radius),
			zap.Int("matched", len(unresolved)-len(remaining)),
			zap.Int("unresolved", len(remaining)))

		unresolved = remaining
		lastSearched = radius
		radius = util.RoundFloat(start+float64(round)*cfg.StepSize, radiusPrecision)
	}

	slices.SortFunc(rows, func(a, b CatchmentRow) int {
		return cmp.Or(cmp.Compare(a.PointID, b.PointID), cmp.Compare(a.LinkID, b.LinkID))
	})

	result := CatchmentResult{Rows: rows}
	for _, p := range unresolved {
		result.Unmatched = append(result.Unmatched, Unmatched{PointID: p.ID, LastRadius: lastSearched})
	}
	slices.SortFunc(result.Unmatched, func(a, b Unmatched) int {
		return cmp.Compare(a.PointID, b.PointID)
	})

	if len(result.Unmatched) > 0 {
		ids := make([]string, 0, len(result.Unmatched))
		for _, u := range result.Unmatched {
			ids = append(ids, u.PointID)
		}
		tree.logger.Warn("points left without a link",
			zap.Strings("unmatched", ids), zap.Float64("last_radius", lastSearched))
	}
	return result, searchErr
}

// ClosestLinkPerPoint picks one row per point: the smallest link id among the rows of the
// point's catchment radius.
func ClosestLinkPerPoint(result CatchmentResult) map[string]CatchmentRow {
	out := make(map[string]CatchmentRow)
	for _, row := range result.Rows {
		if _, ok := out[row.PointID]; !ok {
			out[row.PointID] = row
		}
	}
	return out
}
