// Package access snaps schedule stops to network links per mode and writes the result back
// onto the stops.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/arup-group/genet-sub002/pkg/config"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/schedule"
	"github.com/arup-group/genet-sub002/pkg/spatial"
	"go.uber.org/zap"
)

// ModeReport is the outcome of one mode.
type ModeReport struct {
	Matched   int      `json:"matched"`
	Unmatched []string `json:"unmatched"`
	// Skipped is set when the network has no link of the mode.
	Skipped bool `json:"skipped"`
}

type Report map[string]ModeReport

type Assigner struct {
	net      *network.Network
	schedule *schedule.Schedule
	logger   *zap.Logger
}

func NewAssigner(net *network.Network, sched *schedule.Schedule, logger *zap.Logger) *Assigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assigner{net: net, schedule: sched, logger: logger}
}

// Assign builds one spatial tree over the network and, per configured mode, gives every stop
// the first (by link id) of the closest links of that mode. Stops in the same CRS as the
// network are expected.
func (a *Assigner) Assign(ctx context.Context, cfg config.CatchmentConfig) (Report, error) {
	tree := spatial.BuildSpatialTree(a.net, spatial.WithLogger(a.logger))
	report := make(Report, len(cfg.Modes))

	for _, mode := range cfg.Modes {
		points := a.points(mode, cfg.ServedStopsOnly)
		if len(points) == 0 {
			report[mode] = ModeReport{}
			continue
		}

		res, err := tree.ClosestLinks(ctx, points, cfg.SearchConfig(mode))
		if errors.Is(err, spatial.ErrEmptySpatialResult) {
			a.logger.Warn("no links for mode, skipping", zap.String("mode", mode))
			report[mode] = ModeReport{Skipped: true}
			continue
		}
		if err != nil {
			return report, fmt.Errorf("closest links for mode %s: %w", mode, err)
		}

		mr := ModeReport{}
		for stopID, row := range spatial.ClosestLinkPerPoint(res) {
			if err := a.schedule.SetStopAccess(stopID, mode, row.LinkID, row.Catchment); err != nil {
				return report, err
			}
			mr.Matched++
		}
		for _, u := range res.Unmatched {
			if err := a.schedule.SetStopInaccessible(u.PointID, mode); err != nil {
				return report, err
			}
			mr.Unmatched = append(mr.Unmatched, u.PointID)
		}
		report[mode] = mr
		a.logger.Info("assigned access links",
			zap.String("mode", mode), zap.Int("matched", mr.Matched), zap.Int("unmatched", len(mr.Unmatched)))
	}
	return report, nil
}

func (a *Assigner) points(mode string, servedOnly bool) []spatial.Point {
	t := a.net.Transformer()
	toPoint := func(st *schedule.Stop) spatial.Point {
		c := t.ToWGS84(st.X, st.Y)
		return spatial.Point{ID: st.ID, Lat: c.Lat, Lon: c.Lon}
	}

	var points []spatial.Point
	if servedOnly {
		for _, id := range a.schedule.StopsForMode(mode) {
			st, err := a.schedule.Stop(id)
			if err != nil {
				continue
			}
			points = append(points, toPoint(&st))
		}
		return points
	}
	for _, st := range a.schedule.Stops() {
		points = append(points, toPoint(st))
	}
	return points
}
