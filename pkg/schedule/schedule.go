// Package schedule is the in-memory public transit schedule: services made of routes that
// call at stops. Parsing it from files is done elsewhere.
package schedule

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/arup-group/genet-sub002/pkg/changelog"
)

var (
	ErrStopNotFound    = errors.New("stop not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrDuplicateID     = errors.New("id already exists")
	ErrUnknownStop     = errors.New("route references unknown stop")
)

type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// Lat, Lon are the WGS84 position of X, Y when the source provides it.
	Lat        float64        `json:"lat"`
	Lon        float64        `json:"lon"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type Route struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Mode       string         `json:"mode"`
	StopIDs    []string       `json:"stops"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type Service struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Routes []*Route `json:"routes"`
}

type Schedule struct {
	services     map[string]*Service
	serviceOrder []string
	stops        map[string]*Stop
	stopOrder    []string
	routeIDs     map[string]struct{}
	changes      *changelog.ChangeLog
}

func New() *Schedule {
	return NewWithChangeLog(changelog.New())
}

func NewWithChangeLog(log *changelog.ChangeLog) *Schedule {
	return &Schedule{
		services: make(map[string]*Service),
		stops:    make(map[string]*Stop),
		routeIDs: make(map[string]struct{}),
		changes:  log,
	}
}

func (s *Schedule) ChangeLog() *changelog.ChangeLog {
	return s.changes
}

// AddStop inserts a stop, or replaces the position and merges the attributes of an existing one.
func (s *Schedule) AddStop(stop Stop) {
	change := changelog.Add
	if existing, ok := s.stops[stop.ID]; ok {
		change = changelog.Modify
		attrs := existing.Attributes
		if attrs == nil {
			attrs = make(map[string]any)
		}
		maps.Copy(attrs, stop.Attributes)
		*existing = stop
		existing.Attributes = attrs
	} else {
		stored := stop
		stored.Attributes = maps.Clone(stop.Attributes)
		if stored.Attributes == nil {
			stored.Attributes = make(map[string]any)
		}
		s.stops[stop.ID] = &stored
		s.stopOrder = append(s.stopOrder, stop.ID)
	}
	s.changes.Append(change, changelog.Stop, stop.ID, stop.Attributes)
}

// AddService adds a service. Every stop its routes call at must already be in the schedule
// and route ids must be unique across services.
func (s *Schedule) AddService(service Service) error {
	if _, ok := s.services[service.ID]; ok {
		return fmt.Errorf("%w: service %s", ErrDuplicateID, service.ID)
	}
	seen := make(map[string]struct{})
	for _, r := range service.Routes {
		if _, ok := s.routeIDs[r.ID]; ok {
			return fmt.Errorf("%w: route %s", ErrDuplicateID, r.ID)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: route %s", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
		for _, stopID := range r.StopIDs {
			if _, ok := s.stops[stopID]; !ok {
				return fmt.Errorf("%w: route %s stop %s", ErrUnknownStop, r.ID, stopID)
			}
		}
	}

	stored := &Service{ID: service.ID, Name: service.Name}
	for _, r := range service.Routes {
		route := *r
		route.StopIDs = slices.Clone(r.StopIDs)
		route.Attributes = maps.Clone(r.Attributes)
		stored.Routes = append(stored.Routes, &route)
		s.routeIDs[r.ID] = struct{}{}
	}
	s.services[service.ID] = stored
	s.serviceOrder = append(s.serviceOrder, service.ID)
	return nil
}

// Stop returns a copy of the stop.
func (s *Schedule) Stop(id string) (Stop, error) {
	stop, ok := s.stops[id]
	if !ok {
		return Stop{}, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	out := *stop
	out.Attributes = maps.Clone(stop.Attributes)
	return out, nil
}

func (s *Schedule) Service(id string) (*Service, error) {
	service, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	return service, nil
}

func (s *Schedule) NumberOfStops() int {
	return len(s.stops)
}

// Stops yields stops in insertion order. Stops are live and must not be mutated.
func (s *Schedule) Stops() iter.Seq2[string, *Stop] {
	return func(yield func(string, *Stop) bool) {
		for _, id := range s.stopOrder {
			if !yield(id, s.stops[id]) {
				return
			}
		}
	}
}

func (s *Schedule) Services() iter.Seq[*Service] {
	return func(yield func(*Service) bool) {
		for _, id := range s.serviceOrder {
			if !yield(s.services[id]) {
				return
			}
		}
	}
}

func (s *Schedule) Routes() iter.Seq[*Route] {
	return func(yield func(*Route) bool) {
		for service := range s.Services() {
			for _, r := range service.Routes {
				if !yield(r) {
					return
				}
			}
		}
	}
}

func (s *Schedule) StopIDs() []string {
	return slices.Sorted(maps.Keys(s.stops))
}

func (s *Schedule) ServiceIDs() []string {
	return slices.Sorted(maps.Keys(s.services))
}

func (s *Schedule) RouteIDs() []string {
	return slices.Sorted(maps.Keys(s.routeIDs))
}

// Modes returns the distinct route modes, sorted.
func (s *Schedule) Modes() []string {
	set := make(map[string]struct{})
	for r := range s.Routes() {
		set[r.Mode] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// StopsForMode returns the ids of stops called at by routes of mode, sorted.
func (s *Schedule) StopsForMode(mode string) []string {
	set := make(map[string]struct{})
	for r := range s.Routes() {
		if r.Mode != mode {
			continue
		}
		for _, id := range r.StopIDs {
			set[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// ApplyAttributesToStop merges attrs into a stop.
func (s *Schedule) ApplyAttributesToStop(id string, attrs map[string]any) error {
	stop, ok := s.stops[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	maps.Copy(stop.Attributes, attrs)
	s.changes.Append(changelog.Modify, changelog.Stop, id, attrs)
	return nil
}
