package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/arup-group/genet-sub002/pkg/changelog"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/server/rest/service"
	"github.com/arup-group/genet-sub002/pkg/spatial"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

type NetworkService interface {
	Node(ctx context.Context, id string) (graph.Attrs, error)
	AddNode(ctx context.Context, id string, attrs graph.Attrs) error
	Link(ctx context.Context, id string) (service.LinkView, error)
	AddLink(ctx context.Context, id, from, to string, attrs graph.Attrs, geometry string) (string, error)
	Catchment(ctx context.Context, points []spatial.Point, cfg spatial.SearchConfig) (spatial.CatchmentResult, error)
	PathLengths(ctx context.Context, reqs []spatial.PathRequest, weight string, withPath bool) []spatial.PathResult
	ChangeLog(ctx context.Context, flush bool) []changelog.Entry
	Snapshot(ctx context.Context) (service.SnapshotInfo, error)
	NearestLinks(ctx context.Context, lat, lon float64) ([]service.LinkView, error)
}

type NetworkHandler struct {
	svc NetworkService
	m   *Metrics
	// catchment fills the search settings a catchment request leaves out.
	catchment spatial.SearchConfig
}

func NetworkRouter(r *chi.Mux, svc NetworkService, m *Metrics, catchmentDefaults spatial.SearchConfig) {
	handler := &NetworkHandler{svc: svc, m: m, catchment: catchmentDefaults}

	r.Group(func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Post("/nodes", handler.AddNode)
			r.Get("/nodes/{id}", handler.GetNode)

			r.Post("/links", handler.AddLink)
			r.Get("/links/nearest", handler.NearestLinks)
			r.Get("/links/{id}", handler.GetLink)

			r.Post("/catchment", handler.Catchment)
			r.Post("/path-lengths", handler.PathLengths)

			r.Get("/changelog", handler.ChangeLog)
			r.Post("/snapshot", handler.Snapshot)
		})
	})
}

// validateRequest runs the struct validation and renders the translated errors when it fails.
func validateRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	validate := validator.New()
	if err := validate.Struct(data); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		render.Render(w, r, ErrValidation(err, vv))
		return false
	}
	return true
}

// AddNodeRequest model info
//
//	@Description	request body for inserting or updating a node, coordinates in the network crs
type AddNodeRequest struct {
	ID         string         `json:"id" validate:"required"`
	X          *float64       `json:"x" validate:"required"`
	Y          *float64       `json:"y" validate:"required"`
	Attributes map[string]any `json:"attributes"`
}

func (s *AddNodeRequest) Bind(r *http.Request) error {
	return nil
}

type NodeResponse struct {
	ID         string      `json:"id"`
	Attributes graph.Attrs `json:"attributes"`
}

func (h *NetworkHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	data := &AddNodeRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	attrs := graph.Attrs(data.Attributes).Clone()
	attrs[network.AttrX] = *data.X
	attrs[network.AttrY] = *data.Y
	if err := h.svc.AddNode(r.Context(), data.ID, attrs); err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}

	node, err := h.svc.Node(r.Context(), data.ID)
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, NodeResponse{ID: data.ID, Attributes: node})
}

func (h *NetworkHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, err := h.svc.Node(r.Context(), id)
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NodeResponse{ID: id, Attributes: node})
}

// AddLinkRequest model info
//
//	@Description	request body for inserting a link. An empty or taken id gets a generated one.
type AddLinkRequest struct {
	ID         string         `json:"id"`
	From       string         `json:"from" validate:"required"`
	To         string         `json:"to" validate:"required"`
	Attributes map[string]any `json:"attributes"`
	// Geometry is an encoded polyline in WGS84.
	Geometry string `json:"geometry"`
}

func (s *AddLinkRequest) Bind(r *http.Request) error {
	for k := range s.Attributes {
		if k == network.AttrID || k == network.AttrFrom || k == network.AttrTo {
			return errors.New("attributes must not set id, from or to")
		}
	}
	return nil
}

type AddLinkResponse struct {
	ID          string           `json:"id"`
	RequestedID string           `json:"requested_id,omitempty"`
	Link        service.LinkView `json:"link"`
}

func (h *NetworkHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	data := &AddLinkRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	linkID, err := h.svc.AddLink(r.Context(), data.ID, data.From, data.To, data.Attributes, data.Geometry)
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}
	link, err := h.svc.Link(r.Context(), linkID)
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, AddLinkResponse{ID: linkID, RequestedID: data.ID, Link: link})
}

func (h *NetworkHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.Link(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, link)
}

type NearestLinksResponse struct {
	Links []service.LinkView `json:"links"`
}

func (h *NetworkHandler) NearestLinks(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err := errors.Join(errLat, errLon); err != nil {
		render.Render(w, r, ErrInvalidRequest(errors.New("lat and lon query parameters must be numbers")))
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		render.Render(w, r, ErrInvalidRequest(errors.New("lat or lon out of range")))
		return
	}

	links, err := h.svc.NearestLinks(r.Context(), lat, lon)
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NearestLinksResponse{Links: links})
}

// CatchmentPoint model info
//
//	@Description	a point to snap, WGS84
type CatchmentPoint struct {
	ID  string  `json:"id" validate:"required"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// CatchmentRequest model info
//
//	@Description	request body for the expanding radius nearest link search, distances in metres.
//	@Description	step_size, distance_threshold and modes fall back to the server catchment settings when omitted.
type CatchmentRequest struct {
	Points            []CatchmentPoint `json:"points" validate:"required,min=1,dive"`
	StepSize          float64          `json:"step_size" validate:"gte=0"`
	InitialDistance   float64          `json:"initial_distance" validate:"gte=0"`
	DistanceThreshold *float64         `json:"distance_threshold" validate:"omitempty,gt=0"`
	Modes             []string         `json:"modes" validate:"omitempty,dive,required"`
	// Closest adds one link per point, the smallest link id among the closest ones.
	Closest bool `json:"closest"`
}

func (s *CatchmentRequest) Bind(r *http.Request) error {
	seen := make(map[string]struct{}, len(s.Points))
	for _, p := range s.Points {
		if _, ok := seen[p.ID]; ok {
			return errors.New("duplicate point id " + p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

type CatchmentResponse struct {
	Rows      []spatial.CatchmentRow          `json:"rows"`
	Unmatched []spatial.Unmatched             `json:"unmatched"`
	Closest   map[string]spatial.CatchmentRow `json:"closest,omitempty"`
}

func (h *NetworkHandler) Catchment(w http.ResponseWriter, r *http.Request) {
	data := &CatchmentRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	cfg := h.searchConfig(data)
	if cfg.StepSize <= 0 {
		render.Render(w, r, ErrInvalidRequest(errors.New("step_size is required, no default catchment step is configured")))
		return
	}

	points := make([]spatial.Point, 0, len(data.Points))
	for _, p := range data.Points {
		points = append(points, spatial.Point{ID: p.ID, Lat: p.Lat, Lon: p.Lon})
	}
	res, err := h.svc.Catchment(r.Context(), points, cfg)
	if err != nil {
		h.m.observeCatchment("error", 0)
		render.Render(w, r, serviceErrRend(err))
		return
	}
	if len(res.Unmatched) > 0 {
		h.m.observeCatchment("partial", len(res.Unmatched))
	} else {
		h.m.observeCatchment("matched", 0)
	}

	resp := CatchmentResponse{Rows: res.Rows, Unmatched: res.Unmatched}
	if resp.Rows == nil {
		resp.Rows = []spatial.CatchmentRow{}
	}
	if resp.Unmatched == nil {
		resp.Unmatched = []spatial.Unmatched{}
	}
	if data.Closest {
		resp.Closest = spatial.ClosestLinkPerPoint(res)
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// searchConfig merges the request with the server defaults. The initial distance
// is only taken from the defaults together with their step size.
func (h *NetworkHandler) searchConfig(data *CatchmentRequest) spatial.SearchConfig {
	cfg := spatial.SearchConfig{
		InitialDistance:   data.InitialDistance,
		StepSize:          data.StepSize,
		DistanceThreshold: data.DistanceThreshold,
		Modes:             data.Modes,
	}
	if cfg.StepSize == 0 {
		cfg.StepSize = h.catchment.StepSize
		if cfg.InitialDistance == 0 {
			cfg.InitialDistance = h.catchment.InitialDistance
		}
	}
	if cfg.DistanceThreshold == nil && h.catchment.DistanceThreshold != nil {
		threshold := *h.catchment.DistanceThreshold
		cfg.DistanceThreshold = &threshold
	}
	if len(cfg.Modes) == 0 && len(h.catchment.Modes) > 0 {
		cfg.Modes = append([]string(nil), h.catchment.Modes...)
	}
	return cfg
}

type PathPair struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// PathLengthsRequest model info
//
//	@Description	batch of link to link path queries over the spatial tree
type PathLengthsRequest struct {
	Pairs []PathPair `json:"pairs" validate:"required,min=1,dive"`
	// Weight is the tree edge attribute to minimise, length when empty.
	Weight   string `json:"weight" validate:"omitempty,oneof=length freespeed time"`
	WithPath bool   `json:"with_path"`
}

func (s *PathLengthsRequest) Bind(r *http.Request) error {
	return nil
}

type PathLengthsResponse struct {
	Results []spatial.PathResult `json:"results"`
}

func (h *NetworkHandler) PathLengths(w http.ResponseWriter, r *http.Request) {
	data := &PathLengthsRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !validateRequest(w, r, *data) {
		return
	}

	reqs := make([]spatial.PathRequest, 0, len(data.Pairs))
	for _, p := range data.Pairs {
		reqs = append(reqs, spatial.PathRequest{From: p.From, To: p.To})
	}
	results := h.svc.PathLengths(r.Context(), reqs, data.Weight, data.WithPath)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PathLengthsResponse{Results: results})
}

type ChangeLogResponse struct {
	Entries []changelog.Entry `json:"entries"`
}

func (h *NetworkHandler) ChangeLog(w http.ResponseWriter, r *http.Request) {
	flush := false
	if v := r.URL.Query().Get("flush"); v != "" {
		var err error
		flush, err = strconv.ParseBool(v)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(errors.New("flush must be a boolean")))
			return
		}
	}

	entries := h.svc.ChangeLog(r.Context(), flush)
	if entries == nil {
		entries = []changelog.Entry{}
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, ChangeLogResponse{Entries: entries})
}

func (h *NetworkHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Snapshot(r.Context())
	if err != nil {
		render.Render(w, r, serviceErrRend(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, info)
}
