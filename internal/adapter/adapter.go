package adapter

import (
	"context"
	"net/http"

	"github.com/astrosearch/api/internal/model"
)

// Source names as exposed in result maps and analytics.
const (
	SourceSimbad = "SIMBAD"
	SourceVizier = "VizieR"
	SourceNed    = "NED"
	SourceSdss   = "SDSS"
	SourceGaia   = "GAIA ARCHIVE"
	SourceIrsa   = "IRSA"
	SourceAds    = "NASA ADS"
)

// Params carries the normalized query inputs every adapter is offered.
// Each adapter decides from these whether it can run at all.
type Params struct {
	ObjectName string
	RA         *float64
	Dec        *float64
	Bibcode    string
	Radius     float64
	Wavelength *float64
	Options    map[string]string
}

func (p Params) HasObject() bool {
	return p.ObjectName != ""
}

func (p Params) HasCoords() bool {
	return p.RA != nil && p.Dec != nil
}

func (p Params) HasBibcode() bool {
	return p.Bibcode != ""
}

// ParamsFromRequest normalizes a job request into adapter inputs.
func ParamsFromRequest(req model.SearchRequest) Params {
	radius := req.Radius
	if radius <= 0 {
		radius = 0.1
	}
	return Params{
		ObjectName: req.Query,
		RA:         req.RA,
		Dec:        req.Dec,
		Bibcode:    req.Bibcode,
		Radius:     radius,
		Wavelength: req.Wavelength,
	}
}

// Adapter is one external data source. Accepts reports whether the given
// inputs satisfy the source's precondition; Query runs the call and returns
// a tagged outcome. A returned error is a transport-level failure the caller
// converts into an error outcome for this source alone.
type Adapter interface {
	Name() string
	Accepts(p Params) bool
	Query(ctx context.Context, p Params) (model.SourceOutcome, error)
}

// Descriptor is the request produced by a URL-building adapter. The shared
// dispatcher executes it and parses the body according to Format.
type Descriptor struct {
	Method string
	URL    string
	Header http.Header
	Format string // "json", "csv" or "text"
}

// Builder is the fixed contract of a single-request source: a pure function
// from params to a request descriptor.
type Builder interface {
	Name() string
	Accepts(p Params) bool
	Build(p Params) (*Descriptor, error)
}

// httpAdapter turns a Builder into an Adapter by dispatching its descriptor.
type httpAdapter struct {
	builder    Builder
	dispatcher *Dispatcher
}

// FromBuilder wraps a descriptor-producing source with the shared dispatcher.
func FromBuilder(b Builder, d *Dispatcher) Adapter {
	return &httpAdapter{builder: b, dispatcher: d}
}

func (a *httpAdapter) Name() string { return a.builder.Name() }

func (a *httpAdapter) Accepts(p Params) bool { return a.builder.Accepts(p) }

func (a *httpAdapter) Query(ctx context.Context, p Params) (model.SourceOutcome, error) {
	desc, err := a.builder.Build(p)
	if err != nil {
		return model.SourceOutcome{}, err
	}
	return a.dispatcher.Do(ctx, desc)
}

// Registry maps source names to typed adapters.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	if _, ok := r.adapters[a.Name()]; !ok {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered source names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
