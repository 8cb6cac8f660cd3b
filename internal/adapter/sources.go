package adapter

import (
	"fmt"
	"net/http"
	"net/url"
)

// The builders below are thin, pure translations from normalized params to a
// request descriptor. Query construction details belong to the upstream
// services; only the input preconditions matter to the orchestrator.

// SimbadBuilder queries the SIMBAD TAP service.
type SimbadBuilder struct {
	BaseURL string
}

func (b *SimbadBuilder) Name() string { return SourceSimbad }

func (b *SimbadBuilder) Accepts(p Params) bool {
	return p.HasObject() || p.HasCoords() || p.HasBibcode()
}

func (b *SimbadBuilder) Build(p Params) (*Descriptor, error) {
	var adql string
	switch {
	case p.HasBibcode():
		adql = fmt.Sprintf("SELECT main_id, ra, dec, otype FROM basic JOIN has_ref ON oid = oidref JOIN ref ON oidbibref = oidbib WHERE bibcode = '%s'", p.Bibcode)
	case p.HasObject():
		adql = fmt.Sprintf("SELECT main_id, ra, dec, otype FROM basic JOIN ident ON oid = oidref WHERE id = '%s'", p.ObjectName)
	default:
		adql = fmt.Sprintf("SELECT main_id, ra, dec, otype FROM basic WHERE CONTAINS(POINT('ICRS', ra, dec), CIRCLE('ICRS', %f, %f, %f)) = 1", *p.RA, *p.Dec, p.Radius)
	}

	q := url.Values{}
	q.Set("request", "doQuery")
	q.Set("lang", "adql")
	q.Set("format", "json")
	q.Set("query", adql)

	return &Descriptor{
		Method: http.MethodGet,
		URL:    b.BaseURL + "/sync?" + q.Encode(),
		Format: "json",
	}, nil
}

// VizierBuilder queries the VizieR catalog service.
type VizierBuilder struct {
	BaseURL string
}

func (b *VizierBuilder) Name() string { return SourceVizier }

func (b *VizierBuilder) Accepts(p Params) bool {
	return p.HasObject() || p.HasCoords()
}

func (b *VizierBuilder) Build(p Params) (*Descriptor, error) {
	q := url.Values{}
	if p.HasObject() {
		q.Set("-c", p.ObjectName)
	} else {
		q.Set("-c", fmt.Sprintf("%f %f", *p.RA, *p.Dec))
	}
	q.Set("-c.r", fmt.Sprintf("%f", p.Radius))
	q.Set("-c.u", "deg")
	q.Set("-out.max", "50")
	if p.Wavelength != nil {
		q.Set("-wave", fmt.Sprintf("%.1fnm", *p.Wavelength))
	}

	return &Descriptor{
		Method: http.MethodGet,
		URL:    b.BaseURL + "/votable?" + q.Encode(),
		Format: "text",
	}, nil
}

// NedBuilder queries the NASA/IPAC Extragalactic Database.
type NedBuilder struct {
	BaseURL string
}

func (b *NedBuilder) Name() string { return SourceNed }

func (b *NedBuilder) Accepts(p Params) bool {
	return p.HasObject() || p.HasCoords()
}

func (b *NedBuilder) Build(p Params) (*Descriptor, error) {
	q := url.Values{}
	if p.HasObject() {
		q.Set("objname", p.ObjectName)
	} else {
		q.Set("lon", fmt.Sprintf("%fd", *p.RA))
		q.Set("lat", fmt.Sprintf("%fd", *p.Dec))
		q.Set("radius", fmt.Sprintf("%f", p.Radius*60))
		q.Set("search_type", "Near Position Search")
	}
	q.Set("of", "json")

	return &Descriptor{
		Method: http.MethodGet,
		URL:    b.BaseURL + "?" + q.Encode(),
		Format: "json",
	}, nil
}

// SdssBuilder queries the SDSS SkyServer. SDSS is coordinate-only.
type SdssBuilder struct {
	BaseURL string
}

func (b *SdssBuilder) Name() string { return SourceSdss }

func (b *SdssBuilder) Accepts(p Params) bool {
	return p.HasCoords()
}

func (b *SdssBuilder) Build(p Params) (*Descriptor, error) {
	q := url.Values{}
	q.Set("ra", fmt.Sprintf("%f", *p.RA))
	q.Set("dec", fmt.Sprintf("%f", *p.Dec))
	// SkyServer radial search takes arcminutes
	q.Set("radius", fmt.Sprintf("%f", p.Radius*60))
	q.Set("format", "json")

	return &Descriptor{
		Method: http.MethodGet,
		URL:    b.BaseURL + "/SearchTools/RadialSearch?" + q.Encode(),
		Format: "json",
	}, nil
}

// GaiaBuilder queries the ESA Gaia archive TAP service.
type GaiaBuilder struct {
	BaseURL string
}

func (b *GaiaBuilder) Name() string { return SourceGaia }

func (b *GaiaBuilder) Accepts(p Params) bool {
	return p.HasObject() || p.HasCoords()
}

func (b *GaiaBuilder) Build(p Params) (*Descriptor, error) {
	release := p.Options["gaia_release"]
	if release == "" {
		release = "gaiadr3"
	}

	var adql string
	if p.HasCoords() {
		adql = fmt.Sprintf("SELECT TOP 50 source_id, ra, dec, phot_g_mean_mag FROM %s.gaia_source WHERE CONTAINS(POINT('ICRS', ra, dec), CIRCLE('ICRS', %f, %f, %f)) = 1", release, *p.RA, *p.Dec, p.Radius)
	} else {
		adql = fmt.Sprintf("SELECT TOP 50 source_id, ra, dec, phot_g_mean_mag FROM %s.gaia_source WHERE designation = '%s'", release, p.ObjectName)
	}

	q := url.Values{}
	q.Set("REQUEST", "doQuery")
	q.Set("LANG", "ADQL")
	q.Set("FORMAT", "json")
	q.Set("QUERY", adql)

	return &Descriptor{
		Method: http.MethodGet,
		URL:    b.BaseURL + "/sync?" + q.Encode(),
		Format: "json",
	}, nil
}

// AdsBuilder queries the NASA ADS literature service with a bearer token.
type AdsBuilder struct {
	BaseURL string
	Token   string
}

func (b *AdsBuilder) Name() string { return SourceAds }

func (b *AdsBuilder) Accepts(p Params) bool {
	return p.HasObject() || p.HasBibcode()
}

func (b *AdsBuilder) Build(p Params) (*Descriptor, error) {
	q := url.Values{}
	if p.HasBibcode() {
		q.Set("q", fmt.Sprintf("bibcode:%s", p.Bibcode))
	} else {
		q.Set("q", fmt.Sprintf("object:%q", p.ObjectName))
	}
	q.Set("fl", "title,bibcode,author,year,abstract")
	q.Set("rows", "5")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+b.Token)

	return &Descriptor{
		Method: http.MethodGet,
		URL:    b.BaseURL + "/search/query?" + q.Encode(),
		Header: header,
		Format: "json",
	}, nil
}
