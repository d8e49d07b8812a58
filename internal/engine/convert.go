package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/geo"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

// Ref is one converted search result: a typed reference to the matched
// entity plus any projected values.
type Ref struct {
	TypeName string
	ID       string
	Score    float64
	// Distance from the spatial center in meters; nil unless a
	// distance sort or projection was requested.
	Distance *float64
	// Fields holds converted projected field values by field name.
	Fields map[string]any
	// Source is the raw document source when the source projection was
	// requested, nil otherwise.
	Source map[string]any
}

// hitConverter maps raw hits to typed refs using binding metadata
// resolved per hit from its index/type identifiers.
type hitConverter struct {
	registry          *mapping.Registry
	projections       []string
	center            *geo.Point
	spatialField      string
	distanceSortIndex int
}

func newHitConverter(registry *mapping.Registry, spec query.Spec) *hitConverter {
	return &hitConverter{
		registry:          registry,
		projections:       spec.Projections(),
		center:            spec.Center(),
		spatialField:      spec.SpatialField(),
		distanceSortIndex: spec.DistanceSortIndex(),
	}
}

// convert maps one hit. A hit whose index/type pair resolves to no
// binding converts to nil: stale index entries are expected, and the
// caller drops them silently.
func (c *hitConverter) convert(hit backend.Hit) (*Ref, error) {
	binding, ok := c.registry.ByHit(hit.Index, hit.Type)
	if !ok {
		return nil, nil
	}

	ref := &Ref{
		TypeName: binding.TypeName(),
		ID:       hit.ID,
		Score:    hit.Score,
	}

	if c.wantsDistance() {
		ref.Distance = c.distance(hit)
	}

	for _, name := range c.projections {
		switch name {
		case query.ProjectionID, query.ProjectionScore, query.ProjectionIndex, query.ProjectionDistance:
			// Hit metadata, available on the ref directly.
		case query.ProjectionSource:
			ref.Source = hit.Source
		default:
			field, ok := binding.Field(name)
			if !ok {
				// The plan validated projections; a miss here means
				// this hit's type simply lacks the field.
				continue
			}
			value, err := field.Convert(hit.Source[name])
			if err != nil {
				return nil, fmt.Errorf("convert projection %q of hit %s: %w", name, hit.ID, err)
			}
			if ref.Fields == nil {
				ref.Fields = make(map[string]any, len(c.projections))
			}
			ref.Fields[name] = value
		}
	}

	return ref, nil
}

func (c *hitConverter) wantsDistance() bool {
	if c.center == nil {
		return false
	}
	if c.distanceSortIndex >= 0 {
		return true
	}
	for _, p := range c.projections {
		if p == query.ProjectionDistance {
			return true
		}
	}
	return false
}

// distance prefers the backend-computed sort value at the distance
// clause's position, falling back to Haversine over the document's
// stored coordinates.
func (c *hitConverter) distance(hit backend.Hit) *float64 {
	if c.distanceSortIndex >= 0 && c.distanceSortIndex < len(hit.Sort) {
		if d, ok := numeric(hit.Sort[c.distanceSortIndex]); ok {
			return &d
		}
	}
	point, ok := parsePoint(hit.Source[c.spatialField])
	if !ok {
		return nil
	}
	d := geo.Haversine(*c.center, point)
	return &d
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parsePoint reads a coordinate from either a "lat,lon" string or a
// {"lat": ..., "lon": ...} object.
func parsePoint(v any) (geo.Point, bool) {
	switch coord := v.(type) {
	case string:
		parts := strings.SplitN(coord, ",", 2)
		if len(parts) != 2 {
			return geo.Point{}, false
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return geo.Point{}, false
		}
		return geo.Point{Lat: lat, Lon: lon}, true
	case map[string]any:
		lat, ok1 := numeric(coord["lat"])
		lon, ok2 := numeric(coord["lon"])
		if !ok1 || !ok2 {
			return geo.Point{}, false
		}
		return geo.Point{Lat: lat, Lon: lon}, true
	default:
		return geo.Point{}, false
	}
}
