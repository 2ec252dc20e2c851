package mapstore

import (
	"reflect"
	"sort"
	"strings"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/validation"
)

// FindByName returns the points whose name contains sub, ignoring case.
func (s *Store) FindByName(sub string) []domain.DataPoint {
	needle := strings.ToLower(sub)
	out := []domain.DataPoint{}
	for _, p := range s.doc.Data {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Filter returns the points matching every criterion.
//
// "tags" matches a point sharing at least one tag with the given list.
// "name" and "address" match a case-insensitive substring. Any other key is
// compared with the point field of the same name, including extra fields:
// strings by case-insensitive substring, other values by equality. A point
// without the field does not match. Empty tag lists and empty name or address
// strings are ignored.
func (s *Store) Filter(criteria domain.Criteria) []domain.DataPoint {
	matchers := make([]func(domain.DataPoint) bool, 0, len(criteria))
	for key, want := range criteria {
		if m := matcherFor(key, want); m != nil {
			matchers = append(matchers, m)
		}
	}

	out := []domain.DataPoint{}
	for _, p := range s.doc.Data {
		ok := true
		for _, m := range matchers {
			if !m(p) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

func matcherFor(key string, want any) func(domain.DataPoint) bool {
	switch key {
	case "tags":
		tags := tagSet(want)
		if len(tags) == 0 {
			return nil
		}
		return func(p domain.DataPoint) bool {
			for _, t := range p.Tags {
				if _, ok := tags[t]; ok {
					return true
				}
			}
			return false
		}
	case "name", "address":
		if want == nil {
			return nil
		}
		if str, ok := want.(string); ok {
			if str == "" {
				return nil
			}
			needle := strings.ToLower(str)
			return func(p domain.DataPoint) bool {
				field := p.Name
				if key == "address" {
					field = p.Address
				}
				return strings.Contains(strings.ToLower(field), needle)
			}
		}
	}

	normWant, err := validation.Normalize(want)
	if err != nil {
		return func(domain.DataPoint) bool { return false }
	}
	return func(p domain.DataPoint) bool {
		got, ok := pointField(p, key)
		if !ok {
			return false
		}
		gs, gok := got.(string)
		ws, wok := normWant.(string)
		if gok && wok {
			return strings.Contains(strings.ToLower(gs), strings.ToLower(ws))
		}
		return reflect.DeepEqual(got, normWant)
	}
}

func tagSet(v any) map[string]struct{} {
	out := make(map[string]struct{})
	switch t := v.(type) {
	case string:
		if t != "" {
			out[t] = struct{}{}
		}
	case []string:
		for _, s := range t {
			out[s] = struct{}{}
		}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

// pointField returns the JSON form of a point field, or false if the point
// does not carry it.
func pointField(p domain.DataPoint, key string) (any, bool) {
	raw, err := validation.Normalize(p)
	if err != nil {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// TagStatistics counts tag occurrences across all points.
func (s *Store) TagStatistics() map[string]int {
	out := make(map[string]int)
	for _, p := range s.doc.Data {
		for _, t := range p.Tags {
			out[t]++
		}
	}
	return out
}

// Statistics returns the point count, tag counts and coordinate extents.
// An empty map reports zero extents.
func (s *Store) Statistics() domain.Statistics {
	stats := domain.Statistics{
		TotalPoints: len(s.doc.Data),
		Tags:        s.TagStatistics(),
	}
	for i, p := range s.doc.Data {
		c := p.Center
		if i == 0 {
			stats.Coordinates = domain.Extents{
				Northernmost: c.Lat,
				Southernmost: c.Lat,
				Easternmost:  c.Lng,
				Westernmost:  c.Lng,
			}
			continue
		}
		ext := &stats.Coordinates
		if c.Lat > ext.Northernmost {
			ext.Northernmost = c.Lat
		}
		if c.Lat < ext.Southernmost {
			ext.Southernmost = c.Lat
		}
		if c.Lng > ext.Easternmost {
			ext.Easternmost = c.Lng
		}
		if c.Lng < ext.Westernmost {
			ext.Westernmost = c.Lng
		}
	}
	return stats
}

// FindNearby returns the points within radiusKm of center, in storage order.
func (s *Store) FindNearby(center domain.Coordinate, radiusKm float64) []domain.DataPoint {
	out := []domain.DataPoint{}
	for _, p := range s.doc.Data {
		if domain.DistanceKm(center, p.Center) <= radiusKm {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Nearest returns points ordered by distance from center, closest first.
// Ties keep storage order. A limit of zero or less returns every point.
func (s *Store) Nearest(center domain.Coordinate, limit int) []domain.PointDistance {
	out := make([]domain.PointDistance, len(s.doc.Data))
	for i, p := range s.doc.Data {
		out[i] = domain.PointDistance{Index: i, Point: p.Clone(), DistanceKm: domain.DistanceKm(center, p.Center)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
