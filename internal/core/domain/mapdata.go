package domain

import "time"

// Zoom levels are stored as [default, min, max].
type Zoom [3]int

func (z Zoom) Default() int { return z[0] }
func (z Zoom) Min() int     { return z[1] }
func (z Zoom) Max() int     { return z[2] }

// FilterConfig declares which tag categories a map consumer should include or exclude.
// The store only checks its shape.
type FilterConfig struct {
	Inclusive map[string][]string `json:"inclusive,omitempty"`
	Exclusive map[string][]string `json:"exclusive,omitempty"`
}

// DataPoint is a single point of interest.
type DataPoint struct {
	Name    string     `json:"name"`
	Address string     `json:"address"`
	Intro   string     `json:"intro"`
	Center  Coordinate `json:"center"`
	Tags    []string   `json:"tags,omitempty"`
	Phone   string     `json:"phone,omitempty"`
	WebName string     `json:"webName,omitempty"`
	WebLink string     `json:"webLink,omitempty"`

	// Extra holds any additional keys the point was created with.
	Extra map[string]any `json:"-"`
}

// MapData is the root map document.
type MapData struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Origin      string        `json:"origin,omitempty"`
	Center      Coordinate    `json:"center"`
	Zoom        *Zoom         `json:"zoom,omitempty"`
	Filter      *FilterConfig `json:"filter,omitempty"`
	Data        []DataPoint   `json:"data"`
}

// MapInfo is the metadata of a map without its points.
type MapInfo struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Origin      string        `json:"origin,omitempty"`
	Center      Coordinate    `json:"center"`
	Zoom        *Zoom         `json:"zoom,omitempty"`
	Filter      *FilterConfig `json:"filter,omitempty"`
}

// MapSummary is a listing entry for a persisted map.
type MapSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Statistics summarises the points of a map.
type Statistics struct {
	TotalPoints int            `json:"totalPoints"`
	Tags        map[string]int `json:"tags"`
	Coordinates Extents        `json:"coordinates"`
}

// Criteria maps a point field name to the value it should match.
type Criteria map[string]any

// Patch is a partial document or point applied as a shallow field overwrite.
type Patch map[string]any

// EmptyDocument returns a map with no points.
func EmptyDocument(name string, center Coordinate) MapData {
	return MapData{Name: name, Center: center, Data: []DataPoint{}}
}

// Info returns the metadata part of the document.
func (m MapData) Info() MapInfo {
	c := m.Clone()
	return MapInfo{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Origin:      c.Origin,
		Center:      c.Center,
		Zoom:        c.Zoom,
		Filter:      c.Filter,
	}
}

// Clone returns a deep copy of the point.
func (p DataPoint) Clone() DataPoint {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = cloneValue(v)
		}
	}
	return out
}

// HasTag reports whether the point carries tag.
func (p DataPoint) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the document.
func (m MapData) Clone() MapData {
	out := m
	if m.Zoom != nil {
		z := *m.Zoom
		out.Zoom = &z
	}
	if m.Filter != nil {
		out.Filter = &FilterConfig{
			Inclusive: cloneTagSets(m.Filter.Inclusive),
			Exclusive: cloneTagSets(m.Filter.Exclusive),
		}
	}
	if m.Data != nil {
		out.Data = make([]DataPoint, len(m.Data))
		for i, p := range m.Data {
			out.Data[i] = p.Clone()
		}
	}
	return out
}

func cloneTagSets(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = append(make([]string, 0, len(v)), v...)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
