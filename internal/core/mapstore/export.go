package mapstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/validation"
)

// MarshalProto encodes the document as a google.protobuf.Struct.
func (s *Store) MarshalProto() ([]byte, error) {
	raw, err := validation.Normalize(s.doc)
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document is not an object")
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return proto.Marshal(st)
}

// FromProto builds a Store from a google.protobuf.Struct encoding.
func FromProto(v *validation.Validator, data []byte) (*Store, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal protobuf: %w: %w", domain.ErrFormat, err)
	}
	return FromValue(v, st.AsMap())
}

// GeoJSON returns the points as a FeatureCollection of Point features.
// Map metadata is carried as foreign members of the collection.
func (s *Store) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"name":   s.doc.Name,
		"center": map[string]any{"lat": s.doc.Center.Lat, "lng": s.doc.Center.Lng},
	}
	if s.doc.ID != "" {
		fc.ExtraMembers["id"] = s.doc.ID
	}
	if s.doc.Zoom != nil {
		fc.ExtraMembers["zoom"] = []int{s.doc.Zoom[0], s.doc.Zoom[1], s.doc.Zoom[2]}
	}

	var bound orb.Bound
	for i, p := range s.doc.Data {
		pt := orb.Point{p.Center.Lng, p.Center.Lat}
		if i == 0 {
			bound = pt.Bound()
		} else {
			bound = bound.Extend(pt)
		}

		f := geojson.NewFeature(pt)
		raw, err := validation.Normalize(p)
		if err == nil {
			if props, ok := raw.(map[string]any); ok {
				delete(props, "center")
				for k, v := range props {
					f.Properties[k] = v
				}
			}
		}
		fc.Append(f)
	}
	if len(s.doc.Data) > 0 {
		fc.BBox = geojson.NewBBox(bound)
	}
	return fc
}

// FromGeoJSON builds a Store from a FeatureCollection of Point features.
// Feature properties become point fields. The map name and center come from
// the collection's foreign members when present, otherwise from name and the
// center of the features' bounding box.
func FromGeoJSON(v *validation.Validator, data []byte, name string) (*Store, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w: %w", domain.ErrFormat, err)
	}

	doc := map[string]any{}
	for k, val := range fc.ExtraMembers {
		doc[k] = val
	}
	if _, ok := doc["name"]; !ok {
		doc["name"] = name
	}

	points := make([]any, 0, len(fc.Features))
	var bound orb.Bound
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d has no geometry: %w", i, domain.ErrFormat)
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry %s is not a Point: %w", i, f.Geometry.GeoJSONType(), domain.ErrFormat)
		}
		if i == 0 {
			bound = pt.Bound()
		} else {
			bound = bound.Extend(pt)
		}

		p := make(map[string]any, len(f.Properties)+1)
		for k, val := range f.Properties {
			p[k] = val
		}
		p["center"] = map[string]any{"lat": pt.Lat(), "lng": pt.Lon()}
		points = append(points, p)
	}
	doc["data"] = points

	if _, ok := doc["center"]; !ok {
		c := bound.Center()
		doc["center"] = map[string]any{"lat": c.Lat(), "lng": c.Lon()}
	}

	return FromValue(v, doc)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
