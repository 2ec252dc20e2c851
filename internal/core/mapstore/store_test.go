package mapstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/mapstore"
	"github.com/samirrijal/metamap/internal/core/validation"
)

func newValidator(t *testing.T) *validation.Validator {
	t.Helper()
	schema, err := validation.DefaultSchema()
	if err != nil {
		t.Fatalf("default schema: %v", err)
	}
	return validation.NewValidator(schema, validation.DefaultRules())
}

func newStore(t *testing.T) *mapstore.Store {
	t.Helper()
	s, err := mapstore.New(newValidator(t), domain.EmptyDocument("City", domain.Coordinate{Lat: 10, Lng: 20}))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func cafe() domain.DataPoint {
	return domain.DataPoint{
		Name:    "Cafe",
		Address: "1 Main St",
		Intro:   "coffee",
		Center:  domain.Coordinate{Lat: 10.01, Lng: 20.0},
		Tags:    []string{"food", "wifi"},
	}
}

func seeded(t *testing.T) *mapstore.Store {
	t.Helper()
	s := newStore(t)
	points := []domain.DataPoint{
		cafe(),
		{Name: "Bakery", Address: "2 Side St", Intro: "bread", Center: domain.Coordinate{Lat: 10.5, Lng: 20.5}, Tags: []string{"food"}},
		{Name: "Library", Address: "3 Main St", Intro: "books", Center: domain.Coordinate{Lat: 9.5, Lng: 19.0}, Phone: "555-0100",
			Extra: map[string]any{"floors": 3.0, "open": true}},
	}
	for _, p := range points {
		if res := s.AddPoint(p); !res.Valid {
			t.Fatalf("add %s: %v", p.Name, res.Errors)
		}
	}
	return s
}

func TestNew_EmptyMapStatistics(t *testing.T) {
	s := newStore(t)

	got := s.Statistics()
	want := domain.Statistics{TotalPoints: 0, Tags: map[string]int{}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestNew_RejectsInvalidDocument(t *testing.T) {
	v := newValidator(t)

	doc := domain.EmptyDocument("", domain.Coordinate{Lat: 95, Lng: 0})
	_, err := mapstore.New(v, doc)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %v", verr.Result.Errors)
	}
}

func TestAddPoint_NearbyAndTags(t *testing.T) {
	s := newStore(t)

	res := s.AddPoint(cafe())
	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}

	near := s.FindNearby(domain.Coordinate{Lat: 10, Lng: 20}, 5)
	if len(near) != 1 || near[0].Name != "Cafe" {
		t.Fatalf("expected the cafe, got %+v", near)
	}

	if got := s.TagStatistics(); !reflect.DeepEqual(got, map[string]int{"food": 1, "wifi": 1}) {
		t.Errorf("unexpected tag statistics %v", got)
	}
}

func TestAddPoint_InvalidLeavesStoreUnchanged(t *testing.T) {
	s := seeded(t)
	before := s.Points()

	res := s.AddPoint(domain.DataPoint{Name: "No address", Center: domain.Coordinate{Lat: 1, Lng: 1}})
	if res.Valid || len(res.Errors) == 0 {
		t.Fatalf("expected invalid result, got %+v", res)
	}
	if !reflect.DeepEqual(before, s.Points()) {
		t.Error("store changed after a rejected add")
	}
}

func TestAddPoint_DuplicateNameFailsBackend(t *testing.T) {
	s := newStore(t)
	if res := s.AddPoint(cafe()); !res.Valid {
		t.Fatal(res.Errors)
	}

	dup := cafe()
	dup.Name = " Cafe "
	if res := s.AddPoint(dup); !res.Valid {
		t.Fatalf("point-level validation should accept the duplicate, got %v", res.Errors)
	}

	res := s.ValidateForBackend()
	if res.Valid {
		t.Fatal("expected backend validation to fail")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "duplicate names") {
		t.Errorf("expected a duplicate names error, got %v", res.Errors)
	}
}

func TestAddPoint_WebLink(t *testing.T) {
	s := newStore(t)

	p := cafe()
	p.WebLink = "not-a-url"
	res := s.AddPoint(p)
	if res.Valid || !strings.Contains(strings.Join(res.Errors, " "), "link") {
		t.Fatalf("expected a link format error, got %+v", res)
	}
	if s.Len() != 0 {
		t.Fatal("rejected point was stored")
	}

	p.WebLink = "https://example.com"
	if res := s.AddPoint(p); !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
}

func TestAddPointValue_KeepsExtraFields(t *testing.T) {
	s := newStore(t)

	res := s.AddPointValue(map[string]any{
		"name": "Pintxos", "address": "Plaza Nueva", "intro": "bar",
		"center": map[string]any{"lat": 10.0, "lng": 20.0},
		"rating": 4.5,
	})
	if !res.Valid {
		t.Fatal(res.Errors)
	}
	p, ok := s.Point(0)
	if !ok {
		t.Fatal("point not stored")
	}
	if p.Extra["rating"] != 4.5 {
		t.Errorf("expected rating extra field, got %v", p.Extra)
	}
}

func TestAddPointValue_FoldedKeyCannotOverrideField(t *testing.T) {
	s := newStore(t)

	res := s.AddPointValue(map[string]any{
		"name": "Pintxos", "address": "Plaza Nueva", "intro": "bar",
		"center":  map[string]any{"lat": 10.0, "lng": 20.0},
		"addreſs": "   ",
	})
	if res.Valid {
		t.Fatal("expected a folded address key to be rejected")
	}
	if len(res.Errors) != 1 || res.Errors[0] != "addreſs: conflicts with field address" {
		t.Errorf("unexpected errors %v", res.Errors)
	}
	if s.Len() != 0 {
		t.Fatal("rejected point was stored")
	}
}

func TestUpdatePoint_FoldedKeyPatch(t *testing.T) {
	s := seeded(t)

	res := s.UpdatePoint(0, domain.Patch{"NAME": "\t"})
	if res.Valid {
		t.Fatal("expected folded name patch to be rejected")
	}
	p, _ := s.Point(0)
	if p.Name != "Cafe" {
		t.Errorf("expected name unchanged, got %q", p.Name)
	}
}

func TestFromJSON_FoldedKeys(t *testing.T) {
	v := newValidator(t)

	docs := []string{
		`{"name":"City","center":{"lat":10,"lng":20},"data":[],"nAme":" "}`,
		`{"name":"City","center":{"lat":10,"lng":20,"LAT":91},"data":[]}`,
		`{"name":"City","center":{"lat":10,"lng":20},"data":[{"name":"A","address":"B","intro":"C","center":{"lat":1,"lng":2},"Address":""}]}`,
	}
	for _, doc := range docs {
		_, err := mapstore.FromJSON(v, []byte(doc))
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || !strings.Contains(verr.Error(), "conflicts with field") {
			t.Errorf("%s: expected folded key error, got %v", doc, err)
		}
	}
}

func TestAddPointValue_UnicodeBlankRejected(t *testing.T) {
	s := newStore(t)

	for _, blank := range []string{"\u3000", "\u00a0", "\v"} {
		res := s.AddPointValue(map[string]any{
			"name": "Pintxos", "address": blank, "intro": "bar",
			"center": map[string]any{"lat": 10.0, "lng": 20.0},
		})
		if res.Valid {
			t.Errorf("address %q: expected blank rejection", blank)
		}
	}
	if s.Len() != 0 {
		t.Fatal("blank point was stored")
	}
}

func TestUpdatePoint(t *testing.T) {
	s := seeded(t)

	res := s.UpdatePoint(1, domain.Patch{"intro": "fresh bread", "tags": []string{"food", "breakfast"}})
	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
	p, _ := s.Point(1)
	if p.Intro != "fresh bread" || p.Name != "Bakery" || !p.HasTag("breakfast") {
		t.Errorf("unexpected point after update: %+v", p)
	}
}

func TestUpdatePoint_InvalidPatchIsDiscarded(t *testing.T) {
	s := seeded(t)
	before := s.Export()

	res := s.UpdatePoint(0, domain.Patch{"name": "", "center": map[string]any{"lat": 120, "lng": 0}})
	if res.Valid || len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %+v", res)
	}
	if !reflect.DeepEqual(before, s.Export()) {
		t.Error("store changed after a rejected update")
	}
}

func TestUpdatePoint_IndexOutOfRange(t *testing.T) {
	s := seeded(t)
	before := s.Export()

	for _, idx := range []int{-1, 3, 100} {
		res := s.UpdatePoint(idx, domain.Patch{"name": "X"})
		if res.Valid {
			t.Fatalf("index %d: expected invalid", idx)
		}
		if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "index out of range") {
			t.Errorf("index %d: expected index out of range, got %v", idx, res.Errors)
		}
	}
	if !reflect.DeepEqual(before, s.Export()) {
		t.Error("store changed after out of range update")
	}
}

func TestUpdatePoint_NullClearsOptionalField(t *testing.T) {
	s := seeded(t)

	if res := s.UpdatePoint(2, domain.Patch{"phone": nil}); !res.Valid {
		t.Fatal(res.Errors)
	}
	p, _ := s.Point(2)
	if p.Phone != "" {
		t.Errorf("expected phone cleared, got %q", p.Phone)
	}
	if p.Extra["floors"] != 3.0 {
		t.Errorf("extra fields should survive an update, got %v", p.Extra)
	}
}

func TestRemovePoint(t *testing.T) {
	s := seeded(t)

	if s.RemovePoint(5) || s.RemovePoint(-1) {
		t.Fatal("expected false for out of range index")
	}
	if !s.RemovePoint(0) {
		t.Fatal("expected true for valid index")
	}
	names := []string{}
	for _, p := range s.Points() {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"Bakery", "Library"}) {
		t.Errorf("unexpected points after remove: %v", names)
	}
}

func TestPoint_OutOfRange(t *testing.T) {
	s := seeded(t)
	if _, ok := s.Point(3); ok {
		t.Error("expected miss for index 3")
	}
	if _, ok := s.Point(-1); ok {
		t.Error("expected miss for index -1")
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := seeded(t)

	pts := s.Points()
	pts[0].Name = "Changed"
	pts[0].Tags[0] = "changed"
	pts[2].Extra["floors"] = 99.0

	p, _ := s.Point(0)
	p.Tags = append(p.Tags, "more")

	doc := s.Export()
	doc.Data[1].Name = "Changed"

	got, _ := s.Point(0)
	if got.Name != "Cafe" || got.Tags[0] != "food" || len(got.Tags) != 2 {
		t.Errorf("store mutated through a returned copy: %+v", got)
	}
	lib, _ := s.Point(2)
	if lib.Extra["floors"] != 3.0 {
		t.Errorf("extra fields mutated through a returned copy: %v", lib.Extra)
	}
	bak, _ := s.Point(1)
	if bak.Name != "Bakery" {
		t.Error("store mutated through exported document")
	}
}

func TestFindByName(t *testing.T) {
	s := seeded(t)

	got := s.FindByName("R")
	if len(got) != 2 || got[0].Name != "Bakery" || got[1].Name != "Library" {
		t.Errorf("expected Bakery and Library, got %+v", got)
	}
	if got := s.FindByName("zzz"); len(got) != 0 {
		t.Errorf("expected no match, got %+v", got)
	}
}

func TestFilter(t *testing.T) {
	s := seeded(t)

	tests := []struct {
		name     string
		criteria domain.Criteria
		want     []string
	}{
		{"single tag", domain.Criteria{"tags": []string{"wifi"}}, []string{"Cafe"}},
		{"any tag", domain.Criteria{"tags": []any{"wifi", "food"}}, []string{"Cafe", "Bakery"}},
		{"empty tags ignored", domain.Criteria{"tags": []string{}}, []string{"Cafe", "Bakery", "Library"}},
		{"name substring", domain.Criteria{"name": "caf"}, []string{"Cafe"}},
		{"address substring", domain.Criteria{"address": "main st"}, []string{"Cafe", "Library"}},
		{"empty name ignored", domain.Criteria{"name": ""}, []string{"Cafe", "Bakery", "Library"}},
		{"and of criteria", domain.Criteria{"address": "main", "tags": []string{"food"}}, []string{"Cafe"}},
		{"custom string field", domain.Criteria{"phone": "0100"}, []string{"Library"}},
		{"custom extra number", domain.Criteria{"floors": 3}, []string{"Library"}},
		{"custom extra bool", domain.Criteria{"open": true}, []string{"Library"}},
		{"custom mismatch", domain.Criteria{"floors": 4}, []string{}},
		{"missing custom field", domain.Criteria{"rating": 5}, []string{}},
		{"coordinate equality", domain.Criteria{"center": domain.Coordinate{Lat: 10.5, Lng: 20.5}}, []string{"Bakery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, p := range s.Filter(tt.criteria) {
				got = append(got, p.Name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStatistics(t *testing.T) {
	s := seeded(t)

	stats := s.Statistics()
	if stats.TotalPoints != 3 {
		t.Errorf("expected 3 points, got %d", stats.TotalPoints)
	}
	if !reflect.DeepEqual(stats.Tags, map[string]int{"food": 2, "wifi": 1}) {
		t.Errorf("unexpected tags %v", stats.Tags)
	}
	want := domain.Extents{Northernmost: 10.5, Southernmost: 9.5, Easternmost: 20.5, Westernmost: 19.0}
	if stats.Coordinates != want {
		t.Errorf("expected %+v, got %+v", want, stats.Coordinates)
	}
}

func TestFindNearby_InclusiveRadiusAndOrder(t *testing.T) {
	s := seeded(t)
	origin := domain.Coordinate{Lat: 10, Lng: 20}

	exact := domain.DistanceKm(origin, domain.Coordinate{Lat: 10.5, Lng: 20.5})
	got := s.FindNearby(origin, exact)
	if len(got) != 2 || got[0].Name != "Cafe" || got[1].Name != "Bakery" {
		t.Errorf("expected Cafe and Bakery in storage order, got %+v", got)
	}

	if got := s.FindNearby(origin, 0); len(got) != 0 {
		t.Errorf("expected nothing at radius 0, got %+v", got)
	}
}

func TestNearest(t *testing.T) {
	s := seeded(t)

	got := s.Nearest(domain.Coordinate{Lat: 9.5, Lng: 19.0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Point.Name != "Library" || got[0].DistanceKm != 0 || got[0].Index != 2 {
		t.Errorf("expected Library first at distance 0, got %+v", got[0])
	}
	if got[1].Point.Name != "Cafe" {
		t.Errorf("expected Cafe second, got %+v", got[1])
	}
}

func TestUpdateInfo(t *testing.T) {
	s := seeded(t)

	res := s.UpdateInfo(domain.Patch{"description": "Old town", "zoom": []int{14, 3, 18}})
	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
	info := s.Info()
	if info.Description != "Old town" || info.Zoom == nil || *info.Zoom != (domain.Zoom{14, 3, 18}) {
		t.Errorf("unexpected info %+v", info)
	}
	if s.Len() != 3 {
		t.Errorf("points should be untouched, got %d", s.Len())
	}

	before := s.Export()
	res = s.UpdateInfo(domain.Patch{"zoom": []int{15, 1, 25}})
	if res.Valid {
		t.Fatal("expected zoom 25 to be rejected")
	}
	if !reflect.DeepEqual(before, s.Export()) {
		t.Error("store changed after a rejected info update")
	}

	if res := s.UpdateInfo(domain.Patch{"data": []any{}}); !res.Valid {
		t.Fatal(res.Errors)
	}
	if s.Len() != 0 {
		t.Errorf("expected data replaced, got %d points", s.Len())
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	v := newValidator(t)
	s := seeded(t)
	if res := s.UpdateInfo(domain.Patch{
		"id":     "bilbao",
		"name":   "Bilbo · Café ñ",
		"zoom":   []int{12, 2, 18},
		"filter": map[string]any{"inclusive": map[string]any{"kind": []string{"food"}}, "exclusive": map[string]any{}},
	}); !res.Valid {
		t.Fatal(res.Errors)
	}

	text, err := s.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "Café ñ") {
		t.Errorf("expected non-ASCII text unescaped, got %s", text)
	}

	again, err := mapstore.FromJSON(v, text)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !reflect.DeepEqual(s.Export(), again.Export()) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", s.Export(), again.Export())
	}

	rebuilt, err := mapstore.New(v, again.Export())
	if err != nil {
		t.Fatalf("rebuild from export: %v", err)
	}
	if !reflect.DeepEqual(s.Export(), rebuilt.Export()) {
		t.Error("export did not survive a rebuild")
	}
}

func TestFromJSON_Errors(t *testing.T) {
	v := newValidator(t)

	_, err := mapstore.FromJSON(v, []byte(`{"name": "x",`))
	if !errors.Is(err, domain.ErrFormat) {
		t.Errorf("expected format error, got %v", err)
	}

	_, err = mapstore.FromJSON(v, []byte(`{"name": "x", "center": {"lat": 0, "lng": 0}, "data": [], "zoom": [15, 1, 25]}`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	s, err := mapstore.FromJSON(v, []byte(`{"name": "x", "center": {"lat": 0, "lng": 0}, "data": [], "zoom": [15, 1, 18]}`))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if z := s.Info().Zoom; z == nil || z.Max() != 18 {
		t.Errorf("unexpected zoom %v", z)
	}
}

func TestSaveFileAndFromFile(t *testing.T) {
	v := newValidator(t)
	s := seeded(t)
	path := filepath.Join(t.TempDir(), "map.json")

	if err := s.SaveFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"name\": \"City\"") {
		t.Errorf("expected two-space indentation, got %s", data)
	}

	loaded, err := mapstore.FromFile(v, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(s.Export(), loaded.Export()) {
		t.Error("file round trip mismatch")
	}

	if _, err := mapstore.FromFile(v, filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestProtoRoundTrip(t *testing.T) {
	v := newValidator(t)
	s := seeded(t)

	data, err := s.MarshalProto()
	if err != nil {
		t.Fatal(err)
	}
	again, err := mapstore.FromProto(v, data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Export(), again.Export()) {
		t.Error("proto round trip mismatch")
	}

	if _, err := mapstore.FromProto(v, []byte{0xff, 0xff}); !errors.Is(err, domain.ErrFormat) {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestGeoJSONRoundTrip(t *testing.T) {
	v := newValidator(t)
	s := seeded(t)

	fc := s.GeoJSON()
	if len(fc.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(fc.Features))
	}
	if fc.Features[0].Properties["name"] != "Cafe" {
		t.Errorf("expected name property, got %v", fc.Features[0].Properties)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	again, err := mapstore.FromGeoJSON(v, data, "ignored")
	if err != nil {
		t.Fatalf("from geojson: %v", err)
	}
	if again.Info().Name != "City" {
		t.Errorf("expected name from foreign members, got %q", again.Info().Name)
	}
	if !reflect.DeepEqual(s.Points(), again.Points()) {
		t.Errorf("points mismatch:\n%+v\n%+v", s.Points(), again.Points())
	}
}

func TestFromGeoJSON_RejectsNonPoints(t *testing.T) {
	v := newValidator(t)

	data := []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}]}`)
	if _, err := mapstore.FromGeoJSON(v, data, "Lines"); !errors.Is(err, domain.ErrFormat) {
		t.Errorf("expected format error, got %v", err)
	}
}
