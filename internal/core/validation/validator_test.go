package validation_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samirrijal/metamap/internal/core/domain"
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

func point(name string, lat, lng float64) map[string]any {
	return map[string]any{
		"name":    name,
		"address": "1 Main St",
		"intro":   "a place",
		"center":  map[string]any{"lat": lat, "lng": lng},
	}
}

func document(points ...map[string]any) map[string]any {
	data := make([]any, len(points))
	for i, p := range points {
		data[i] = p
	}
	return map[string]any{
		"name":   "City",
		"center": map[string]any{"lat": 10.0, "lng": 20.0},
		"data":   data,
	}
}

func containsError(errs []string, sub string) bool {
	for _, e := range errs {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

func TestValidateShape_MinimalDocument(t *testing.T) {
	v := newValidator(t)

	res := v.ValidateShape(document())
	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected no errors, got %v", res.Errors)
	}
}

func TestValidateShape_TypedDocument(t *testing.T) {
	v := newValidator(t)

	doc := domain.EmptyDocument("Typed", domain.Coordinate{Lat: 1, Lng: 2})
	doc.Data = append(doc.Data, domain.DataPoint{
		Name: "Cafe", Address: "1 Main St", Intro: "coffee",
		Center: domain.Coordinate{Lat: 1.01, Lng: 2},
		Tags:   []string{"food"},
	})
	zoom := domain.Zoom{12, 3, 18}
	doc.Zoom = &zoom

	if res := v.ValidateShape(doc); !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
}

func TestValidateShape_Zoom(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		zoom  any
		valid bool
	}{
		{"in range", []any{15, 1, 18}, true},
		{"above max", []any{15, 1, 25}, false},
		{"below min", []any{0, 1, 18}, false},
		{"too short", []any{15, 1}, false},
		{"too long", []any{15, 1, 18, 19}, false},
		{"fractional", []any{15.5, 1, 18}, false},
		{"not an array", "15", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document()
			doc["zoom"] = tt.zoom
			res := v.ValidateShape(doc)
			if res.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %v (%v)", tt.valid, res.Valid, res.Errors)
			}
			if !tt.valid && !containsError(res.Errors, "zoom") {
				t.Errorf("expected an error on zoom, got %v", res.Errors)
			}
		})
	}
}

func TestValidateShape_ZoomAboveMaxPath(t *testing.T) {
	v := newValidator(t)

	doc := document()
	doc["zoom"] = []any{15, 1, 25}
	res := v.ValidateShape(doc)
	if len(res.Errors) != 1 {
		t.Fatalf("expected exactly 1 error, got %v", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "zoom[2]: ") {
		t.Errorf("expected error at zoom[2], got %q", res.Errors[0])
	}
}

func TestValidateShape_CoordinateRanges(t *testing.T) {
	v := newValidator(t)

	doc := document(point("A", 10, 20), point("B", 10, 20), point("C", 91, 20))
	doc["center"] = map[string]any{"lat": 10.0, "lng": -181.0}

	res := v.ValidateShape(doc)
	if res.Valid {
		t.Fatal("expected invalid document")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "center.lng: ") {
		t.Errorf("expected document-level error first, got %q", res.Errors[0])
	}
	if !strings.HasPrefix(res.Errors[1], "data[2].center.lat: ") {
		t.Errorf("expected data[2].center.lat, got %q", res.Errors[1])
	}
}

func TestValidateShape_ExhaustiveAndOrdered(t *testing.T) {
	v := newValidator(t)

	bad := map[string]any{
		"name":    " ",
		"address": "",
		"intro":   "ok",
		"center":  map[string]any{"lat": 100.0, "lng": 0.0},
		"tags":    []any{"ok", 3},
		"webLink": "not-a-url",
	}
	doc := document(point("Fine", 1, 1), bad)
	doc["name"] = ""

	res := v.ValidateShape(doc)
	if res.Valid {
		t.Fatal("expected invalid document")
	}

	want := []string{
		"name: ",
		"data[1].name: ",
		"data[1].address: ",
		"data[1].center.lat: ",
		"data[1].tags[1]: ",
		"data[1].webLink: ",
	}
	if len(res.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %d: %v", len(want), len(res.Errors), res.Errors)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(res.Errors[i], prefix) {
			t.Errorf("error %d: expected prefix %q, got %q", i, prefix, res.Errors[i])
		}
	}
}

func TestValidateShape_MissingRequired(t *testing.T) {
	v := newValidator(t)

	res := v.ValidateShape(map[string]any{"center": map[string]any{"lat": 1.0, "lng": 1.0}})
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected errors for name and data, got %v", res.Errors)
	}
	if !containsError(res.Errors, `"name"`) || !containsError(res.Errors, `"data"`) {
		t.Errorf("expected missing name and data, got %v", res.Errors)
	}
}

func TestValidateShape_NotAnObject(t *testing.T) {
	v := newValidator(t)

	res := v.ValidateShape([]any{1, 2})
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if !strings.HasPrefix(res.Errors[0], "(root): ") {
		t.Errorf("expected root error, got %v", res.Errors)
	}
}

func TestValidateShape_Filter(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		filter any
		valid  bool
	}{
		{"null", nil, true},
		{"empty", map[string]any{}, true},
		{"string lists", map[string]any{
			"inclusive": map[string]any{"cuisine": []any{"thai", "basque"}},
			"exclusive": map[string]any{"price": []any{}},
		}, true},
		{"not an object", "tags", false},
		{"inclusive not an object", map[string]any{"inclusive": []any{"a"}}, false},
		{"list of numbers", map[string]any{"exclusive": map[string]any{"price": []any{1, 2}}}, false},
		{"value not a list", map[string]any{"inclusive": map[string]any{"cuisine": "thai"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document()
			doc["filter"] = tt.filter
			res := v.ValidateShape(doc)
			if res.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %v (%v)", tt.valid, res.Valid, res.Errors)
			}
		})
	}
}

func TestValidatePoint_WebLink(t *testing.T) {
	v := newValidator(t)

	p := point("Cafe", 10.01, 20)
	p["webLink"] = "not-a-url"
	res := v.ValidatePoint(p)
	if res.Valid {
		t.Fatal("expected invalid link to fail")
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "webLink: invalid link format") {
		t.Errorf("expected a single link format error, got %v", res.Errors)
	}

	p["webLink"] = "https://example.com"
	if res := v.ValidatePoint(p); !res.Valid {
		t.Errorf("expected valid link, got %v", res.Errors)
	}
}

func TestValidatePoint_RequiredFieldsInOrder(t *testing.T) {
	v := newValidator(t)

	res := v.ValidatePoint(map[string]any{
		"intro":   "",
		"address": "   ",
		"name":    "",
		"center":  map[string]any{"lat": 0.0, "lng": 200.0},
	})
	if res.Valid {
		t.Fatal("expected invalid point")
	}
	want := []string{"name: ", "address: ", "intro: ", "center.lng: "}
	if len(res.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), res.Errors)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(res.Errors[i], prefix) {
			t.Errorf("error %d: expected prefix %q, got %q", i, prefix, res.Errors[i])
		}
	}
}

func TestValidatePoint_OptionalFields(t *testing.T) {
	v := newValidator(t)

	p := point("Cafe", 10, 20)
	p["phone"] = nil
	p["tags"] = []any{}
	p["rating"] = 4.5
	if res := v.ValidatePoint(p); !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}

	p["tags"] = "food"
	if res := v.ValidatePoint(p); res.Valid || !containsError(res.Errors, "tags") {
		t.Errorf("expected tags error, got %v", res.Errors)
	}
}

func TestValidateForBackend_ShortCircuits(t *testing.T) {
	v := newValidator(t)

	doc := document(point("Cafe", 10, 20), point("Cafe", 10, 20))
	doc["zoom"] = []any{15, 1, 25}

	res := v.ValidateForBackend(doc)
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if containsError(res.Errors, "duplicate") {
		t.Errorf("backend rules must not run on shape failures, got %v", res.Errors)
	}
}

func TestValidateForBackend_DuplicateNames(t *testing.T) {
	v := newValidator(t)

	doc := document(point("Cafe", 10, 20), point("Bar", 10, 20), point("  Cafe ", 10, 20))
	res := v.ValidateForBackend(doc)
	if res.Valid {
		t.Fatal("expected duplicate names to fail")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "duplicate names") || !strings.Contains(res.Errors[0], `"Cafe"`) {
		t.Errorf("expected a duplicate names error naming Cafe, got %v", res.Errors)
	}

	doc = document(point("Cafe", 10, 20), point("cafe", 10, 20))
	if res := v.ValidateForBackend(doc); !res.Valid {
		t.Errorf("names differing in case are distinct, got %v", res.Errors)
	}
}

func TestValidateForBackend_Limits(t *testing.T) {
	schema, err := validation.DefaultSchema()
	if err != nil {
		t.Fatal(err)
	}
	v := validation.NewValidator(schema, validation.Rules{MaxPoints: 2, MaxNameLength: 5})

	doc := document(point("A", 1, 1), point("B", 1, 1), point("A", 1, 1))
	doc["name"] = "Bilbao"

	res := v.ValidateForBackend(doc)
	if len(res.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %v", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "3") || !strings.Contains(res.Errors[0], "too many points") {
		t.Errorf("expected point count error first, got %q", res.Errors[0])
	}
	if !strings.Contains(res.Errors[1], "duplicate names") {
		t.Errorf("expected duplicate names second, got %q", res.Errors[1])
	}
	if !strings.Contains(res.Errors[2], "6 characters") {
		t.Errorf("expected name length error last, got %q", res.Errors[2])
	}
}

func TestValidateForBackend_DefaultLimits(t *testing.T) {
	v := newValidator(t)

	points := make([]map[string]any, 1001)
	for i := range points {
		points[i] = point(fmt.Sprintf("P%d", i), 1, 1)
	}
	doc := document(points...)
	doc["name"] = strings.Repeat("é", 201)

	res := v.ValidateForBackend(doc)
	if !containsError(res.Errors, "1001") {
		t.Errorf("expected the point count in the error, got %v", res.Errors)
	}
	if !containsError(res.Errors, "201 characters") {
		t.Errorf("expected the name length in characters, got %v", res.Errors)
	}
}

func TestLoadSchema(t *testing.T) {
	if _, err := validation.LoadSchema(""); err != nil {
		t.Fatalf("empty path should load the built-in schema: %v", err)
	}

	dir := t.TempDir()

	_, err := validation.LoadSchema(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for missing file, got %v", err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = validation.LoadSchema(broken)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for unparsable file, got %v", err)
	}

	noData := filepath.Join(dir, "nodata.json")
	if err := os.WriteFile(noData, []byte(`{"type":"object"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = validation.LoadSchema(noData)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for schema without data items, got %v", err)
	}

	custom := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(custom, validation.DefaultSchemaDocument(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := validation.LoadSchema(custom); err != nil {
		t.Errorf("expected custom schema to load, got %v", err)
	}
}

func TestValidatePoint_FoldedKeys(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"long s", "addreſs", "addreſs: conflicts with field address"},
		{"upper case", "Name", "Name: conflicts with field name"},
		{"kelvin sign", "webLin\u212a", "webLin\u212a: conflicts with field webLink"},
		{"lower case", "weblink", "weblink: conflicts with field webLink"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := point("Cafe", 10, 20)
			p[tt.key] = "   "
			res := v.ValidatePoint(p)
			if res.Valid {
				t.Fatalf("expected %q to be rejected", tt.key)
			}
			if !containsError(res.Errors, tt.want) {
				t.Errorf("expected %q, got %v", tt.want, res.Errors)
			}
		})
	}

	p := point("Cafe", 10, 20)
	p["center"] = map[string]any{"lat": 10.0, "lng": 20.0, "LAT": 95.0}
	if res := v.ValidatePoint(p); res.Valid || !containsError(res.Errors, "center.LAT: conflicts with field lat") {
		t.Errorf("expected folded coordinate key error, got %v", res.Errors)
	}
}

func TestValidateShape_FoldedKeys(t *testing.T) {
	v := newValidator(t)

	doc := document(point("Cafe", 10, 20))
	doc["NAME"] = " "
	doc["center"] = map[string]any{"lat": 10.0, "lng": 20.0, "Lng": 500.0}
	doc["filter"] = map[string]any{"Inclusive": map[string]any{"tags": []any{"food"}}}
	doc["data"].([]any)[0].(map[string]any)["Intro"] = ""

	res := v.ValidateShape(doc)
	if res.Valid {
		t.Fatal("expected folded keys to be rejected")
	}
	for _, want := range []string{
		"NAME: conflicts with field name",
		"center.Lng: conflicts with field lng",
		"filter.Inclusive: conflicts with field inclusive",
		"data[0].Intro: conflicts with field intro",
	} {
		if !containsError(res.Errors, want) {
			t.Errorf("expected %q in %v", want, res.Errors)
		}
	}

	if res := v.ValidateShape(document(point("Cafe", 10, 20))); !res.Valid {
		t.Errorf("expected exact keys to stay valid, got %v", res.Errors)
	}
}

func TestValidate_UnicodeBlank(t *testing.T) {
	v := newValidator(t)

	for _, blank := range []string{"\u3000", "\u00a0", "\v", "  \t", "\u0085"} {
		for _, field := range []string{"name", "address", "intro"} {
			p := point("Cafe", 10, 20)
			p[field] = blank
			res := v.ValidatePoint(p)
			want := field + ": must not be blank"
			if res.Valid || len(res.Errors) != 1 || res.Errors[0] != want {
				t.Errorf("%s=%q: expected [%s], got %v", field, blank, want, res.Errors)
			}
		}

		doc := document(point("Cafe", 10, 20))
		doc["name"] = blank
		if res := v.ValidateShape(doc); res.Valid || !containsError(res.Errors, "name: must not be blank") {
			t.Errorf("document name %q: expected blank error, got %v", blank, res.Errors)
		}
	}

	p := point("Cafe", 10, 20)
	p["name"] = "\u3000Cafe\u3000"
	if res := v.ValidatePoint(p); !res.Valid {
		t.Errorf("expected padded name to stay valid, got %v", res.Errors)
	}
}

func TestValidate_AsciiBlankReportedOnce(t *testing.T) {
	v := newValidator(t)

	p := point("Cafe", 10, 20)
	p["intro"] = " \t\n"
	res := v.ValidatePoint(p)
	if len(res.Errors) != 1 || res.Errors[0] != "intro: must not be blank" {
		t.Errorf("expected a single blank error, got %v", res.Errors)
	}
}
