package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// Rules are the backend limits applied on top of the schema.
type Rules struct {
	MaxPoints     int
	MaxNameLength int
}

// DefaultRules returns the standard backend limits.
func DefaultRules() Rules {
	return Rules{MaxPoints: 1000, MaxNameLength: 200}
}

// Validator checks map documents and points against a Schema and backend Rules.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema *Schema
	rules  Rules
}

// NewValidator creates a Validator. Non-positive limits fall back to DefaultRules.
func NewValidator(schema *Schema, rules Rules) *Validator {
	def := DefaultRules()
	if rules.MaxPoints <= 0 {
		rules.MaxPoints = def.MaxPoints
	}
	if rules.MaxNameLength <= 0 {
		rules.MaxNameLength = def.MaxNameLength
	}
	return &Validator{schema: schema, rules: rules}
}

// Rules returns the backend limits in effect.
func (v *Validator) Rules() Rules {
	return v.rules
}

// ValidateShape checks a full document candidate against the schema and
// reports every violation.
func (v *Validator) ValidateShape(candidate any) domain.ValidationResult {
	value, err := Normalize(candidate)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}
	return v.validateShape(value)
}

// ValidatePoint checks a standalone point candidate. Paths are relative to the point.
func (v *Validator) ValidatePoint(candidate any) domain.ValidationResult {
	value, err := Normalize(candidate)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}

	errs := evaluate(v.schema.point, value)
	errs = append(errs, pointErrors(value, nil)...)
	return result(errs, pointRank)
}

// ValidateForBackend runs ValidateShape and, only when the shape is valid,
// appends the backend rule violations: point count, duplicate point names
// and map name length, in that order.
func (v *Validator) ValidateForBackend(candidate any) domain.ValidationResult {
	value, err := Normalize(candidate)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}

	res := v.validateShape(value)
	if !res.Valid {
		return res
	}

	doc, _ := value.(map[string]any)
	points, _ := doc["data"].([]any)

	var extra []string
	if len(points) > v.rules.MaxPoints {
		extra = append(extra, fmt.Sprintf("data: too many points: %d (max %d)", len(points), v.rules.MaxPoints))
	}
	if dupes := duplicateNames(points); len(dupes) > 0 {
		extra = append(extra, fmt.Sprintf("data: duplicate names: %s", strings.Join(dupes, ", ")))
	}
	if name, ok := doc["name"].(string); ok {
		if n := utf8.RuneCountInString(name); n > v.rules.MaxNameLength {
			extra = append(extra, fmt.Sprintf("name: too long: %d characters (max %d)", n, v.rules.MaxNameLength))
		}
	}

	return res.Append(extra...)
}

func (v *Validator) validateShape(value any) domain.ValidationResult {
	errs := evaluate(v.schema.document, value)
	if doc, ok := value.(map[string]any); ok {
		errs = append(errs, foldedKeys(doc, documentFieldOrder, nil)...)
		errs = append(errs, foldedKeys(doc["center"], coordinateFields, []string{"center"})...)
		errs = append(errs, foldedKeys(doc["filter"], filterFields, []string{"filter"})...)
		errs = append(errs, blankErrors(doc, []string{"name"}, nil)...)
		if points, ok := doc["data"].([]any); ok {
			for i, p := range points {
				errs = append(errs, pointErrors(p, []string{"data", strconv.Itoa(i)})...)
			}
		}
	}
	return result(errs, documentRank)
}

// Normalize converts a Go value into its untyped JSON form
// (map[string]any, []any, float64, string, bool or nil).
func Normalize(v any) (any, error) {
	data, err := domain.EncodeJSON(v, "")
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	return out, nil
}

type fieldError struct {
	path   []string
	reason string
}

func evaluate(schema *openapi3.Schema, value any) []fieldError {
	var out []fieldError
	collect(schema.VisitJSON(value, openapi3.MultiErrors()), &out)
	return out
}

func collect(err error, out *[]fieldError) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			collect(inner, out)
		}
	case *openapi3.SchemaError:
		reason := e.Reason
		if e.SchemaField == "pattern" {
			reason = "must not be blank"
		}
		*out = append(*out, fieldError{path: e.JSONPointer(), reason: reason})
	default:
		*out = append(*out, fieldError{reason: err.Error()})
	}
}

// pointErrors reports the point checks the schema cannot express.
func pointErrors(point any, prefix []string) []fieldError {
	p, ok := point.(map[string]any)
	if !ok {
		return nil
	}
	errs := foldedKeys(p, domain.PointFields, prefix)
	errs = append(errs, foldedKeys(p["center"], coordinateFields, subPath(prefix, "center"))...)
	errs = append(errs, blankErrors(p, []string{"name", "address", "intro"}, prefix)...)
	return append(errs, linkErrors(p, prefix)...)
}

var (
	coordinateFields = []string{"lat", "lng"}
	filterFields     = []string{"inclusive", "exclusive"}
)

// foldedKeys reports keys that equal a declared field only under case folding,
// such as "Name" or "addreſs".
func foldedKeys(value any, fields []string, prefix []string) []fieldError {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	var errs []fieldError
	for k := range m {
		for _, f := range fields {
			if k != f && strings.EqualFold(k, f) {
				errs = append(errs, fieldError{path: subPath(prefix, k), reason: "conflicts with field " + f})
			}
		}
	}
	return errs
}

// blankErrors catches whitespace the \S pattern lets through: Unicode
// spaces such as U+00A0 or U+3000, and the vertical tab.
func blankErrors(m map[string]any, fields []string, prefix []string) []fieldError {
	var errs []fieldError
	for _, f := range fields {
		s, ok := m[f].(string)
		if !ok || strings.TrimSpace(s) != "" || strings.Trim(s, " \t\n\f\r") == "" {
			continue
		}
		errs = append(errs, fieldError{path: subPath(prefix, f), reason: "must not be blank"})
	}
	return errs
}

func subPath(prefix []string, key string) []string {
	return append(append([]string(nil), prefix...), key)
}

// linkErrors reports a webLink that is not an absolute URL.
func linkErrors(point any, prefix []string) []fieldError {
	p, ok := point.(map[string]any)
	if !ok {
		return nil
	}
	link, ok := p["webLink"].(string)
	if !ok || isAbsoluteURL(link) {
		return nil
	}
	path := subPath(prefix, "webLink")
	return []fieldError{{path: path, reason: "invalid link format: must be an absolute URL with scheme and host"}}
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// duplicateNames returns trimmed non-empty point names that occur more than once,
// in order of their first repeat.
func duplicateNames(points []any) []string {
	seen := make(map[string]int, len(points))
	var dupes []string
	for _, p := range points {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		seen[name]++
		if seen[name] == 2 {
			dupes = append(dupes, strconv.Quote(name))
		}
	}
	return dupes
}

var documentFieldOrder = []string{"name", "center", "data", "zoom", "filter", "id", "description", "origin"}

type rank struct {
	group int
	index int
	field int
}

func fieldRank(order []string, path []string) int {
	if len(path) == 0 {
		return -1
	}
	for i, f := range order {
		if f == path[0] {
			return i
		}
	}
	return len(order)
}

// documentRank orders document-level errors first, then point errors by index,
// then by field within a point.
func documentRank(path []string) rank {
	if len(path) >= 2 && path[0] == "data" && isIndex(path[1]) {
		i, _ := strconv.Atoi(path[1])
		return rank{group: 1, index: i, field: fieldRank(domain.PointFields, path[2:])}
	}
	return rank{field: fieldRank(documentFieldOrder, path)}
}

func pointRank(path []string) rank {
	return rank{field: fieldRank(domain.PointFields, path)}
}

func result(errs []fieldError, rankOf func([]string) rank) domain.ValidationResult {
	if len(errs) == 0 {
		return domain.Valid()
	}

	type ranked struct {
		rank rank
		msg  string
	}
	items := make([]ranked, len(errs))
	for i, e := range errs {
		items[i] = ranked{rank: rankOf(e.path), msg: formatPath(e.path) + ": " + e.reason}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.rank.group != b.rank.group {
			return a.rank.group < b.rank.group
		}
		if a.rank.index != b.rank.index {
			return a.rank.index < b.rank.index
		}
		if a.rank.field != b.rank.field {
			return a.rank.field < b.rank.field
		}
		return a.msg < b.msg
	})

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.msg
	}
	return domain.Invalid(out...)
}

// formatPath renders a JSON pointer as data[2].center.lat.
func formatPath(path []string) string {
	if len(path) == 0 {
		return "(root)"
	}
	var b strings.Builder
	for i, seg := range path {
		if isIndex(seg) && i > 0 && path[i-1] != "inclusive" && path[i-1] != "exclusive" {
			b.WriteString("[" + seg + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
