// Package mapstore holds a validated map document in memory and answers
// CRUD, filter, distance and statistics queries over it.
//
// A Store is not safe for concurrent mutation. Callers that share a Store
// between goroutines must serialise mutations themselves; reads return
// independent copies and never observe a half-applied change because every
// mutation builds a new document and swaps it in one step.
package mapstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/validation"
)

// Store owns one valid map document.
type Store struct {
	v   *validation.Validator
	doc *domain.MapData
}

// New builds a Store from a typed document, validating it first.
func New(v *validation.Validator, doc domain.MapData) (*Store, error) {
	if doc.Data == nil {
		doc.Data = []domain.DataPoint{}
	}
	return FromValue(v, doc)
}

// FromValue builds a Store from an untyped JSON value.
func FromValue(v *validation.Validator, candidate any) (*Store, error) {
	raw, err := validation.Normalize(candidate)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w: %w", domain.ErrFormat, err)
	}
	if res := v.ValidateShape(raw); !res.Valid {
		return nil, domain.NewValidationError(res)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	return &Store{v: v, doc: doc}, nil
}

// FromJSON builds a Store from JSON text.
func FromJSON(v *validation.Validator, text []byte) (*Store, error) {
	var raw any
	if err := json.Unmarshal(text, &raw); err != nil {
		return nil, fmt.Errorf("parse document: %w: %w", domain.ErrFormat, err)
	}
	return FromValue(v, raw)
}

// FromFile builds a Store from a JSON file.
func FromFile(v *validation.Validator, path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return FromJSON(v, data)
}

// Validator returns the validator the store checks mutations with.
func (s *Store) Validator() *validation.Validator {
	return s.v
}

// Clone returns a Store sharing the current document. Mutating either store
// leaves the other unchanged.
func (s *Store) Clone() *Store {
	return &Store{v: s.v, doc: s.doc}
}

// Info returns the map metadata without its points.
func (s *Store) Info() domain.MapInfo {
	return s.doc.Info()
}

// Points returns a copy of every point in storage order.
func (s *Store) Points() []domain.DataPoint {
	out := make([]domain.DataPoint, len(s.doc.Data))
	for i, p := range s.doc.Data {
		out[i] = p.Clone()
	}
	return out
}

// Point returns a copy of the point at index.
func (s *Store) Point(index int) (domain.DataPoint, bool) {
	if index < 0 || index >= len(s.doc.Data) {
		return domain.DataPoint{}, false
	}
	return s.doc.Data[index].Clone(), true
}

// Len returns the number of points.
func (s *Store) Len() int {
	return len(s.doc.Data)
}

// Export returns a deep copy of the whole document.
func (s *Store) Export() domain.MapData {
	return s.doc.Clone()
}

// AddPoint validates p as a standalone point and appends it.
func (s *Store) AddPoint(p domain.DataPoint) domain.ValidationResult {
	return s.AddPointValue(p)
}

// AddPointValue validates an untyped point candidate and appends it.
func (s *Store) AddPointValue(candidate any) domain.ValidationResult {
	raw, err := validation.Normalize(candidate)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}
	res := s.v.ValidatePoint(raw)
	if !res.Valid {
		slog.Debug("point rejected", "op", "add", "errors", len(res.Errors))
		return res
	}
	p, err := decodePoint(raw)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}

	next := s.doc.Clone()
	next.Data = append(next.Data, p)
	s.doc = &next
	return res
}

// UpdatePoint overwrites the fields in patch on the point at index, keeping
// every other field, and commits the result only if it is a valid point.
func (s *Store) UpdatePoint(index int, patch domain.Patch) domain.ValidationResult {
	if index < 0 || index >= len(s.doc.Data) {
		return domain.Invalid(fmt.Sprintf("%s: %d", domain.ErrIndexOutOfRange, index))
	}

	current, err := validation.Normalize(s.doc.Data[index])
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}
	merged, err := merge(current, patch)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}

	res := s.v.ValidatePoint(merged)
	if !res.Valid {
		slog.Debug("point rejected", "op", "update", "index", index, "errors", len(res.Errors))
		return res
	}
	p, err := decodePoint(merged)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}

	next := s.doc.Clone()
	next.Data[index] = p
	s.doc = &next
	return res
}

// RemovePoint deletes the point at index and reports whether it existed.
func (s *Store) RemovePoint(index int) bool {
	if index < 0 || index >= len(s.doc.Data) {
		return false
	}
	next := s.doc.Clone()
	next.Data = append(next.Data[:index], next.Data[index+1:]...)
	s.doc = &next
	return true
}

// UpdateInfo overwrites top-level fields with patch and commits the result only
// if the whole document stays valid. Points are untouched unless patch has "data".
func (s *Store) UpdateInfo(patch domain.Patch) domain.ValidationResult {
	current, err := validation.Normalize(s.doc)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}
	merged, err := merge(current, patch)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}

	res := s.v.ValidateShape(merged)
	if !res.Valid {
		slog.Debug("map info rejected", "errors", len(res.Errors))
		return res
	}
	doc, err := decodeDocument(merged)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}
	s.doc = doc
	return res
}

// ValidateForBackend applies the backend rules to the committed document.
func (s *Store) ValidateForBackend() domain.ValidationResult {
	return s.v.ValidateForBackend(s.doc)
}

// Serialize returns the document as compact JSON with non-ASCII text unescaped.
func (s *Store) Serialize() ([]byte, error) {
	return domain.EncodeJSON(s.doc, "")
}

// SerializeIndent returns the document as indented JSON.
func (s *Store) SerializeIndent(indent string) ([]byte, error) {
	return domain.EncodeJSON(s.doc, indent)
}

// SaveFile writes the document to path with two-space indentation.
func (s *Store) SaveFile(path string) error {
	data, err := s.SerializeIndent("  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// merge overlays patch on the object form of current.
func merge(current any, patch domain.Patch) (map[string]any, error) {
	base, ok := current.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stored value is not an object")
	}
	overlay, err := validation.Normalize(map[string]any(patch))
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	if m, ok := overlay.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

func decodeDocument(raw any) (*domain.MapData, error) {
	data, err := domain.EncodeJSON(raw, "")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w: %w", domain.ErrFormat, err)
	}
	var doc domain.MapData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w: %w", domain.ErrFormat, err)
	}
	if doc.Data == nil {
		doc.Data = []domain.DataPoint{}
	}
	if doc.Filter != nil {
		if len(doc.Filter.Inclusive) == 0 {
			doc.Filter.Inclusive = nil
		}
		if len(doc.Filter.Exclusive) == 0 {
			doc.Filter.Exclusive = nil
		}
	}
	return &doc, nil
}

func decodePoint(raw any) (domain.DataPoint, error) {
	data, err := domain.EncodeJSON(raw, "")
	if err != nil {
		return domain.DataPoint{}, err
	}
	var p domain.DataPoint
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.DataPoint{}, err
	}
	return p, nil
}
