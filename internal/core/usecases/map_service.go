package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/mapstore"
	"github.com/samirrijal/metamap/internal/core/ports"
	"github.com/samirrijal/metamap/internal/core/validation"
	"github.com/samirrijal/metamap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/metamap/internal/core/usecases")

const defaultCacheTTL = 300

// MapService opens persisted maps into memory stores and serialises changes to them.
//
// Each open map has its own lock: reads share it, mutations hold it exclusively
// for validate, persist and commit. A mutation that passes point validation but
// breaks a backend rule is discarded, leaving the open map as it was.
type MapService struct {
	repo      ports.MapRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	validator *validation.Validator
	cacheTTL  int
	source    string

	mu   sync.Mutex
	open map[string]*openMap
}

type openMap struct {
	mu    sync.RWMutex
	store *mapstore.Store
}

// NewMapService creates a new MapService. cache and publisher may be nil.
func NewMapService(
	repo ports.MapRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	validator *validation.Validator,
	cacheTTLSeconds int,
) *MapService {
	if cacheTTLSeconds <= 0 {
		cacheTTLSeconds = defaultCacheTTL
	}
	return &MapService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		validator: validator,
		cacheTTL:  cacheTTLSeconds,
		source:    uuid.NewString(),
		open:      make(map[string]*openMap),
	}
}

// Source identifies this service instance in published events.
func (s *MapService) Source() string {
	return s.source
}

// Validator returns the validator maps are checked with.
func (s *MapService) Validator() *validation.Validator {
	return s.validator
}

// Validate runs every validation stage on a candidate document without storing it.
func (s *MapService) Validate(ctx context.Context, candidate any) domain.ValidationResult {
	raw, err := validation.Normalize(candidate)
	if err != nil {
		return domain.Invalid(fmt.Sprintf("(root): %v", err))
	}
	return s.validator.ValidateForBackend(raw)
}

// Create stores a new map. A missing id is assigned.
func (s *MapService) Create(ctx context.Context, candidate any) (domain.MapInfo, error) {
	return s.create(ctx, candidate, domain.MapCreated, false)
}

// Import stores a map, replacing any map with the same id.
func (s *MapService) Import(ctx context.Context, candidate any) (domain.MapInfo, error) {
	return s.create(ctx, candidate, domain.MapImported, true)
}

func (s *MapService) create(ctx context.Context, candidate any, evType domain.MapEventType, replace bool) (domain.MapInfo, error) {
	ctx, span := tracer.Start(ctx, "MapService."+string(evType))
	defer span.End()

	raw, err := validation.Normalize(candidate)
	if err != nil {
		return domain.MapInfo{}, fail(span, fmt.Errorf("normalize document: %w: %w", domain.ErrFormat, err))
	}
	if obj, ok := raw.(map[string]any); ok {
		if id, ok := obj["id"]; !ok || id == nil || id == "" {
			obj["id"] = uuid.NewString()
		}
	}

	st, err := mapstore.FromValue(s.validator, raw)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues("shape").Inc()
		metrics.MapMutations.WithLabelValues(string(evType), "rejected").Inc()
		return domain.MapInfo{}, fail(span, err)
	}
	if res := st.ValidateForBackend(); !res.Valid {
		metrics.ValidationFailures.WithLabelValues("backend").Inc()
		metrics.MapMutations.WithLabelValues(string(evType), "rejected").Inc()
		return domain.MapInfo{}, fail(span, domain.NewValidationError(res))
	}

	info := st.Info()
	span.SetAttributes(attribute.String("map.id", info.ID), attribute.Int("map.points", st.Len()))

	if !replace {
		_, err := s.repo.Get(ctx, info.ID)
		switch {
		case err == nil:
			return domain.MapInfo{}, fail(span, fmt.Errorf("map %s: %w", info.ID, domain.ErrConflict))
		case !errors.Is(err, domain.ErrNotFound):
			return domain.MapInfo{}, fail(span, fmt.Errorf("lookup map: %w", err))
		}
	}

	doc := st.Export()
	if err := s.repo.Save(ctx, &doc); err != nil {
		metrics.MapMutations.WithLabelValues(string(evType), "error").Inc()
		return domain.MapInfo{}, fail(span, fmt.Errorf("save map: %w", err))
	}

	s.mu.Lock()
	if m, ok := s.open[info.ID]; ok {
		m.mu.Lock()
		m.store = st
		m.mu.Unlock()
	} else {
		s.open[info.ID] = &openMap{store: st}
		metrics.OpenMaps.Inc()
	}
	s.mu.Unlock()

	s.committed(ctx, st, evType, info.ID, nil)
	return info, nil
}

// List returns a page of persisted maps and the total count.
func (s *MapService) List(ctx context.Context, offset, limit int) ([]domain.MapSummary, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, offset, limit)
}

// Delete removes a map.
func (s *MapService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "MapService.Delete", trace.WithAttributes(attribute.String("map.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return fail(span, err)
	}
	s.Evict(id)
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKey(id))
	}
	metrics.MapMutations.WithLabelValues(string(domain.MapDeleted), "ok").Inc()
	s.publish(ctx, &domain.MapEvent{Type: domain.MapDeleted, MapID: id})
	return nil
}

// Evict drops the in-memory copy of a map so the next access reloads it.
func (s *MapService) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[id]; ok {
		delete(s.open, id)
		metrics.OpenMaps.Dec()
	}
}

// HandleEvent evicts maps changed by other instances.
func (s *MapService) HandleEvent(ctx context.Context, event *domain.MapEvent) error {
	if event == nil || event.Source == s.source {
		return nil
	}
	slog.Debug("evicting map changed elsewhere", "map_id", event.MapID, "type", event.Type, "source", event.Source)
	s.Evict(event.MapID)
	return nil
}

// Info returns a map's metadata.
func (s *MapService) Info(ctx context.Context, id string) (domain.MapInfo, error) {
	var out domain.MapInfo
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.Info()
		return nil
	})
	return out, err
}

// Export returns the whole document.
func (s *MapService) Export(ctx context.Context, id string) (domain.MapData, error) {
	var out domain.MapData
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.Export()
		return nil
	})
	return out, err
}

// Points returns every point of a map.
func (s *MapService) Points(ctx context.Context, id string) ([]domain.DataPoint, error) {
	var out []domain.DataPoint
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.Points()
		return nil
	})
	return out, err
}

// Point returns one point by index.
func (s *MapService) Point(ctx context.Context, id string, index int) (domain.DataPoint, error) {
	var out domain.DataPoint
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		p, ok := st.Point(index)
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
		}
		out = p
		return nil
	})
	return out, err
}

// Statistics returns point count, tag counts and extents.
func (s *MapService) Statistics(ctx context.Context, id string) (domain.Statistics, error) {
	var out domain.Statistics
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.Statistics()
		return nil
	})
	return out, err
}

// TagStatistics returns tag occurrence counts.
func (s *MapService) TagStatistics(ctx context.Context, id string) (map[string]int, error) {
	var out map[string]int
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.TagStatistics()
		return nil
	})
	return out, err
}

// FindNearby returns points within radiusKm of center.
func (s *MapService) FindNearby(ctx context.Context, id string, center domain.Coordinate, radiusKm float64) ([]domain.DataPoint, error) {
	var out []domain.DataPoint
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.FindNearby(center, radiusKm)
		return nil
	})
	return out, err
}

// Nearest returns up to limit points ordered by distance from center.
func (s *MapService) Nearest(ctx context.Context, id string, center domain.Coordinate, limit int) ([]domain.PointDistance, error) {
	var out []domain.PointDistance
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.Nearest(center, limit)
		return nil
	})
	return out, err
}

// FindByName returns points whose name contains q.
func (s *MapService) FindByName(ctx context.Context, id, q string) ([]domain.DataPoint, error) {
	var out []domain.DataPoint
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.FindByName(q)
		return nil
	})
	return out, err
}

// Filter returns points matching every criterion.
func (s *MapService) Filter(ctx context.Context, id string, criteria domain.Criteria) ([]domain.DataPoint, error) {
	var out []domain.DataPoint
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.Filter(criteria)
		return nil
	})
	return out, err
}

// GeoJSON returns the map as a FeatureCollection.
func (s *MapService) GeoJSON(ctx context.Context, id string) (*geojson.FeatureCollection, error) {
	var out *geojson.FeatureCollection
	err := s.read(ctx, id, func(st *mapstore.Store) error {
		out = st.GeoJSON()
		return nil
	})
	return out, err
}

// Serialize returns the map as JSON text.
func (s *MapService) Serialize(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := s.read(ctx, id, func(st *mapstore.Store) (err error) {
		out, err = st.Serialize()
		return err
	})
	return out, err
}

// MarshalProto returns the map as an encoded google.protobuf.Struct.
func (s *MapService) MarshalProto(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := s.read(ctx, id, func(st *mapstore.Store) (err error) {
		out, err = st.MarshalProto()
		return err
	})
	return out, err
}

// AddPoint appends a point and returns its index.
func (s *MapService) AddPoint(ctx context.Context, id string, candidate any) (int, error) {
	var index int
	err := s.mutate(ctx, id, domain.PointAdded, func(st *mapstore.Store) (*int, error) {
		if res := st.AddPointValue(candidate); !res.Valid {
			return nil, domain.NewValidationError(res)
		}
		index = st.Len() - 1
		return &index, nil
	})
	return index, err
}

// UpdatePoint merges patch into the point at index.
func (s *MapService) UpdatePoint(ctx context.Context, id string, index int, patch domain.Patch) (domain.DataPoint, error) {
	var out domain.DataPoint
	err := s.mutate(ctx, id, domain.PointUpdated, func(st *mapstore.Store) (*int, error) {
		if index < 0 || index >= st.Len() {
			return nil, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
		}
		if res := st.UpdatePoint(index, patch); !res.Valid {
			return nil, domain.NewValidationError(res)
		}
		out, _ = st.Point(index)
		return &index, nil
	})
	return out, err
}

// RemovePoint deletes the point at index.
func (s *MapService) RemovePoint(ctx context.Context, id string, index int) error {
	return s.mutate(ctx, id, domain.PointRemoved, func(st *mapstore.Store) (*int, error) {
		if !st.RemovePoint(index) {
			return nil, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
		}
		return &index, nil
	})
}

// UpdateInfo merges patch into the map's top-level fields. The id cannot change.
func (s *MapService) UpdateInfo(ctx context.Context, id string, patch domain.Patch) (domain.MapInfo, error) {
	var out domain.MapInfo
	err := s.mutate(ctx, id, domain.MapInfoUpdated, func(st *mapstore.Store) (*int, error) {
		if v, ok := patch["id"]; ok && v != id {
			return nil, domain.NewValidationError(domain.Invalid("id: cannot be changed"))
		}
		if res := st.UpdateInfo(patch); !res.Valid {
			return nil, domain.NewValidationError(res)
		}
		out = st.Info()
		return nil, nil
	})
	return out, err
}

func (s *MapService) read(ctx context.Context, id string, fn func(*mapstore.Store) error) error {
	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.store)
}

// mutate applies fn to a working copy of the map and commits it only if the
// result passes the backend rules and is persisted.
func (s *MapService) mutate(ctx context.Context, id string, evType domain.MapEventType, fn func(*mapstore.Store) (*int, error)) error {
	ctx, span := tracer.Start(ctx, "MapService."+string(evType), trace.WithAttributes(attribute.String("map.id", id)))
	defer span.End()

	m, err := s.load(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.store.Clone()
	index, err := fn(work)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			metrics.ValidationFailures.WithLabelValues("shape").Inc()
		}
		metrics.MapMutations.WithLabelValues(string(evType), "rejected").Inc()
		return fail(span, err)
	}
	if res := work.ValidateForBackend(); !res.Valid {
		metrics.ValidationFailures.WithLabelValues("backend").Inc()
		metrics.MapMutations.WithLabelValues(string(evType), "rejected").Inc()
		slog.Debug("mutation rolled back", "map_id", id, "op", evType, "errors", len(res.Errors))
		return fail(span, domain.NewValidationError(res))
	}

	doc := work.Export()
	if err := s.repo.Save(ctx, &doc); err != nil {
		metrics.MapMutations.WithLabelValues(string(evType), "error").Inc()
		return fail(span, fmt.Errorf("save map: %w", err))
	}
	m.store = work

	s.committed(ctx, work, evType, id, index)
	return nil
}

// load returns the open map for id, reading it from the cache or repository
// the first time.
func (s *MapService) load(ctx context.Context, id string) (*openMap, error) {
	s.mu.Lock()
	m, ok := s.open[id]
	s.mu.Unlock()
	if ok {
		return m, nil
	}

	st, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.open[id]; ok {
		return m, nil
	}
	m = &openMap{store: st}
	s.open[id] = m
	metrics.OpenMaps.Inc()
	return m, nil
}

func (s *MapService) fetch(ctx context.Context, id string) (*mapstore.Store, error) {
	key := cacheKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			if st, err := mapstore.FromJSON(s.validator, data); err == nil {
				metrics.CacheHits.WithLabelValues("map").Inc()
				return st, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("map").Inc()
	}

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := mapstore.New(s.validator, *doc)
	if err != nil {
		return nil, fmt.Errorf("open map %s: %w", id, err)
	}
	s.cacheStore(ctx, id, st)
	return st, nil
}

func (s *MapService) cacheStore(ctx context.Context, id string, st *mapstore.Store) {
	if s.cache == nil {
		return
	}
	if data, err := st.Serialize(); err == nil {
		_ = s.cache.Set(ctx, cacheKey(id), data, s.cacheTTL)
	}
}

func (s *MapService) committed(ctx context.Context, st *mapstore.Store, evType domain.MapEventType, id string, index *int) {
	metrics.MapMutations.WithLabelValues(string(evType), "ok").Inc()
	metrics.MapPoints.Observe(float64(st.Len()))
	s.cacheStore(ctx, id, st)
	s.publish(ctx, &domain.MapEvent{Type: evType, MapID: id, PointIndex: index, Points: st.Len()})
}

func (s *MapService) publish(ctx context.Context, event *domain.MapEvent) {
	if s.publisher == nil {
		return
	}
	event.Source = s.source
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.PublishMapEvent(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		slog.Warn("publish map event failed", "map_id", event.MapID, "type", event.Type, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
}

func cacheKey(id string) string {
	return "maps:doc:" + id
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
