package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/metamap/internal/core/domain"
	"github.com/samirrijal/metamap/internal/core/mapstore"
	"github.com/samirrijal/metamap/internal/core/usecases"
)

// Application error types the import workflow never retries.
const (
	ErrTypeValidation = "ValidationError"
	ErrTypeFormat     = "FormatError"
)

const fetchTimeout = 20 * time.Second

// DecodeInput carries fetched bytes to DecodeDocument.
type DecodeInput struct {
	Data   []byte
	Format string // "json" (default) or "geojson"
	MapID  string // overrides the document id when set
	Name   string // map name for GeoJSON sources
}

// DecodedDocument is a normalised JSON map document ready for validation.
type DecodedDocument struct {
	ID     string
	Points int
	Data   []byte
}

// ImportActivities holds the activity implementations for the import workflow.
type ImportActivities struct {
	Maps   *usecases.MapService
	Client *fasthttp.Client
}

// NewImportActivities creates activities backed by svc. Remote sources are
// fetched with a fasthttp client capped at maxBytes per response.
func NewImportActivities(svc *usecases.MapService, maxBytes int) *ImportActivities {
	return &ImportActivities{
		Maps: svc,
		Client: &fasthttp.Client{
			Name:                "metamap-import",
			MaxResponseBodySize: maxBytes,
			ReadTimeout:         fetchTimeout,
		},
	}
}

// FetchDocument reads source, which is an http(s) URL or a local file path.
func (a *ImportActivities) FetchDocument(ctx context.Context, source string) ([]byte, error) {
	logger := activity.GetLogger(ctx)

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, temporal.NewNonRetryableApplicationError("source not found: "+source, ErrTypeFormat, err)
			}
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		logger.Info("read import source", "path", source, "bytes", len(data))
		return data, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(source)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json, application/geo+json")

	timeout := fetchTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if err := a.Client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusOK:
	case code >= 400 && code < 500:
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("fetch %s: status %d", source, code), ErrTypeFormat, nil)
	default:
		return nil, fmt.Errorf("fetch %s: status %d", source, code)
	}

	body := append([]byte(nil), resp.Body()...)
	logger.Info("fetched import source", "url", source, "bytes", len(body))
	return body, nil
}

// DecodeDocument turns fetched bytes into a JSON map document with an id.
func (a *ImportActivities) DecodeDocument(ctx context.Context, in DecodeInput) (DecodedDocument, error) {
	var raw map[string]any

	switch strings.ToLower(in.Format) {
	case "", "json":
		if err := json.Unmarshal(in.Data, &raw); err != nil {
			return DecodedDocument{}, temporal.NewNonRetryableApplicationError("document is not a JSON object", ErrTypeFormat, err)
		}
		if raw == nil {
			return DecodedDocument{}, temporal.NewNonRetryableApplicationError("document is not a JSON object", ErrTypeFormat, nil)
		}
	case "geojson":
		name := in.Name
		if name == "" {
			name = "Imported map"
		}
		st, err := mapstore.FromGeoJSON(a.Maps.Validator(), in.Data, name)
		if err != nil {
			return DecodedDocument{}, nonRetryable(err)
		}
		data, err := st.Serialize()
		if err != nil {
			return DecodedDocument{}, err
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return DecodedDocument{}, err
		}
	default:
		return DecodedDocument{}, temporal.NewNonRetryableApplicationError("unknown format "+in.Format, ErrTypeFormat, nil)
	}

	id := in.MapID
	if id == "" {
		id, _ = raw["id"].(string)
	}
	if id == "" {
		id = uuid.NewString()
	}
	raw["id"] = id

	points := 0
	if data, ok := raw["data"].([]any); ok {
		points = len(data)
	}

	out, err := domain.EncodeJSON(raw, "")
	if err != nil {
		return DecodedDocument{}, fmt.Errorf("encode document: %w", err)
	}
	return DecodedDocument{ID: id, Points: points, Data: out}, nil
}

// ValidateDocument runs shape and backend validation without storing anything.
func (a *ImportActivities) ValidateDocument(ctx context.Context, doc []byte) (domain.ValidationResult, error) {
	var raw any
	if err := json.Unmarshal(doc, &raw); err != nil {
		return domain.ValidationResult{}, temporal.NewNonRetryableApplicationError("document is not JSON", ErrTypeFormat, err)
	}
	return a.Maps.Validate(ctx, raw), nil
}

// SnapshotMap returns the current serialized map, or nil when it does not exist yet.
func (a *ImportActivities) SnapshotMap(ctx context.Context, id string) ([]byte, error) {
	data, err := a.Maps.Serialize(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot map %s: %w", id, err)
	}
	return data, nil
}

// ImportDocument stores doc, replacing any map with the same id.
func (a *ImportActivities) ImportDocument(ctx context.Context, doc []byte) (domain.MapInfo, error) {
	var raw any
	if err := json.Unmarshal(doc, &raw); err != nil {
		return domain.MapInfo{}, temporal.NewNonRetryableApplicationError("document is not JSON", ErrTypeFormat, err)
	}
	info, err := a.Maps.Import(ctx, raw)
	if err != nil {
		return domain.MapInfo{}, nonRetryable(err)
	}
	activity.GetLogger(ctx).Info("map imported", "map_id", info.ID)
	return info, nil
}

// VerifyImport re-reads the stored map and checks its point count.
func (a *ImportActivities) VerifyImport(ctx context.Context, id string, points int) error {
	stored, err := a.Maps.Points(ctx, id)
	if err != nil {
		return fmt.Errorf("verify map %s: %w", id, err)
	}
	if len(stored) != points {
		return fmt.Errorf("verify map %s: stored %d points, expected %d", id, len(stored), points)
	}
	return nil
}

// nonRetryable marks validation and format failures so Temporal stops retrying them.
func nonRetryable(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeValidation, err)
	case errors.Is(err, domain.ErrFormat):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeFormat, err)
	default:
		return err
	}
}
