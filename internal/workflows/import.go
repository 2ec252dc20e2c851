package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// ImportInput is the input for the import workflow.
type ImportInput struct {
	Source string // http(s) URL or file path
	Format string // "json" or "geojson"
	MapID  string // optional id override
	Name   string // map name for GeoJSON sources
}

// ImportResult is returned by a successful import.
type ImportResult struct {
	Map      domain.MapInfo
	Points   int
	Replaced bool
}

// ImportWorkflow fetches a map document, validates it, stores it and verifies
// the stored copy. If verification fails the store is rolled back to the
// previous version of the map (saga compensation).
func ImportWorkflow(ctx workflow.Context, input ImportInput) (ImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting import workflow", "source", input.Source, "format", input.Format)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeValidation, ErrTypeFormat},
		},
	})

	// Step 1: Fetch and decode
	var raw []byte
	if err := workflow.ExecuteActivity(ctx, "FetchDocument", input.Source).Get(ctx, &raw); err != nil {
		return ImportResult{}, err
	}
	var doc DecodedDocument
	decode := DecodeInput{Data: raw, Format: input.Format, MapID: input.MapID, Name: input.Name}
	if err := workflow.ExecuteActivity(ctx, "DecodeDocument", decode).Get(ctx, &doc); err != nil {
		return ImportResult{}, err
	}

	// Step 2: Validate before touching the store
	var res domain.ValidationResult
	if err := workflow.ExecuteActivity(ctx, "ValidateDocument", doc.Data).Get(ctx, &res); err != nil {
		return ImportResult{}, err
	}
	if !res.Valid {
		logger.Warn("document failed validation", "errors", len(res.Errors))
		return ImportResult{}, temporal.NewNonRetryableApplicationError("document failed validation", ErrTypeValidation, nil, res.Errors)
	}

	// Step 3: Snapshot, import, verify
	var snapshot []byte
	if err := workflow.ExecuteActivity(ctx, "SnapshotMap", doc.ID).Get(ctx, &snapshot); err != nil {
		return ImportResult{}, err
	}

	var info domain.MapInfo
	if err := workflow.ExecuteActivity(ctx, "ImportDocument", doc.Data).Get(ctx, &info); err != nil {
		return ImportResult{}, err
	}

	if err := workflow.ExecuteActivity(ctx, "VerifyImport", doc.ID, doc.Points).Get(ctx, nil); err != nil {
		logger.Warn("import verification failed, compensating", "error", err)
		if cerr := compensate(ctx, doc.ID, snapshot); cerr != nil {
			logger.Error("compensation failed", "error", cerr)
		}
		return ImportResult{}, err
	}

	logger.Info("Import completed", "map_id", info.ID, "points", doc.Points)
	return ImportResult{Map: info, Points: doc.Points, Replaced: len(snapshot) > 0}, nil
}
