package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// RestoreSnapshot puts a previously serialized map back (saga compensation).
func (a *ImportActivities) RestoreSnapshot(ctx context.Context, snapshot []byte) error {
	info, err := a.ImportDocument(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	activity.GetLogger(ctx).Info("map restored from snapshot", "map_id", info.ID)
	return nil
}

// DeleteMap removes a map created by a failed import (saga compensation).
func (a *ImportActivities) DeleteMap(ctx context.Context, id string) error {
	err := a.Maps.Delete(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete map %s: %w", id, err)
	}
	activity.GetLogger(ctx).Info("imported map deleted", "map_id", id)
	return nil
}

// compensate undoes ImportDocument: the previous version is restored, or the
// new map is deleted when there was none.
func compensate(ctx workflow.Context, id string, snapshot []byte) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	})
	if len(snapshot) > 0 {
		return workflow.ExecuteActivity(ctx, "RestoreSnapshot", snapshot).Get(ctx, nil)
	}
	return workflow.ExecuteActivity(ctx, "DeleteMap", id).Get(ctx, nil)
}
