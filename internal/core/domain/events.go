package domain

import "time"

// MapEventType names a change to a persisted map.
type MapEventType string

const (
	MapCreated     MapEventType = "created"
	MapInfoUpdated MapEventType = "info_updated"
	MapDeleted     MapEventType = "deleted"
	MapImported    MapEventType = "imported"
	PointAdded     MapEventType = "point_added"
	PointUpdated   MapEventType = "point_updated"
	PointRemoved   MapEventType = "point_removed"
)

// MapEvent is broadcast after a map mutation has been committed.
type MapEvent struct {
	Type       MapEventType `json:"type"`
	MapID      string       `json:"map_id"`
	PointIndex *int         `json:"point_index,omitempty"`
	Points     int          `json:"points"`
	Source     string       `json:"source"`
	OccurredAt time.Time    `json:"occurred_at"`
}
