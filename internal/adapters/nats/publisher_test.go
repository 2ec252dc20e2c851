package natsadapter_test

import (
	"testing"

	natsadapter "github.com/samirrijal/metamap/internal/adapters/nats"
	"github.com/samirrijal/metamap/internal/core/domain"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		event domain.MapEvent
		want  string
	}{
		{domain.MapEvent{MapID: "bilbao", Type: domain.PointAdded}, "maps.events.bilbao.point_added"},
		{domain.MapEvent{MapID: "f47ac10b", Type: domain.MapDeleted}, "maps.events.f47ac10b.deleted"},
	}
	for _, tt := range tests {
		if got := natsadapter.Subject(&tt.event); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}
