package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/samirrijal/metamap/internal/core/domain"
)

func TestDataPoint_UnmarshalExactKeys(t *testing.T) {
	in := `{"addreſs":"   ","address":"Plaza Nueva","NAME":"Other","name":"Pintxos","intro":"bar",
		"center":{"lat":43.26,"lng":-2.93},"WebLink":"nope","rating":4.5}`

	var p domain.DataPoint
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Name != "Pintxos" || p.Address != "Plaza Nueva" || p.WebLink != "" {
		t.Errorf("declared fields taken from folded keys: %+v", p)
	}
	for _, k := range []string{"addreſs", "NAME", "WebLink", "rating"} {
		if _, ok := p.Extra[k]; !ok {
			t.Errorf("expected %q in Extra, got %v", k, p.Extra)
		}
	}
}

func TestDataPoint_FoldedKeyOnly(t *testing.T) {
	var p domain.DataPoint
	if err := json.Unmarshal([]byte(`{"Name":"Pintxos"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Name != "" {
		t.Errorf("expected empty name, got %q", p.Name)
	}
	if p.Extra["Name"] != "Pintxos" {
		t.Errorf("expected Name kept as extra, got %v", p.Extra)
	}
}
