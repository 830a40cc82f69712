package experiment

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"quickcart-search/internal/ranking"
)

var assignNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return assignNow }

func fullRollout(id string, variants ...Variant) Experiment {
	return Experiment{ID: id, Active: true, Allocation: 100, Variants: variants}
}

func TestAssignStable(t *testing.T) {
	exp := fullRollout("ranking_v2",
		Variant{ID: "control", Split: 50},
		Variant{ID: "treatment", Split: 50},
	)
	a := NewAssigner([]Experiment{exp}, nil, fixedNow)

	first, ok := a.Assign("sess-42", exp)
	if !ok {
		t.Fatal("allocation 100 with full splits must always assign")
	}
	for i := 0; i < 100; i++ {
		again, ok := a.Assign("sess-42", exp)
		if !ok || again != first {
			t.Fatalf("assignment flapped: %q then %q", first, again)
		}
	}
}

func TestAssignTrafficFairness(t *testing.T) {
	exp := Experiment{
		ID: "ranking_v2", Active: true, Allocation: 50,
		Variants: []Variant{
			{ID: "control", Split: 50},
			{ID: "treatment", Split: 50},
		},
	}
	a := NewAssigner([]Experiment{exp}, nil, fixedNow)

	const sessions = 100000
	included := 0
	variants := map[string]int{}
	for i := 0; i < sessions; i++ {
		if v, ok := a.Assign(fmt.Sprintf("sess-%d", i), exp); ok {
			included++
			variants[v]++
		}
	}

	// Allocation 50% of 100k sessions, generous 5% absolute tolerance.
	if included < 47500 || included > 52500 {
		t.Errorf("included = %d, want ~50000", included)
	}
	// Each variant gets half of the included half.
	for _, id := range []string{"control", "treatment"} {
		if n := variants[id]; n < 23750 || n > 26250 {
			t.Errorf("variant %s = %d, want ~25000", id, n)
		}
	}
}

func TestAssignOutsideDateWindow(t *testing.T) {
	past := assignNow.Add(-48 * time.Hour)
	future := assignNow.Add(48 * time.Hour)

	tests := []struct {
		name string
		exp  Experiment
		want bool
	}{
		{"inactive", Experiment{ID: "e", Active: false, Allocation: 100, Variants: []Variant{{ID: "v", Split: 100}}}, false},
		{"not started", Experiment{ID: "e", Active: true, StartAt: &future, Allocation: 100, Variants: []Variant{{ID: "v", Split: 100}}}, false},
		{"ended", Experiment{ID: "e", Active: true, EndAt: &past, Allocation: 100, Variants: []Variant{{ID: "v", Split: 100}}}, false},
		{"in window", Experiment{ID: "e", Active: true, StartAt: &past, EndAt: &future, Allocation: 100, Variants: []Variant{{ID: "v", Split: 100}}}, true},
	}
	a := NewAssigner(nil, nil, fixedNow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := a.Assign("sess-1", tt.exp); ok != tt.want {
				t.Errorf("assigned = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestAssignAllocationExtremes(t *testing.T) {
	a := NewAssigner(nil, nil, fixedNow)

	none := Experiment{ID: "none", Active: true, Allocation: 0, Variants: []Variant{{ID: "v", Split: 100}}}
	all := Experiment{ID: "all", Active: true, Allocation: 100, Variants: []Variant{{ID: "v", Split: 100}}}

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("sess-%d", i)
		if _, ok := a.Assign(key, none); ok {
			t.Fatal("allocation 0 must never assign")
		}
		if v, ok := a.Assign(key, all); !ok || v != "v" {
			t.Fatal("allocation 100 with a 100% variant must always assign")
		}
	}
}

func TestAssignSplitRemainderFallsToControl(t *testing.T) {
	// 30% of included traffic gets the variant; the remaining 70% is
	// outside the splits and stays on control (ok=false).
	exp := fullRollout("partial", Variant{ID: "treatment", Split: 30})
	a := NewAssigner(nil, nil, fixedNow)

	assigned := 0
	for i := 0; i < 100000; i++ {
		if _, ok := a.Assign(fmt.Sprintf("sess-%d", i), exp); ok {
			assigned++
		}
	}
	if assigned < 27000 || assigned > 33000 {
		t.Errorf("assigned = %d, want ~30000", assigned)
	}
}

func TestValidateRejectsOversoldSplits(t *testing.T) {
	exp := Experiment{
		ID: "oversold", Active: true, Allocation: 100,
		Variants: []Variant{{ID: "a", Split: 60}, {ID: "b", Split: 60}},
	}
	if err := exp.Validate(); err == nil {
		t.Error("splits summing past 100 must fail validation")
	}
}

func TestConfigForMergesVariantSections(t *testing.T) {
	boosts := ranking.Default().Boosts
	boosts.Name = 9

	exp := fullRollout("boost_name",
		Variant{ID: "treatment", Split: 100, Ranking: ranking.Override{Boosts: &boosts}},
	)
	a := NewAssigner([]Experiment{exp}, nil, fixedNow)

	cfg := a.ConfigFor(context.Background(), "sess-1")
	if cfg.Boosts.Name != 9 {
		t.Errorf("name boost = %v, want override 9", cfg.Boosts.Name)
	}
	// Untouched sections keep the control values.
	if cfg.Text != ranking.Default().Text {
		t.Errorf("text section changed: %+v", cfg.Text)
	}
}

func TestConfigForAnonymousSessionIsControl(t *testing.T) {
	boosts := ranking.Default().Boosts
	boosts.Name = 9
	exp := fullRollout("boost_name",
		Variant{ID: "treatment", Split: 100, Ranking: ranking.Override{Boosts: &boosts}},
	)
	a := NewAssigner([]Experiment{exp}, nil, fixedNow)

	if cfg := a.ConfigFor(context.Background(), ""); !reflect.DeepEqual(cfg, ranking.Default()) {
		t.Error("empty session key must get the control configuration")
	}
}

type fakeAssignmentCache struct {
	store map[string]map[string]string
	hits  int
}

func (f *fakeAssignmentCache) GetAssignments(_ context.Context, key string) (map[string]string, error) {
	if a, ok := f.store[key]; ok {
		f.hits++
		return a, nil
	}
	return nil, fmt.Errorf("miss")
}

func (f *fakeAssignmentCache) SetAssignments(_ context.Context, key string, a map[string]string) error {
	f.store[key] = a
	return nil
}

func TestAssignmentsCached(t *testing.T) {
	exp := fullRollout("ranking_v2", Variant{ID: "v", Split: 100})
	cache := &fakeAssignmentCache{store: map[string]map[string]string{}}
	a := NewAssigner([]Experiment{exp}, cache, fixedNow)

	first := a.Assignments(context.Background(), "sess-1")
	second := a.Assignments(context.Background(), "sess-1")

	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want the second call served from cache", cache.hits)
	}
	if first["ranking_v2"] != "v" || second["ranking_v2"] != "v" {
		t.Errorf("assignments = %v / %v", first, second)
	}
}
