package stats

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestMergeBoundaryTiesCompletesTieGroup(t *testing.T) {
	// Top 2 by (score, member id); u2 ties u3 at 10 but fell outside
	// the range read.
	top := []redis.Z{
		{Member: "u1", Score: 25},
		{Member: "u3", Score: 10},
	}
	ties := []redis.Z{
		{Member: "u2", Score: 10},
		{Member: "u3", Score: 10},
	}

	merged := mergeBoundaryTies(top, ties)
	if len(merged) != 3 {
		t.Fatalf("merged %d members, want 3", len(merged))
	}
	if merged[0].Member != "u1" || merged[1].Member != "u3" {
		t.Errorf("existing order disturbed: %v, %v", merged[0].Member, merged[1].Member)
	}
	if merged[2].Member != "u2" {
		t.Errorf("missing tied member not appended, got %v", merged[2].Member)
	}
}

func TestMergeBoundaryTiesNoDuplicates(t *testing.T) {
	top := []redis.Z{{Member: "u1", Score: 10}, {Member: "u2", Score: 10}}
	merged := mergeBoundaryTies(top, top)
	if len(merged) != 2 {
		t.Errorf("merged %d members, want 2 (no duplicates)", len(merged))
	}
}
