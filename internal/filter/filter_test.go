package filter

import (
	"testing"
	"time"

	"github.com/virga-tools/virga/internal/core"
)

func mkSession(id, name string, typ core.SessionType, region string) core.Session {
	return core.Session{ID: id, Name: name, Type: typ, Status: core.StatusInactive, Region: region}
}

func TestZeroGroupMatchesEverything(t *testing.T) {
	g := Group{}
	if !g.IsZero() {
		t.Fatal("zero group should report IsZero")
	}
	sessions := []core.Session{
		mkSession("s1", "prod", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s2", "dev", core.TypeAzure, "eastus"),
	}
	for _, s := range sessions {
		if !g.Match(s, nil) {
			t.Errorf("zero group rejected %s", s.ID)
		}
	}
}

func TestSearchMatchesAcrossFields(t *testing.T) {
	byName := mkSession("s1", "europe-prod", core.TypeAWSIAMUser, "us-east-1")
	byRegion := mkSession("s2", "backend", core.TypeAWSIAMUser, "eu-west-1")
	miss := mkSession("s3", "backend", core.TypeAWSIAMUser, "us-east-1")

	g := Group{Search: "eu-west"}
	if g.Match(byName, nil) {
		t.Error("name without the substring should not match")
	}
	if !g.Match(byRegion, nil) {
		t.Error("region substring should match")
	}
	if g.Match(miss, nil) {
		t.Error("unrelated session should not match")
	}

	// Case-insensitive over name.
	g = Group{Search: "EUROPE"}
	if !g.Match(byName, nil) {
		t.Error("search should be case-insensitive")
	}
}

func TestSearchMatchesRoleARN(t *testing.T) {
	s := mkSession("s1", "ops", core.TypeAWSIAMRoleFederated, "us-east-1")
	s.RoleARN = "arn:aws:iam::123456789012:role/Admin"

	if !(Group{Search: "role/admin"}).Match(s, nil) {
		t.Error("role ARN should be searchable")
	}
}

func TestCategoriesAreConjunctive(t *testing.T) {
	s := mkSession("s1", "prod", core.TypeAWSIAMUser, "us-east-1")

	g := Group{Providers: []core.Provider{core.ProviderAWS}, Regions: []string{"eu-west-1"}}
	if g.Match(s, nil) {
		t.Error("session must satisfy every active category")
	}

	g.Regions = []string{"us-east-1"}
	if !g.Match(s, nil) {
		t.Error("session satisfying all categories should match")
	}
}

func TestValuesWithinCategoryUnion(t *testing.T) {
	s := mkSession("s1", "prod", core.TypeAWSIAMUser, "us-west-2")

	g := Group{Regions: []string{"us-east-1", "us-west-2"}}
	if !g.Match(s, nil) {
		t.Error("any selected value within a category should match")
	}
}

func TestPinnedOnly(t *testing.T) {
	pinned := func(id string) bool { return id == "s1" }
	g := Group{PinnedOnly: true}

	if !g.Match(mkSession("s1", "a", core.TypeAWSIAMUser, "us-east-1"), pinned) {
		t.Error("pinned session should match")
	}
	if g.Match(mkSession("s2", "b", core.TypeAWSIAMUser, "us-east-1"), pinned) {
		t.Error("unpinned session should not match")
	}
	if g.Match(mkSession("s1", "a", core.TypeAWSIAMUser, "us-east-1"), nil) {
		t.Error("no pin source means nothing is pinned")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)
	a := mkSession("s1", "alpha", core.TypeAWSIAMUser, "eu-west-1")
	a.StartDateTime = &earlier
	b := mkSession("s2", "beta", core.TypeAWSIAMUser, "eu-west-1")
	b.StartDateTime = &now
	c := mkSession("s3", "gamma", core.TypeAWSIAMUser, "us-east-1")

	g := Group{Regions: []string{"eu-west-1"}}
	first := Apply([]core.Session{a, b, c}, g, SortState{}, nil, nil)
	second := Apply(first, g, SortState{}, nil, nil)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 visible both times, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d changed between applications: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestApplyHoistsPinnedStably(t *testing.T) {
	sessions := []core.Session{
		mkSession("s1", "delta", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s2", "alpha", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s3", "charlie", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s4", "bravo", core.TypeAWSIAMUser, "us-east-1"),
	}
	pinned := func(id string) bool { return id == "s3" || id == "s1" }

	st := SortState{Column: ColumnName, Direction: DirectionAsc}
	got := Apply(sessions, Group{}, st, pinned, nil)

	// Pinned come first, each group keeping name order.
	want := []string{"s3", "s1", "s2", "s4"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}
