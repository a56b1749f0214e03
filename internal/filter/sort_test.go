package filter

import (
	"testing"
	"time"

	"github.com/virga-tools/virga/internal/core"
)

func TestToggleCyclesThreeWays(t *testing.T) {
	var st SortState

	st = st.Toggle(ColumnName)
	if st.Column != ColumnName || st.Direction != DirectionAsc {
		t.Fatalf("first toggle: expected name/asc, got %v/%v", st.Column, st.Direction)
	}

	st = st.Toggle(ColumnName)
	if st.Direction != DirectionDesc {
		t.Fatalf("second toggle: expected desc, got %v", st.Direction)
	}

	st = st.Toggle(ColumnName)
	if st != (SortState{}) {
		t.Fatalf("third toggle should reset to the default order, got %v/%v", st.Column, st.Direction)
	}
}

func TestToggleDifferentColumnResets(t *testing.T) {
	st := SortState{Column: ColumnName, Direction: DirectionDesc}
	st = st.Toggle(ColumnRegion)
	if st.Column != ColumnRegion || st.Direction != DirectionAsc {
		t.Errorf("switching column should start ascending, got %v/%v", st.Column, st.Direction)
	}
}

func TestDefaultOrderStartTimeDesc(t *testing.T) {
	now := time.Now().UTC()
	older := now.Add(-2 * time.Hour)

	recent := mkSession("s1", "recent", core.TypeAWSIAMUser, "us-east-1")
	recent.StartDateTime = &now
	old := mkSession("s2", "old", core.TypeAWSIAMUser, "us-east-1")
	old.StartDateTime = &older
	never := mkSession("s3", "never", core.TypeAWSIAMUser, "us-east-1")

	sessions := []core.Session{never, old, recent}
	(SortState{}).Sort(sessions, nil)

	want := []string{"s1", "s2", "s3"}
	for i, id := range want {
		if sessions[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, sessions[i].ID)
		}
	}
}

func TestSortByProfileUsesDisplayName(t *testing.T) {
	a := mkSession("s1", "a", core.TypeAWSIAMUser, "us-east-1")
	a.ProfileID = "p-zeta"
	b := mkSession("s2", "b", core.TypeAWSIAMUser, "us-east-1")
	b.ProfileID = "p-alpha"

	names := map[string]string{"p-zeta": "admin", "p-alpha": "zulu"}
	sessions := []core.Session{a, b}
	(SortState{Column: ColumnProfile, Direction: DirectionAsc}).Sort(sessions, names)

	// "admin" sorts before "zulu" even though the raw ids order the other way.
	if sessions[0].ID != "s1" {
		t.Errorf("expected profile names to drive the order, got %s first", sessions[0].ID)
	}
}

func TestSortIsStable(t *testing.T) {
	sessions := []core.Session{
		mkSession("s1", "same", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s2", "same", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s3", "same", core.TypeAWSIAMUser, "us-east-1"),
	}
	(SortState{Column: ColumnName, Direction: DirectionAsc}).Sort(sessions, nil)

	for i, id := range []string{"s1", "s2", "s3"} {
		if sessions[i].ID != id {
			t.Fatalf("equal keys must keep their order, position %d got %s", i, sessions[i].ID)
		}
	}
}

func TestSortDescInvertsAsc(t *testing.T) {
	sessions := []core.Session{
		mkSession("s1", "alpha", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s2", "bravo", core.TypeAWSIAMUser, "us-east-1"),
	}
	(SortState{Column: ColumnName, Direction: DirectionDesc}).Sort(sessions, nil)
	if sessions[0].ID != "s2" {
		t.Errorf("expected bravo first in descending order, got %s", sessions[0].Name)
	}
}
