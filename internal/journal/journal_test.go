package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/funvibe/thunkjit/internal/backend"
)

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	ctx := context.Background()

	start := time.Unix(1700000000, 0)
	for i, policy := range []string{"immediate", "interpreted", "tiered"} {
		_, err := j.Record(ctx, Run{
			At:       start.Add(time.Duration(i) * time.Minute),
			Delegate: "scale",
			Policy:   policy,
			State:    "compiled",
			Calls:    i + 1,
			Elapsed:  time.Millisecond,
			Result:   "12",
			Backends: []backend.Stats{
				{Name: "native", Compiles: 1, Invocations: int64(i + 1)},
				{Name: "tree-walk", Compiles: 0, Invocations: 0},
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].Policy != "tiered" || runs[1].Policy != "interpreted" {
		t.Errorf("Expected newest first, got %s, %s", runs[0].Policy, runs[1].Policy)
	}
	if !runs[0].At.Equal(start.Add(2 * time.Minute)) {
		t.Errorf("Expected timestamp %v, got %v", start.Add(2*time.Minute), runs[0].At)
	}
	if runs[0].Elapsed != time.Millisecond || runs[0].Calls != 3 || runs[0].Result != "12" {
		t.Errorf("unexpected run %+v", runs[0])
	}
	if len(runs[1].Backends) != 2 || runs[1].Backends[0].Invocations != 2 {
		t.Errorf("unexpected backend stats %+v", runs[1].Backends)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Record(context.Background(), Run{At: time.Now(), Delegate: "d", Policy: "tiered", State: "pending"}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	runs, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Delegate != "d" || len(runs[0].Backends) != 0 {
		t.Errorf("unexpected runs after reopen %+v", runs)
	}
}

func TestRecentEmpty(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	runs, err := j.Recent(context.Background(), 5)
	if err != nil || runs != nil {
		t.Errorf("Expected no runs, got %v (%v)", runs, err)
	}
}
