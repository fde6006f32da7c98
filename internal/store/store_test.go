package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maemowong/perceptron/proto/perceptron"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecords() []perceptron.Record {
	return []perceptron.Record{
		{Address: 0x8c, HashIndex: 3, StartAddress: 24, Taken: true, Prediction: true, Y: 0,
			Weights: []int{-1, -1, -1, -1, -1, -1, -1, 1}},
		{Address: 0x90, HashIndex: 4, StartAddress: 32, Taken: false, Prediction: true, Y: 1,
			Weights: []int{1, 1, 1, 1, 1, 1, -1, -1}},
		{Address: 0x8c, HashIndex: 3, StartAddress: 24, Taken: true, Prediction: false, Y: -128,
			Weights: []int{-2, -2, -2, -2, -2, 0, -2, 127}},
	}
}

func TestSaveRun_GetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, Run{
		Source:    "spike_log.txt",
		Interface: "serial",
		Config:    perceptron.DefaultConfig(),
		Cycles:    1234,
	}, testRecords())
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a UUID: %v", id, err)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Source != "spike_log.txt" || run.Interface != "serial" || run.Cycles != 1234 {
		t.Errorf("run = %+v", run)
	}
	if run.Config != perceptron.DefaultConfig() {
		t.Errorf("config = %+v", run.Config)
	}
	// Counts come from the records, not the caller
	if run.Branches != 3 || run.Correct != 1 {
		t.Errorf("branches=%d correct=%d, want 3 and 1", run.Branches, run.Correct)
	}
	if time.Since(run.CreatedAt) > time.Minute {
		t.Errorf("created_at = %v", run.CreatedAt)
	}
}

func TestRecords_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := testRecords()
	id, err := s.SaveRun(ctx, Run{Source: "t", Interface: "strobe", Config: perceptron.DefaultConfig()}, want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Records(ctx, id)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if m := perceptron.Mismatch(got[i], want[i]); m != "" {
			t.Errorf("record %d: %s", i, m)
		}
		if got[i].Address != want[i].Address || got[i].Taken != want[i].Taken {
			t.Errorf("record %d: address/taken = %#x/%v", i, got[i].Address, got[i].Taken)
		}
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.Records(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Records error = %v, want ErrRunNotFound", err)
	}
	if err := s.DeleteRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("DeleteRun error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"a", "b", "c"} {
		_, err := s.SaveRun(ctx, Run{
			Source:    name,
			Interface: "serial",
			Config:    perceptron.DefaultConfig(),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}, nil)
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 || runs[0].Source != "c" || runs[2].Source != "a" {
		t.Errorf("runs = %+v", runs)
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].Source != "c" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestDeleteRun_CascadesRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, Run{Source: "t", Interface: "serial", Config: perceptron.DefaultConfig()}, testRecords())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRun(ctx, id); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE run_id = ?`, id).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d records survived run deletion", n)
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.SaveRun(ctx, Run{Source: "t", Interface: "serial", Config: perceptron.DefaultConfig()}, testRecords())
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetRun(ctx, id); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}

func TestRun_Accuracy(t *testing.T) {
	if (Run{}).Accuracy() != 0 {
		t.Error("empty run accuracy not 0")
	}
	if got := (Run{Branches: 8, Correct: 6}).Accuracy(); got != 0.75 {
		t.Errorf("Accuracy() = %v", got)
	}
}
