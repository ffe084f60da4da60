package dreamer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"blockdreamer/db"
	"blockdreamer/types"
)

// recordingDB keeps the order in which the run path calls it.
type recordingDB struct {
	calls     []string
	createErr error
}

func (r *recordingDB) record(call string) { r.calls = append(r.calls, call) }

func (r *recordingDB) Close() error                { r.record("close"); return nil }
func (r *recordingDB) EnsureDatabaseExists() error { r.record("ensure"); return nil }
func (r *recordingDB) CreateTables() error         { r.record("create"); return r.createErr }
func (r *recordingDB) DropTables() error           { r.record("drop"); return nil }
func (r *recordingDB) Exec(string, ...any) error   { r.record("exec"); return nil }
func (r *recordingDB) InsertSlotReports([]*types.SlotReportRow) error {
	r.record("insert")
	return nil
}
func (r *recordingDB) InsertFetchResults([]*types.FetchResultRow) error {
	r.record("insert")
	return nil
}
func (r *recordingDB) InsertDistances([]*types.DistanceRow) error {
	r.record("insert")
	return nil
}
func (r *recordingDB) QueryLastSlot() (uint64, bool, error) {
	r.record("last")
	return 41, true, nil
}

func testClock(t *testing.T) *SlotClock {
	t.Helper()
	clock, err := NewSlotClock(time.Now().Add(-time.Hour), 12)
	if err != nil {
		t.Fatalf("NewSlotClock failed: %v", err)
	}
	return clock
}

func TestOpenClickhouseBootstrapsFirst(t *testing.T) {
	rec := &recordingDB{}
	ch, err := openClickhouse(func() (db.Database, error) { return rec, nil }, testClock(t))
	if err != nil {
		t.Fatalf("openClickhouse failed: %v", err)
	}
	if ch != rec {
		t.Fatal("expected the opened database")
	}
	if got := strings.Join(rec.calls, ","); got != "ensure,create,last" {
		t.Errorf("unexpected call order: %s", got)
	}
}

func TestOpenClickhouseSetupFailure(t *testing.T) {
	rec := &recordingDB{createErr: errors.New("readonly user")}
	ch, err := openClickhouse(func() (db.Database, error) { return rec, nil }, testClock(t))
	if err == nil || !strings.Contains(err.Error(), "readonly user") {
		t.Fatalf("expected setup error, got %v", err)
	}
	if ch != nil {
		t.Error("no database must be returned on failure")
	}
	if got := strings.Join(rec.calls, ","); got != "ensure,create,close" {
		t.Errorf("unexpected call order: %s", got)
	}

	_, err = openClickhouse(func() (db.Database, error) { return nil, errors.New("refused") }, testClock(t))
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("expected connect error, got %v", err)
	}
}
