package lock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newFileLocker(t *testing.T) (*Locker, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "system_lock.json"))
	return New(store, zerolog.Nop()), store
}

// testStoreContract exercises the Store semantics every backend must share.
func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if rec, err := store.Load(ctx); err != nil || rec != nil {
		t.Fatalf("Load() on empty store = (%v, %v), want (nil, nil)", rec, err)
	}

	first := NewRecord("alice", 1200, time.Now())
	ok, err := store.Create(ctx, first)
	if err != nil || !ok {
		t.Fatalf("Create() first = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = store.Create(ctx, NewRecord("bob", 5, time.Now()))
	if err != nil || ok {
		t.Fatalf("Create() second = (%v, %v), want (false, nil)", ok, err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Load() = nil, want record")
	}
	if rec.Holder != "alice" || rec.Total != 1200 || rec.Status != StatusRunning {
		t.Errorf("Load() = %+v, want alice/1200/Running", rec)
	}
	if rec.SessionID != first.SessionID {
		t.Errorf("SessionID = %q, want %q", rec.SessionID, first.SessionID)
	}
	if rec.StartTime != first.StartTime {
		t.Errorf("StartTime = %q, want %q", rec.StartTime, first.StartTime)
	}
	if d := rec.StartedAt.Sub(first.StartedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("StartedAt = %v, want %v", rec.StartedAt, first.StartedAt)
	}

	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete() on empty store error = %v", err)
	}
	if rec, err := store.Load(ctx); err != nil || rec != nil {
		t.Fatalf("Load() after delete = (%v, %v), want (nil, nil)", rec, err)
	}

	ok, err = store.Create(ctx, NewRecord("bob", 5, time.Now()))
	if err != nil || !ok {
		t.Fatalf("Create() after delete = (%v, %v), want (true, nil)", ok, err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

// testConcurrentAcquire races many lockers over one store; exactly one may win.
func testConcurrentAcquire(t *testing.T, newLocker func() *Locker) {
	t.Helper()
	ctx := context.Background()

	const contenders = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		l := newLocker()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ok, err := l.TryAcquire(ctx, "holder", i)
			if err != nil {
				t.Errorf("TryAcquire() error = %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("winners = %d, want exactly 1", got)
	}
}

func TestFileStore_Contract(t *testing.T) {
	testStoreContract(t, NewFileStore(filepath.Join(t.TempDir(), "lock.json")))
}

func TestFileStore_ConcurrentAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.json")
	testConcurrentAcquire(t, func() *Locker {
		return New(NewFileStore(path), zerolog.Nop())
	})
}

func TestFileStore_RecordFormat(t *testing.T) {
	locker, store := newFileLocker(t)

	if ok, err := locker.TryAcquire(context.Background(), "yamada", 42); err != nil || !ok {
		t.Fatalf("TryAcquire() = (%v, %v)", ok, err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("marker is not JSON: %v", err)
	}
	if raw["user"] != "yamada" {
		t.Errorf("user = %v, want yamada", raw["user"])
	}
	if raw["total"] != float64(42) {
		t.Errorf("total = %v, want 42", raw["total"])
	}
	if raw["status"] != "Running" {
		t.Errorf("status = %v, want Running", raw["status"])
	}
	startTime, _ := raw["start_time"].(string)
	if _, err := time.Parse(StartTimeLayout, startTime); err != nil {
		t.Errorf("start_time = %q, want HH:MM:SS: %v", startTime, err)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	locker := New(NewFileStore(filepath.Join(dir, "lock.json")), zerolog.Nop())
	ctx := context.Background()

	locker.TryAcquire(ctx, "a", 1)
	locker.TryAcquire(ctx, "b", 1)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "lock.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory = %v, want only lock.json", names)
	}
}

func TestLocker_AcquireTwice(t *testing.T) {
	locker, _ := newFileLocker(t)
	ctx := context.Background()

	ok, err := locker.TryAcquire(ctx, "alice", 10)
	if err != nil || !ok {
		t.Fatalf("first TryAcquire() = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = locker.TryAcquire(ctx, "bob", 20)
	if err != nil || ok {
		t.Fatalf("second TryAcquire() = (%v, %v), want (false, nil)", ok, err)
	}

	locked, rec := locker.Status(ctx)
	if !locked || rec.Holder != "alice" || rec.Total != 10 {
		t.Errorf("Status() = (%v, %+v), want alice holding 10 items", locked, rec)
	}
}

func TestLocker_ReleaseIsIdempotent(t *testing.T) {
	locker, _ := newFileLocker(t)
	ctx := context.Background()

	if err := locker.Release(ctx); err != nil {
		t.Fatalf("Release() on unlocked = %v, want nil", err)
	}

	locker.TryAcquire(ctx, "alice", 1)
	if err := locker.Release(ctx); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if err := locker.Release(ctx); err != nil {
		t.Fatalf("second Release() = %v, want nil", err)
	}

	if locked, _ := locker.Status(ctx); locked {
		t.Error("Status() locked after release")
	}
	if ok, _ := locker.TryAcquire(ctx, "bob", 1); !ok {
		t.Error("TryAcquire() after release = false, want true")
	}
}

func TestLocker_ForceReleaseByAnyone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.json")
	owner := New(NewFileStore(path), zerolog.Nop())
	operator := New(NewFileStore(path), zerolog.Nop())
	ctx := context.Background()

	owner.TryAcquire(ctx, "crashed-user", 500)

	if err := operator.ForceRelease(ctx); err != nil {
		t.Fatalf("ForceRelease() = %v", err)
	}
	if locked, _ := owner.Status(ctx); locked {
		t.Error("lock still held after ForceRelease")
	}
	if err := operator.ForceRelease(ctx); err != nil {
		t.Errorf("ForceRelease() on unlocked = %v, want nil", err)
	}
}

func TestLocker_CorruptMarker(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{{{"},
		{name: "empty", content: ""},
		{name: "missing holder", content: `{"start_time":"10:00:00","total":3,"status":"Running"}`},
		{name: "wrong status", content: `{"user":"x","start_time":"10:00:00","total":3,"status":"Done"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker, store := newFileLocker(t)
			ctx := context.Background()

			if err := os.WriteFile(store.Path(), []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write marker: %v", err)
			}

			if _, err := store.Load(ctx); !errors.Is(err, ErrCorruptRecord) {
				t.Errorf("Load() error = %v, want ErrCorruptRecord", err)
			}

			locked, rec := locker.Status(ctx)
			if locked || rec != nil {
				t.Errorf("Status() = (%v, %v), want unlocked", locked, rec)
			}

			// The marker still exists, so creation is refused until it is cleared.
			if ok, err := locker.TryAcquire(ctx, "alice", 1); err != nil || ok {
				t.Errorf("TryAcquire() over corrupt marker = (%v, %v), want (false, nil)", ok, err)
			}

			if err := locker.ForceRelease(ctx); err != nil {
				t.Fatalf("ForceRelease() = %v", err)
			}
			if ok, err := locker.TryAcquire(ctx, "alice", 1); err != nil || !ok {
				t.Errorf("TryAcquire() after ForceRelease = (%v, %v), want (true, nil)", ok, err)
			}
		})
	}
}

func TestLocker_RequiresHolder(t *testing.T) {
	locker, _ := newFileLocker(t)

	if _, err := locker.TryAcquire(context.Background(), "", 1); err == nil {
		t.Error("TryAcquire() with empty holder should fail")
	}
}

type failingStore struct{ err error }

func (f failingStore) Create(context.Context, Record) (bool, error) { return false, f.err }
func (f failingStore) Load(context.Context) (*Record, error)        { return nil, f.err }
func (f failingStore) Delete(context.Context) error                 { return f.err }

func TestLocker_StoreErrors(t *testing.T) {
	backendErr := errors.New("backend down")
	locker := New(failingStore{err: backendErr}, zerolog.Nop())
	ctx := context.Background()

	if ok, err := locker.TryAcquire(ctx, "alice", 1); ok || !errors.Is(err, backendErr) {
		t.Errorf("TryAcquire() = (%v, %v), want (false, backend error)", ok, err)
	}
	if locked, rec := locker.Status(ctx); locked || rec != nil {
		t.Errorf("Status() = (%v, %v), want unlocked on read failure", locked, rec)
	}
	if err := locker.Release(ctx); !errors.Is(err, backendErr) {
		t.Errorf("Release() = %v, want backend error", err)
	}
}

func TestRecordString(t *testing.T) {
	rec := NewRecord("alice", 12, time.Date(2024, 1, 2, 9, 30, 5, 0, time.Local))

	if got, want := rec.String(), "in use by alice since 09:30:05 (12 items)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if rec.SessionID == "" {
		t.Error("NewRecord() should assign a session ID")
	}
}

func TestRecordAge(t *testing.T) {
	if got := (Record{}).Age(); got != 0 {
		t.Errorf("Age() of zero record = %v, want 0", got)
	}

	rec := NewRecord("alice", 1, time.Now().Add(-time.Minute))
	if got := rec.Age(); got < time.Minute || got > time.Minute+5*time.Second {
		t.Errorf("Age() = %v, want about 1m", got)
	}
}
