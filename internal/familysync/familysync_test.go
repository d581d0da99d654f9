package familysync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shared-basket/internal/basket"
	"shared-basket/internal/storage"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", m.err)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func sampleDoc() Document {
	return Document{
		Items:    []basket.Item{{ID: "1", Name: "חלב", Quantity: 1}},
		Location: "הרצל 10, תל אביב",
		IsGps:    true,
	}
}

func TestRedisRemote(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	remote := &RedisRemote{store: mock}

	if _, err := remote.Pull(ctx, "fam"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}

	if err := remote.Push(ctx, "fam", sampleDoc()); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if _, ok := mock.data["basket:family:fam"]; !ok {
		t.Fatalf("expected namespaced key, got %v", mock.data)
	}

	got, err := remote.Pull(ctx, "fam")
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(got.Items) != 1 || got.Location != "הרצל 10, תל אביב" || !got.IsGps {
		t.Errorf("unexpected document %+v", got)
	}
	if err := remote.Ping(ctx); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestKVRemote(t *testing.T) {
	var mu sync.Mutex
	store := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			store[r.URL.Path] = body
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			body, ok := store[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(body)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	remote := NewKVRemote(srv.URL + "/bucket/")

	if _, err := remote.Pull(ctx, "fam 1"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if err := remote.Push(ctx, "fam 1", sampleDoc()); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if _, ok := store["/bucket/fam 1"]; !ok {
		t.Fatalf("expected document stored under the family path, got keys %v", store)
	}
	got, err := remote.Pull(ctx, "fam 1")
	if err != nil || len(got.Items) != 1 {
		t.Fatalf("unexpected pull result %+v err=%v", got, err)
	}
}

func TestKVRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	remote := NewKVRemote(srv.URL)
	if err := remote.Push(context.Background(), "f", sampleDoc()); err == nil {
		t.Error("expected push error")
	}
	if _, err := remote.Pull(context.Background(), "f"); err == nil || errors.Is(err, ErrNoDocument) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Trigger(func() {
			calls.Add(1)
			last.Store(n)
		})
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if calls.Load() != 1 {
		t.Fatalf("expected a single run, got %d", calls.Load())
	}
	if last.Load() != 5 {
		t.Errorf("expected the latest function to run, got %d", last.Load())
	}
}

func TestDebouncer_FlushAndStop(t *testing.T) {
	d := NewDebouncer(time.Hour)
	ran := false
	d.Trigger(func() { ran = true })
	if !d.Pending() {
		t.Fatal("expected pending function")
	}
	d.Flush()
	if !ran || d.Pending() {
		t.Fatalf("expected flush to run the function, ran=%v pending=%v", ran, d.Pending())
	}

	d.Trigger(func() { t.Error("stopped function must not run") })
	d.Stop()
	d.Flush()
}

type recordingRemote struct {
	mu     sync.Mutex
	pushes []Document
	doc    Document
	err    error
}

func (r *recordingRemote) Push(ctx context.Context, familyID string, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, doc)
	return r.err
}

func (r *recordingRemote) Pull(ctx context.Context, familyID string) (Document, error) {
	return r.doc, r.err
}

func (r *recordingRemote) pushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pushes)
}

type opCounter struct {
	mu  sync.Mutex
	ops map[string]int
}

func (o *opCounter) SyncOp(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops == nil {
		o.ops = map[string]int{}
	}
	key := op
	if err != nil {
		key += ":error"
	}
	o.ops[key]++
}

func newLocal(t *testing.T) storage.BlobStore {
	t.Helper()
	fs, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestFacade_LocalRoundTrip(t *testing.T) {
	f := NewFacade(Options{Local: newLocal(t)})
	ctx := context.Background()

	if _, err := f.LoadLocal(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found on fresh store, got %v", err)
	}
	if err := f.SaveLocal(ctx, []byte(`{"items":[]}`)); err != nil {
		t.Fatal(err)
	}
	got, err := f.LoadLocal(ctx)
	if err != nil || string(got) != `{"items":[]}` {
		t.Fatalf("unexpected local state %s err=%v", got, err)
	}
}

func TestFacade_DebouncedPush(t *testing.T) {
	remote := &recordingRemote{}
	obs := &opCounter{}
	f := NewFacade(Options{Local: newLocal(t), Remote: remote, Debounce: 30 * time.Millisecond, Observer: obs})

	var version atomic.Int32
	snapshot := func() Document {
		return Document{Location: fmt.Sprint(version.Load())}
	}
	for i := 1; i <= 3; i++ {
		version.Store(int32(i))
		f.SchedulePush("fam", snapshot)
	}
	time.Sleep(120 * time.Millisecond)

	if remote.pushCount() != 1 {
		t.Fatalf("expected one coalesced push, got %d", remote.pushCount())
	}
	if remote.pushes[0].Location != "3" {
		t.Errorf("expected latest state pushed, got %q", remote.pushes[0].Location)
	}
	if obs.ops["push"] != 1 {
		t.Errorf("expected push observed, got %v", obs.ops)
	}
}

func TestFacade_NoFamilyNoPush(t *testing.T) {
	remote := &recordingRemote{}
	f := NewFacade(Options{Local: newLocal(t), Remote: remote, Debounce: time.Millisecond})
	f.SchedulePush("", func() Document { return Document{} })
	f.Close()
	if remote.pushCount() != 0 {
		t.Fatal("push without family id")
	}
}

func TestFacade_CloseFlushesPendingPush(t *testing.T) {
	remote := &recordingRemote{}
	f := NewFacade(Options{Local: newLocal(t), Remote: remote, Debounce: time.Hour})
	f.SchedulePush("fam", func() Document { return sampleDoc() })
	f.Close()
	if remote.pushCount() != 1 {
		t.Fatalf("expected pending push flushed on close, got %d", remote.pushCount())
	}
}

func TestFacade_Pull(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		remote Remote
		wantOK bool
	}{
		{"NoRemote", nil, false},
		{"WithItems", &recordingRemote{doc: sampleDoc()}, true},
		{"NoItemList", &recordingRemote{doc: Document{Location: "x"}}, false},
		{"EmptyItemList", &recordingRemote{doc: Document{Items: []basket.Item{}, Location: sampleDoc().Location}}, true},
		{"Missing", &recordingRemote{err: ErrNoDocument}, false},
		{"Failure", &recordingRemote{err: errors.New("down")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFacade(Options{Local: newLocal(t), Remote: tt.remote})
			doc, ok := f.Pull(ctx, "fam")
			if ok != tt.wantOK {
				t.Fatalf("Pull ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && doc.Location != sampleDoc().Location {
				t.Errorf("unexpected document %+v", doc)
			}
			if f.Syncing() {
				t.Error("syncing flag must clear after pull")
			}
		})
	}
}
