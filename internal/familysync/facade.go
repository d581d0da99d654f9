package familysync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"shared-basket/internal/logger"
	"shared-basket/internal/storage"
)

// LocalBlobName is the name the full application state is saved under.
const LocalBlobName = "shopping_list_v8"

const (
	DefaultDebounce = 2 * time.Second
	remoteTimeout   = 10 * time.Second
)

// Observer is told about every remote operation.
type Observer interface {
	SyncOp(op string, err error)
}

type Options struct {
	Local storage.BlobStore
	// Remote is optional; without it only local persistence happens.
	Remote   Remote
	Debounce time.Duration
	Observer Observer
	Logger   *logger.Logger
}

// Facade persists state locally on every change and mirrors the shared part
// to the family's remote document after a quiet period. Remote failures are
// logged and never retried.
type Facade struct {
	local    storage.BlobStore
	remote   Remote
	debounce *Debouncer
	observer Observer
	log      *logger.Logger
	inflight atomic.Int32
}

func NewFacade(opts Options) *Facade {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Facade{
		local:    opts.Local,
		remote:   opts.Remote,
		debounce: NewDebouncer(opts.Debounce),
		observer: opts.Observer,
		log:      opts.Logger,
	}
}

// SaveLocal writes the serialized state synchronously.
func (f *Facade) SaveLocal(ctx context.Context, data []byte) error {
	return f.local.Save(ctx, LocalBlobName, data)
}

// LoadLocal returns the saved state or storage.ErrNotFound.
func (f *Facade) LoadLocal(ctx context.Context) ([]byte, error) {
	return f.local.Load(ctx, LocalBlobName)
}

// RemoteEnabled reports whether a remote store is configured.
func (f *Facade) RemoteEnabled() bool {
	return f.remote != nil
}

// SchedulePush arranges for snapshot() to be pushed once changes stop
// arriving for the debounce window. Bursts collapse into one push of the
// latest state. Without a family id or remote nothing is scheduled.
func (f *Facade) SchedulePush(familyID string, snapshot func() Document) {
	if f.remote == nil || familyID == "" {
		return
	}
	f.debounce.Trigger(func() {
		f.push(familyID, snapshot())
	})
}

func (f *Facade) push(familyID string, doc Document) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	ctx = f.log.WithFamilyID(ctx, familyID)

	f.inflight.Add(1)
	err := f.remote.Push(ctx, familyID, doc)
	f.inflight.Add(-1)

	f.observe("push", err)
	if err != nil {
		f.log.Warn(ctx, "sync.push_failed", err)
		return
	}
	f.log.Debug(ctx, "sync.pushed")
}

// Pull fetches the family document. It reports false when there is no
// remote, the fetch failed, or the document carries no item list. An empty
// list is still a list and replaces local items.
func (f *Facade) Pull(ctx context.Context, familyID string) (Document, bool) {
	if f.remote == nil || familyID == "" {
		return Document{}, false
	}
	ctx = f.log.WithFamilyID(ctx, familyID)

	f.inflight.Add(1)
	doc, err := f.remote.Pull(ctx, familyID)
	f.inflight.Add(-1)

	if errors.Is(err, ErrNoDocument) {
		f.observe("pull", nil)
		return Document{}, false
	}
	f.observe("pull", err)
	if err != nil {
		f.log.Warn(ctx, "sync.pull_failed", err)
		return Document{}, false
	}
	if doc.Items == nil {
		return Document{}, false
	}
	return doc, true
}

// Syncing reports whether a remote operation is in flight.
func (f *Facade) Syncing() bool {
	return f.inflight.Load() > 0
}

// PushPending reports whether a debounced push is waiting.
func (f *Facade) PushPending() bool {
	return f.debounce.Pending()
}

// Close sends any pending push immediately.
func (f *Facade) Close() {
	f.debounce.Flush()
}

func (f *Facade) observe(op string, err error) {
	if f.observer != nil {
		f.observer.SyncOp(op, err)
	}
}
