package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectd/internal/vfs"
	"github.com/dshills/projectd/internal/watcher"
)

var (
	_ Host = (*FSHost)(nil)
	_ Host = (*MemHost)(nil)
)

func TestSubscription_Matches(t *testing.T) {
	file := Subscription{Target: "/p/tsconfig.json"}
	assert.True(t, file.Matches("/p/tsconfig.json"))
	assert.False(t, file.Matches("/p/tsconfig.json.bak"))

	flat := Subscription{Target: "/p", Directory: true}
	assert.True(t, flat.Matches("/p/a.ts"))
	assert.False(t, flat.Matches("/p/sub/a.ts"))
	assert.False(t, flat.Matches("/p"))
	assert.False(t, flat.Matches("/pa/a.ts"))

	deep := Subscription{Target: "/p", Directory: true, Recursive: true}
	assert.True(t, deep.Matches("/p/a.ts"))
	assert.True(t, deep.Matches("/p/sub/a.ts"))
	assert.False(t, deep.Matches("/pa/a.ts"))

	root := Subscription{Target: "/", Directory: true, Recursive: true}
	assert.True(t, root.Matches("/a.ts"))
}

func TestQueue_DispatchAndNext(t *testing.T) {
	q := NewQueue()
	sub := Subscription{ID: uuid.New(), Target: "/p", Directory: true, Delivery: Delivery{Owner: 7, Tag: "dir"}}
	q.Register(sub)

	assert.Equal(t, 1, q.Dispatch("/p/a.ts", watcher.OpWrite))
	assert.Equal(t, 0, q.Dispatch("/other/a.ts", watcher.OpWrite))

	ev, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/p/a.ts", ev.Path)
	assert.Equal(t, uint64(7), ev.Subscription.Delivery.Owner)
	assert.Equal(t, "dir", ev.Subscription.Delivery.Tag)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ReleaseDropsPending(t *testing.T) {
	q := NewQueue()
	a := Subscription{ID: uuid.New(), Target: "/p/a.ts"}
	b := Subscription{ID: uuid.New(), Target: "/p/b.ts"}
	q.Register(a)
	q.Register(b)

	q.Dispatch("/p/a.ts", watcher.OpWrite)
	q.Dispatch("/p/b.ts", watcher.OpWrite)
	q.Dispatch("/p/a.ts", watcher.OpRemove)
	require.Equal(t, 3, q.Len())

	assert.True(t, q.Release(a.ID))
	assert.False(t, q.Release(a.ID))
	assert.False(t, q.Live(a.ID))

	ev, ok := q.TryNext()
	require.True(t, ok)
	assert.Equal(t, b.ID, ev.Subscription.ID)
	_, ok = q.TryNext()
	assert.False(t, ok)

	assert.False(t, q.Push(Event{Subscription: a, Path: "/p/a.ts"}))
	assert.True(t, q.Push(Event{Subscription: b, Path: "/p/b.ts"}))
}

func TestQueue_NextHonorsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseWakesReaders(t *testing.T) {
	q := NewQueue()
	done := make(chan error, 1)
	go func() {
		_, err := q.Next(context.Background())
		done <- err
	}()

	q.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
	assert.Equal(t, 0, q.Dispatch("/p", watcher.OpWrite))
}

func TestQueue_NextWakesOnDispatch(t *testing.T) {
	q := NewQueue()
	sub := Subscription{ID: uuid.New(), Target: "/p/a.ts"}
	q.Register(sub)

	got := make(chan Event, 1)
	go func() {
		ev, err := q.Next(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Dispatch("/p/a.ts", watcher.OpCreate)

	select {
	case ev := <-got:
		assert.Equal(t, watcher.OpCreate, ev.Op)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake")
	}
}

func TestMemHost_CloseCountsAndReleases(t *testing.T) {
	h := NewMemHost(nil)
	handle := h.WatchDirectory("/p", true, Delivery{Owner: 1, Tag: "root"})
	subs := h.Subscriptions()
	require.Len(t, subs, 1)
	id := subs[0].ID

	assert.Equal(t, 1, h.Fire("/p/x/y.ts", watcher.OpCreate))
	require.NoError(t, handle.Close())
	assert.Equal(t, 1, h.CloseCount(id))
	assert.Empty(t, h.Live())
	assert.Equal(t, 0, h.Queue().Len())
	assert.Equal(t, 0, h.Fire("/p/x/y.ts", watcher.OpCreate))
}

func TestMemHost_WriteFile(t *testing.T) {
	h := NewMemHost(nil)
	require.NoError(t, h.WriteFile("/out/a.txt", []byte("hi")))
	assert.Equal(t, 1, h.Writes("/out/a.txt"))

	data, err := h.FS().ReadFile("/out/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestFSHost_DeliversFileEvents(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "tsconfig.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := watcher.NewFSNotifyWatcher(logger)
	require.NoError(t, err)

	h := NewFSHost(vfs.NewOSFS(), w, logger)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	handle := h.WatchFile(target, Delivery{Owner: 3, Tag: "config"})
	defer handle.Close()

	require.NoError(t, os.WriteFile(target, []byte(`{"files":[]}`), 0o644))

	nextCtx, nextCancel := context.WithTimeout(ctx, 2*time.Second)
	defer nextCancel()
	ev, err := h.Queue().Next(nextCtx)
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(target), ev.Path)
	assert.Equal(t, "config", ev.Subscription.Delivery.Tag)
}

func TestFSHost_MissingDirectoryStillReturnsHandle(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	w, err := watcher.NewFSNotifyWatcher(logger)
	require.NoError(t, err)

	h := NewFSHost(vfs.NewOSFS(), w, logger)
	defer h.Close()

	missing := filepath.Join(t.TempDir(), "missing")
	handle := h.WatchDirectory(missing, true, Delivery{Owner: 1})
	require.NotNil(t, handle)

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "watch directory failed", record["msg"])
	assert.Equal(t, filepath.ToSlash(missing), record["path"])
	assert.Equal(t, true, record["recursive"])
	assert.IsType(t, "", record["error"])

	assert.Len(t, h.Queue().Subscriptions(), 1)
	assert.NoError(t, handle.Close())
	assert.NoError(t, handle.Close())
	assert.Empty(t, h.Queue().Subscriptions())
}
