package cache

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (w *lockedBuffer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.b.Write(p)
}

func (w *lockedBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.b.String()
}

func TestMonitorLogsTransitionAndStopsOnCancel(t *testing.T) {
	store, mr, done := newStoreTest(t)
	defer done()

	var buf lockedBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		NewMonitor(store, logger, 10*time.Millisecond).Run(ctx)
		close(stopped)
	}()

	time.Sleep(30 * time.Millisecond)
	mr.Close()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancel")
	}

	if logs := buf.String(); !strings.Contains(logs, "session store unreachable") {
		t.Fatalf("expected unreachable transition in logs, got: %s", logs)
	}
}
