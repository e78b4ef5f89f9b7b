package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/infra/telegram"
)

type senderStub struct {
	mu    sync.Mutex
	texts []string
	dests []telegram.Destination
	err   error
}

func (s *senderStub) SendText(_ context.Context, dest telegram.Destination, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.dests = append(s.dests, dest)
	return s.err
}

func (s *senderStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func TestNotifierDeliversQueuedMessages(t *testing.T) {
	sender := &senderStub{}
	n := New(sender, "-300", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)

	n.Notify(ctx, "перше")
	n.Notify(ctx, "друге")

	deadline := time.Now().Add(2 * time.Second)
	for sender.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	n.Wait()

	if sender.count() != 2 {
		t.Fatalf("expected 2 notifications, got %d", sender.count())
	}
	if sender.dests[0].ChatID != -300 || sender.texts[0] != "перше" {
		t.Fatalf("unexpected first notification: %v %q", sender.dests[0], sender.texts[0])
	}
}

func TestNotifierDrainsOnShutdown(t *testing.T) {
	sender := &senderStub{}
	n := New(sender, "@admins", nil)

	n.Notify(context.Background(), "before run")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)

	if sender.count() != 1 {
		t.Fatalf("queued notification must be drained, got %d", sender.count())
	}

	n.Notify(context.Background(), "after close")
	if sender.count() != 1 {
		t.Fatalf("closed notifier must drop new notifications")
	}
}

func TestNotifierNeverBlocks(t *testing.T) {
	n := New(&senderStub{err: errors.New("forbidden")}, "-1", nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*3; i++ {
			n.Notify(context.Background(), "spam")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("notify blocked without a running worker")
	}
}

func TestNotifierDisabledWithoutDestination(t *testing.T) {
	sender := &senderStub{}
	for _, dest := range []string{"", "bad handle"} {
		n := New(sender, dest, nil)
		if n.Enabled() {
			t.Fatalf("notifier must be disabled for %q", dest)
		}
		n.Notify(context.Background(), "text")
	}
	if sender.count() != 0 {
		t.Fatalf("disabled notifier must not send")
	}
}
