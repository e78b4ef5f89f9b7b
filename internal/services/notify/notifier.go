package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/infra/telegram"
)

const (
	queueSize   = 64
	sendTimeout = 10 * time.Second
)

type Sender interface {
	SendText(ctx context.Context, dest telegram.Destination, text string) error
}

// Notifier delivers best-effort messages to administrators. Notify never
// blocks; messages that do not fit the queue or fail to send are logged and
// dropped.
type Notifier struct {
	sender Sender
	dest   telegram.Destination
	logger *zap.Logger
	queue  chan string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func New(sender Sender, destination string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Notifier{
		sender: sender,
		logger: logger,
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	if strings.TrimSpace(destination) != "" {
		dest, err := telegram.ParseDestination(destination)
		if err != nil {
			logger.Warn("admin destination is invalid, notifications disabled", zap.String("destination", destination), zap.Error(err))
		} else {
			n.dest = dest
		}
	}
	return n
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil && !n.dest.IsZero()
}

func (n *Notifier) Notify(_ context.Context, text string) {
	if !n.Enabled() || strings.TrimSpace(text) == "" {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	select {
	case n.queue <- text:
	default:
		n.logger.Warn("admin notification dropped, queue is full")
	}
}

// Run sends queued notifications until ctx is done, then drains what is left.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case text := <-n.queue:
			n.send(ctx, text)
		case <-ctx.Done():
			n.mu.Lock()
			n.closed = true
			n.mu.Unlock()
			for {
				select {
				case text := <-n.queue:
					n.send(context.WithoutCancel(ctx), text)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (n *Notifier) Wait() {
	<-n.done
}

func (n *Notifier) send(ctx context.Context, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := n.sender.SendText(sendCtx, n.dest, text); err != nil {
		n.logger.Warn("admin notification failed", zap.String("destination", n.dest.String()), zap.Error(err))
	}
}
