package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alptraumtech/lms/pkg/logger"
	"github.com/alptraumtech/lms/pkg/metrics"
)

// Event is one tag read from the RFID reader.
type Event struct {
	UID  string
	Time time.Time
}

// OpenFunc dials the reader device. Implementations typically wrap a serial
// port or a TCP-attached reader.
type OpenFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Listener reads newline-delimited tag UIDs from an RFID reader and fans
// them out on a channel. Transient device failures trigger bounded
// reconnects with a fixed backoff.
type Listener struct {
	open         OpenFunc
	events       chan Event
	maxReconnect int
	backoff      time.Duration
	log          *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewListener constructs a Listener. maxReconnect bounds consecutive failed
// opens before the listener gives up; zero means a single attempt.
func NewListener(open OpenFunc, maxReconnect int, backoff time.Duration) (*Listener, error) {
	if open == nil {
		return nil, errors.New("scanner: open function is required")
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Listener{
		open:         open,
		events:       make(chan Event, 16),
		maxReconnect: maxReconnect,
		backoff:      backoff,
		log:          logger.WithModule("scanner"),
	}, nil
}

// Events returns the channel tag reads are delivered on. The channel closes
// when the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// Start launches the background read loop. It is an error to start a
// listener twice.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("scanner: listener already started")
	}
	l.started = true

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx)
	return nil
}

// Stop terminates the read loop and waits for it to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.events)
	defer close(l.done)

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		device, err := l.open(ctx)
		if err != nil {
			failures++
			l.log.Warn("open rfid reader failed",
				zap.Int("attempt", failures),
				zap.Error(err))
			if failures > l.maxReconnect {
				l.log.Error("rfid reader unavailable, giving up")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.backoff):
			}
			continue
		}

		failures = 0

		// Close the device when the context ends so a blocked read returns.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = device.Close()
			case <-readDone:
			}
		}()

		l.readFrom(ctx, device)
		close(readDone)
		_ = device.Close()

		if ctx.Err() != nil {
			return
		}
		failures++
		if failures > l.maxReconnect {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) readFrom(ctx context.Context, device io.Reader) {
	scanner := bufio.NewScanner(device)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		uid := strings.TrimSpace(scanner.Text())
		if uid == "" {
			continue
		}

		metrics.ScanEvents.WithLabelValues("rfid").Inc()
		select {
		case l.events <- Event{UID: uid, Time: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		l.log.Warn("rfid read error", zap.Error(err))
	}
}
