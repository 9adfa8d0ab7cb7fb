package outbox

import (
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Listener turns Postgres NOTIFY events on NotifyChannel into relay wakeups.
type Listener struct {
	pq     *pq.Listener
	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

// Listen opens a dedicated LISTEN connection. The relay still polls on its
// interval, so a lost notification only delays publication.
func Listen(dsn string, logger *slog.Logger) (*Listener, error) {
	l := &Listener{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	l.pq = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("outbox listener event", "event", int(ev), "error", err)
		}
	})
	if err := l.pq.Listen(NotifyChannel); err != nil {
		_ = l.pq.Close()
		return nil, err
	}
	go l.forward()
	return l, nil
}

func (l *Listener) forward() {
	for {
		select {
		case <-l.done:
			return
		case _, ok := <-l.pq.Notify:
			if !ok {
				return
			}
			// A nil notification follows a reconnect; poll anyway.
			select {
			case l.wake <- struct{}{}:
			default:
			}
		}
	}
}

// Notifications fires after a committed Add.
func (l *Listener) Notifications() <-chan struct{} { return l.wake }

func (l *Listener) Close() error {
	close(l.done)
	return l.pq.Close()
}
