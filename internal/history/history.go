// Package history records what a user watched. Recording is asynchronous
// and never fails a resolution.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MediaTV is the only media type sora resolves.
const MediaTV = "tv"

// Entry is one watched episode.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	MediaType string    `json:"mediaType"`
	MediaID   int       `json:"mediaId"`
	Route     string    `json:"route"`
	Provider  string    `json:"provider,omitempty"`
	NativeID  string    `json:"nativeId,omitempty"`
	Season    int       `json:"season"`
	Episode   int       `json:"episode"`
	Title     string    `json:"title"`
	Overview  string    `json:"overview,omitempty"`
	Poster    string    `json:"poster,omitempty"`
	Duration  int       `json:"duration"` // seconds
	WatchedAt time.Time `json:"watchedAt"`
}

// Sink persists or forwards entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Dispatcher hands entries to a Sink in the background.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil sink drops every entry.
func NewDispatcher(sink Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sink:    sink,
		logger:  logger.Named("history"),
		timeout: 10 * time.Second,
		now:     time.Now,
	}
}

// SetTimeout bounds each background write.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Dispatch stamps the entry with an id and time when missing and records it
// on its own goroutine. It returns immediately.
func (d *Dispatcher) Dispatch(entry Entry) {
	if d == nil || d.sink == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.WatchedAt.IsZero() {
		entry.WatchedAt = d.now().UTC()
	}
	if entry.MediaType == "" {
		entry.MediaType = MediaTV
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sink.Record(ctx, entry); err != nil {
			d.logger.Warn("failed to record history",
				zap.String("id", entry.ID),
				zap.String("user_id", entry.UserID),
				zap.Int("media_id", entry.MediaID),
				zap.Error(err))
			return
		}
		d.logger.Debug("history recorded",
			zap.String("id", entry.ID),
			zap.String("route", entry.Route))
	}()
}

// Wait blocks until every dispatched entry has been handled.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
