package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/inzira/inzira-go/internal/domain"
	"github.com/inzira/inzira-go/internal/repository"
)

// Recorder appends audit entries to the store off the request path. Record
// never blocks and never fails the operation it accompanies: when the buffer
// is full or the store write fails, the entry is logged and dropped.
type Recorder struct {
	store  repository.Store
	logger *slog.Logger
	ch     chan domain.AuditEntry
}

func NewRecorder(store repository.Store, logger *slog.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}

	return &Recorder{
		store:  store,
		logger: logger,
		ch:     make(chan domain.AuditEntry, buffer),
	}
}

// Record enqueues an audit entry. Fire-and-forget.
func (r *Recorder) Record(actorID int64, action, targetType, targetID, details string) {
	e := domain.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	select {
	case r.ch <- e:
	default:
		r.logger.Error("audit buffer full, entry dropped",
			"action", action, "target_type", targetType, "target_id", targetID)
	}
}

// Run drains the buffer until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case e := <-r.ch:
			r.append(e)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case e := <-r.ch:
			r.append(e)
		default:
			return
		}
	}
}

func (r *Recorder) append(e domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.AppendAudit(ctx, &e); err != nil {
		r.logger.Error("audit write failed",
			"error", err, "action", e.Action, "target_id", e.TargetID)
	}
}
