package workers

import (
	"context"
	"fmt"
	"sync"

	logpkg "github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/queue"
	"go.uber.org/zap"
)

// EventProcessor handles one task event
type EventProcessor func(ctx context.Context, event *queue.TaskEvent) error

// Auditor consumes task change events and writes one audit entry per event.
// Extra processors can be registered per event type.
type Auditor struct {
	logger     *zap.Logger
	processors map[queue.EventType][]EventProcessor

	mu     sync.Mutex
	counts map[queue.EventType]int64
}

// NewAuditor creates an auditor that logs every known task event type
func NewAuditor(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Auditor{
		logger:     logger,
		processors: make(map[queue.EventType][]EventProcessor),
		counts:     make(map[queue.EventType]int64),
	}
	for _, typ := range queue.EventTypes {
		a.RegisterProcessor(typ, a.audit)
	}
	return a
}

// RegisterProcessor adds proc to the chain for typ
func (a *Auditor) RegisterProcessor(typ queue.EventType, proc EventProcessor) {
	a.processors[typ] = append(a.processors[typ], proc)
}

// Counts returns how many events of each type were acknowledged
func (a *Auditor) Counts() map[queue.EventType]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[queue.EventType]int64, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

func (a *Auditor) audit(_ context.Context, event *queue.TaskEvent) error {
	ids := make([]string, 0, len(event.TaskIDs))
	for _, id := range event.TaskIDs {
		ids = append(ids, id.String())
	}
	a.logger.Info("task_event_received",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("tool", event.Tool),
		zap.String("session_id", logpkg.SanitizeSessionID(event.SessionID)),
		zap.Int64("count", event.Count),
		zap.Strings("task_ids", ids),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// ProcessMessage runs the processors for one message. Unknown event types and
// processor failures are nacked without requeue so they land in the DLQ.
func (a *Auditor) ProcessMessage(ctx context.Context, msg queue.MessageInterface) error {
	event := msg.GetEvent()
	if event == nil {
		a.nack(msg, "", "missing_event")
		return fmt.Errorf("%w: empty message", queue.ErrInvalidEvent)
	}

	procs, ok := a.processors[event.Type]
	if !ok {
		a.nack(msg, event.ID.String(), "unknown_event_type")
		return fmt.Errorf("%w: unknown type %q", queue.ErrInvalidEvent, event.Type)
	}

	for _, proc := range procs {
		if err := proc(ctx, event); err != nil {
			a.logger.Error("task_event_processing_failed",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.Type)),
				zap.String("error", logpkg.SanitizeError(err)),
			)
			a.nack(msg, event.ID.String(), "processor_failed")
			return fmt.Errorf("failed to process task event: %w", err)
		}
	}

	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack task event: %w", err)
	}
	a.mu.Lock()
	a.counts[event.Type]++
	a.mu.Unlock()
	return nil
}

func (a *Auditor) nack(msg queue.MessageInterface, eventID, reason string) {
	if err := msg.Nack(false); err != nil {
		a.logger.Warn("failed_to_nack_task_event",
			zap.String("event_id", eventID),
			zap.String("reason", reason),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
}

// Run processes messages until ctx is cancelled or the message channel
// closes. Queue errors are logged and do not stop the loop.
func (a *Auditor) Run(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.logger.Error("queue_error", zap.String("error", logpkg.SanitizeError(err)))
		case msg, ok := <-msgs:
			if !ok {
				a.logger.Info("message_channel_closed")
				return
			}
			if err := a.ProcessMessage(ctx, msg); err != nil {
				a.logger.Warn("task_event_rejected", zap.Error(err))
			}
		}
	}
}
