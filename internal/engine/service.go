package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"loto-rfid-backend/internal/dispatch"
	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/topics"
)

// Service is the lane handler: it runs the processor for one message and
// hands the resulting intents to the status publisher.
type Service struct {
	proc    *Processor
	out     *StatusPublisher
	timeout time.Duration
	log     *zap.Logger
}

// NewService creates a Service. timeout bounds the work done for one
// message; zero means no bound.
func NewService(proc *Processor, out *StatusPublisher, timeout time.Duration, log *zap.Logger) *Service {
	return &Service{proc: proc, out: out, timeout: timeout, log: log.Named("service")}
}

// Handle processes msg. Failures are logged and the message dropped.
func (s *Service) Handle(ctx context.Context, msg dispatch.Message) {
	log := s.log.With(
		zap.String("message_id", msg.ID),
		zap.String("module_code", msg.ModuleCode),
		zap.String("kind", string(msg.Kind)))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	switch {
	case msg.Kind == topics.KindTags:
		res, err := s.proc.ProcessTags(ctx, msg.ModuleCode, msg.Payload)
		if err != nil {
			s.drop(log, err)
			return
		}
		if res.Bay == nil {
			log.Warn("tags from module with no bay")
		}
		s.out.Deliver(ctx, res.Intents)

	case msg.Kind.Heartbeat():
		if _, err := s.proc.ProcessHeartbeat(ctx, msg.ModuleCode, msg.Kind, msg.Payload); err != nil {
			s.drop(log, err)
		}

	default:
		metrics.MessagesDropped.WithLabelValues("unknown_kind").Inc()
		log.Warn("message kind not handled")
	}
}

func (s *Service) drop(log *zap.Logger, err error) {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		log.Warn("dropping malformed message", zap.Error(err))
		return
	case errors.Is(err, ErrModuleMismatch):
		metrics.MessagesDropped.WithLabelValues("mismatch").Inc()
		log.Warn("dropping message for another module", zap.Error(err))
		return
	}
	metrics.MessagesDropped.WithLabelValues("store").Inc()
	log.Error("dropping message after processing failure", zap.Error(err))
}
