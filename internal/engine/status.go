package engine

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/topics"
)

// Publisher sends a payload to a topic. Implemented by the MQTT client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Intent is an outbound message produced by processing an event. The
// caller owning the transport decides when and how it is sent.
type Intent struct {
	Kind       topics.Kind
	ModuleCode string
	Topic      string
	Payload    any
}

// StatusPublisher sends outbound intents, holding back STATUS messages
// whose status value matches the last one sent to the same module. The
// last-sent state lives in memory only.
type StatusPublisher struct {
	pub  Publisher
	last *cache.Cache
	log  *zap.Logger
}

// NewStatusPublisher creates a publisher with an empty debounce state.
func NewStatusPublisher(pub Publisher, log *zap.Logger) *StatusPublisher {
	return &StatusPublisher{
		pub:  pub,
		last: cache.New(cache.NoExpiration, 0),
		log:  log,
	}
}

// PublishIfChanged sends status to the module's STATUS topic unless its
// status value equals the last one successfully sent there. It reports
// whether a publish happened. A failed publish leaves the state untouched
// so the next event retries.
func (p *StatusPublisher) PublishIfChanged(ctx context.Context, topic, moduleCode string, status StatusPayload) (bool, error) {
	if prev, ok := p.last.Get(moduleCode); ok && prev.(string) == status.Status {
		metrics.StatusSuppressed.Inc()
		return false, nil
	}

	if err := p.send(ctx, topic, status); err != nil {
		return false, err
	}
	p.last.Set(moduleCode, status.Status, cache.NoExpiration)
	metrics.StatusPublished.WithLabelValues(status.Status).Inc()
	return true, nil
}

// LastStatus returns the last status value sent to moduleCode.
func (p *StatusPublisher) LastStatus(moduleCode string) (string, bool) {
	v, ok := p.last.Get(moduleCode)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Deliver sends every intent in order. Failures are logged and counted,
// never returned.
func (p *StatusPublisher) Deliver(ctx context.Context, intents []Intent) {
	for _, in := range intents {
		var err error
		switch payload := in.Payload.(type) {
		case StatusPayload:
			var sent bool
			sent, err = p.PublishIfChanged(ctx, in.Topic, in.ModuleCode, payload)
			if err == nil && !sent {
				p.log.Debug("status unchanged, not published",
					zap.String("module_code", in.ModuleCode),
					zap.String("status", payload.Status))
			}
		default:
			err = p.send(ctx, in.Topic, payload)
		}
		if err != nil {
			metrics.PublishFailures.Inc()
			p.log.Error("publish failed",
				zap.String("topic", in.Topic),
				zap.String("kind", string(in.Kind)),
				zap.Error(err))
		}
	}
}

func (p *StatusPublisher) send(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", topic, err)
	}
	return p.pub.Publish(ctx, topic, body)
}

// ErrorStatus is sent when a module code maps to no bay.
func ErrorStatus(moduleCode string) StatusPayload {
	return StatusPayload{
		ModuleLotoCode: moduleCode,
		Status:         StatusError,
		Message:        unmappedBayMessage,
	}
}

// ViolationStatus reports the violators, or an ok status when there are none.
func ViolationStatus(moduleCode string, violators []model.Principal) StatusPayload {
	if len(violators) == 0 {
		return StatusPayload{
			ModuleLotoCode: moduleCode,
			Status:         StatusOK,
			Message:        okMessage,
		}
	}

	alerts := make([]StatusAlertItem, 0, len(violators))
	for _, v := range violators {
		alerts = append(alerts, StatusAlertItem{
			AlertCode: AlertCodeNoLockout,
			Name:      v.Name,
			Lastname:  v.Lastname,
			Message:   alertMessageNoLockout,
		})
	}
	return StatusPayload{
		ModuleLotoCode: moduleCode,
		Status:         StatusAlert,
		Alerts:         alerts,
	}
}
