package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
	"loto-rfid-backend/internal/topics"
)

// Processor turns inbound events into state transitions and outbound
// intents. It never talks to the transport itself.
type Processor struct {
	store  store.Store
	clock  clock.Clock
	layout topics.Layout
	log    *zap.Logger

	correlator Correlator
	tracker    Tracker
	sessions   *SessionManager
	alerts     AlertRecorder
	heartbeat  HeartbeatHandler
}

// NewProcessor wires the engine components around a store.
func NewProcessor(st store.Store, clk clock.Clock, layout topics.Layout, sessionPolicy string, log *zap.Logger) *Processor {
	log = log.Named("engine")
	tracker := Tracker{log: log}
	return &Processor{
		store:     st,
		clock:     clk,
		layout:    layout,
		log:       log,
		tracker:   tracker,
		sessions:  NewSessionManager(sessionPolicy, log),
		alerts:    AlertRecorder{log: log},
		heartbeat: HeartbeatHandler{tracker: tracker},
	}
}

// TagsResult is everything one TAGS event produced. Bay is nil when the
// module code maps to no bay.
type TagsResult struct {
	ModuleCode     string
	Bay            *model.Bay
	Reconciliation Reconciliation
	Violators      []model.Principal
	Alerts         []model.AlertRecord
	Intents        []Intent
}

// ProcessTags applies a TAGS body received on topicCode's topic. A module
// code in the body must match topicCode, so every event for a bay stays on
// that bay's lane. All store work runs in one transaction.
func (p *Processor) ProcessTags(ctx context.Context, topicCode string, body []byte) (*TagsResult, error) {
	payload, err := DecodeTags(body)
	if err != nil {
		return nil, err
	}

	code := topicCode
	if named := payload.ModuleLotoCode; named != "" {
		if code != "" && named != code {
			return nil, fmt.Errorf("%w: body names %q on the topic of %q", ErrModuleMismatch, named, code)
		}
		code = named
	}
	if code == "" {
		return nil, fmt.Errorf("%w: no module code", ErrMalformedPayload)
	}

	now := p.clock.Now().UTC()
	res := &TagsResult{ModuleCode: code}
	var (
		status StatusPayload
		users  *UsersPayload
	)

	err = p.store.Transaction(ctx, func(tx store.Store) error {
		bay, err := tx.FindBayByModuleCode(ctx, code)
		if err != nil {
			return err
		}
		if bay == nil {
			status = ErrorStatus(code)
			return nil
		}
		res.Bay = bay

		if err := p.tracker.mark(ctx, tx, bay, model.ConnectivityOnline); err != nil {
			return err
		}

		cardCodes, lotoCodes := payload.CardCodes(), payload.LotoCodes()
		cardResolved, err := p.correlator.Resolve(ctx, tx, cardCodes, model.TagCategoryCard)
		if err != nil {
			return err
		}
		lotoResolved, err := p.correlator.Resolve(ctx, tx, lotoCodes, model.TagCategoryLoto)
		if err != nil {
			return err
		}
		info, err := p.correlator.Describe(ctx, tx, mergeCodes(cardCodes, lotoCodes))
		if err != nil {
			return err
		}
		users = &UsersPayload{
			ModuleLotoCode: code,
			Timestamp:      now.Format(time.RFC3339),
			TagsInfo:       info,
		}

		card, loto := principalsOf(cardResolved), principalsOf(lotoResolved)
		if res.Reconciliation, err = p.sessions.Reconcile(ctx, tx, bay, card, loto, now); err != nil {
			return err
		}

		res.Violators = DetectViolators(card, loto)
		if res.Alerts, err = p.alerts.Record(ctx, tx, res.Violators, bay, now); err != nil {
			return err
		}
		status = ViolationStatus(code, res.Violators)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("process tags of %s: %w", code, err)
	}

	if len(res.Violators) > 0 {
		metrics.ViolationsDetected.Add(float64(len(res.Violators)))
	}
	if users != nil {
		res.Intents = append(res.Intents, Intent{
			Kind:       topics.KindUsers,
			ModuleCode: code,
			Topic:      p.layout.Users(code),
			Payload:    *users,
		})
	}
	res.Intents = append(res.Intents, Intent{
		Kind:       topics.KindStatus,
		ModuleCode: code,
		Topic:      p.layout.Status(code),
		Payload:    status,
	})
	return res, nil
}

// ProcessHeartbeat applies an LWT or ONLINE body to the bay wired to
// moduleCode. It reports whether a bay was found.
func (p *Processor) ProcessHeartbeat(ctx context.Context, moduleCode string, kind topics.Kind, body []byte) (bool, error) {
	if !kind.Heartbeat() {
		return false, fmt.Errorf("%w: %s is not a heartbeat", topics.ErrUnknownTopic, kind)
	}
	return p.heartbeat.Handle(ctx, p.store, moduleCode, HeartbeatText(kind, body))
}
