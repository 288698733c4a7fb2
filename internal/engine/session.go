package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loto-rfid-backend/config"
	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
)

// Reconciliation is the outcome of applying one event to a bay's session.
type Reconciliation struct {
	// Session is the session the event was applied to, nil when none was
	// active and none was opened.
	Session *model.MaintenanceSession
	Opened  bool
	Closed  bool
	Entered []int64
	Exited  []int64
}

// SessionManager owns the active-session lifecycle of each bay and the
// attendance of LOTO holders inside it.
type SessionManager struct {
	openOnCard bool
	newName    func() string
	log        *zap.Logger
}

// NewSessionManager builds a manager for the given open policy, one of
// config.PolicyCardOrLockout or config.PolicyLockoutOnly.
func NewSessionManager(policy string, log *zap.Logger) *SessionManager {
	return &SessionManager{
		openOnCard: policy != config.PolicyLockoutOnly,
		newName:    newSessionName,
		log:        log,
	}
}

func newSessionName() string {
	return "MT-" + strings.ToUpper(uuid.NewString()[:8])
}

func (m *SessionManager) shouldOpen(card, loto []model.Principal) bool {
	if len(loto) > 0 {
		return true
	}
	return m.openOnCard && len(card) > 0
}

// Reconcile compares the LOTO holders of one event with the open attendance
// of the bay's active session and applies the difference. A session with no
// LOTO holders left is finished in the same pass.
func (m *SessionManager) Reconcile(ctx context.Context, st store.Store, bay *model.Bay, card, loto []model.Principal, now time.Time) (Reconciliation, error) {
	var r Reconciliation

	session, err := st.ActiveSession(ctx, bay.ID)
	if err != nil {
		return r, err
	}
	if session == nil {
		if !m.shouldOpen(card, loto) {
			return r, nil
		}
		session = &model.MaintenanceSession{
			BayID:     bay.ID,
			Name:      m.newName(),
			StartTime: now,
			Status:    model.SessionActive,
		}
		if err := st.CreateSession(ctx, session); err != nil {
			return r, err
		}
		r.Opened = true
		metrics.SessionsOpened.Inc()
		m.log.Info("maintenance session opened",
			zap.String("module_code", bay.ModuleLotoCode),
			zap.String("session", session.Name),
			zap.Int("lockouts", len(loto)),
			zap.Int("cards", len(card)))
	}
	r.Session = session

	open, err := st.OpenAttendances(ctx, session.ID)
	if err != nil {
		return r, err
	}
	openBy := make(map[int64]model.AttendanceRecord, len(open))
	for _, rec := range open {
		openBy[rec.PrincipalID] = rec
	}
	present := make(map[int64]struct{}, len(loto))

	for _, p := range loto {
		present[p.ID] = struct{}{}
		if _, ok := openBy[p.ID]; ok {
			continue
		}
		rec := &model.AttendanceRecord{SessionID: session.ID, PrincipalID: p.ID, EntryTime: now}
		if err := st.CreateAttendance(ctx, rec); err != nil {
			return r, err
		}
		openBy[p.ID] = *rec
		r.Entered = append(r.Entered, p.ID)
	}

	for _, rec := range open {
		if _, ok := present[rec.PrincipalID]; ok {
			continue
		}
		if err := st.CloseAttendance(ctx, rec.ID, now); err != nil {
			return r, err
		}
		r.Exited = append(r.Exited, rec.PrincipalID)
	}

	if len(loto) == 0 {
		if err := st.FinishSession(ctx, session.ID, now); err != nil {
			return r, err
		}
		end := now
		session.EndTime = &end
		session.Status = model.SessionFinished
		r.Closed = true
		metrics.SessionsClosed.Inc()
		m.log.Info("maintenance session finished",
			zap.String("module_code", bay.ModuleLotoCode),
			zap.String("session", session.Name),
			zap.Duration("duration", now.Sub(session.StartTime)))
	}

	if len(r.Entered) > 0 || len(r.Exited) > 0 {
		m.log.Debug("attendance reconciled",
			zap.String("session", session.Name),
			zap.Int64s("entered", r.Entered),
			zap.Int64s("exited", r.Exited))
	}
	return r, nil
}
