package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
)

// AlertRecorder persists one alert per violator.
type AlertRecorder struct {
	log *zap.Logger
}

// Record stores an unresolved "entered without lockout" alert for every
// violator. Alerts attach to the bay's active session or, failing that, its
// most recent one; with no session at all nothing is stored.
func (a AlertRecorder) Record(ctx context.Context, st store.Store, violators []model.Principal, bay *model.Bay, now time.Time) ([]model.AlertRecord, error) {
	if len(violators) == 0 {
		return nil, nil
	}

	session, err := st.ActiveSession(ctx, bay.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		if session, err = st.LatestSession(ctx, bay.ID); err != nil {
			return nil, err
		}
	}
	if session == nil {
		a.log.Warn("violation has no session to attach to, alert not stored",
			zap.String("module_code", bay.ModuleLotoCode),
			zap.Int("violators", len(violators)))
		return nil, nil
	}

	alertType, err := st.EnsureAlertType(ctx, AlertTypeNoLockout)
	if err != nil {
		return nil, err
	}

	alerts := make([]model.AlertRecord, 0, len(violators))
	for _, v := range violators {
		rec := model.AlertRecord{
			SessionID:   session.ID,
			AlertTypeID: alertType.ID,
			PrincipalID: v.ID,
			AlertTime:   now,
		}
		attendance, err := st.LatestAttendance(ctx, session.ID, v.ID)
		if err != nil {
			return nil, err
		}
		if attendance != nil {
			id := attendance.ID
			rec.AttendanceID = &id
		}
		alerts = append(alerts, rec)
	}

	if err := st.CreateAlerts(ctx, alerts); err != nil {
		return nil, err
	}
	metrics.AlertsRecorded.Add(float64(len(alerts)))
	a.log.Info("lockout violation alerts stored",
		zap.String("module_code", bay.ModuleLotoCode),
		zap.String("session", session.Name),
		zap.Int("alerts", len(alerts)))
	return alerts, nil
}
