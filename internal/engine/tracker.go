package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
)

// Tracker keeps each bay's module connectivity current.
type Tracker struct {
	log *zap.Logger
}

// ConnectivityFor maps a normalized heartbeat status to a connectivity
// value. Anything unrecognised counts as offline.
func ConnectivityFor(status string) model.Connectivity {
	switch strings.ToLower(status) {
	case "online":
		return model.ConnectivityOnline
	case "error":
		return model.ConnectivityError
	default:
		return model.ConnectivityOffline
	}
}

// MarkConnectivity sets the connectivity of the bay wired to moduleCode.
// It returns false, without error, when no bay uses that code.
func (t Tracker) MarkConnectivity(ctx context.Context, st store.Store, moduleCode string, status model.Connectivity) (bool, error) {
	bay, err := st.FindBayByModuleCode(ctx, moduleCode)
	if err != nil {
		return false, err
	}
	if bay == nil {
		t.log.Debug("connectivity for unmapped module ignored",
			zap.String("module_code", moduleCode),
			zap.String("status", string(status)))
		return false, nil
	}
	return true, t.mark(ctx, st, bay, status)
}

func (t Tracker) mark(ctx context.Context, st store.Store, bay *model.Bay, status model.Connectivity) error {
	if bay.ModuleLotoStatus == status {
		return nil
	}
	if err := st.SetBayConnectivity(ctx, bay.ID, status); err != nil {
		return err
	}
	t.log.Info("bay connectivity changed",
		zap.String("module_code", bay.ModuleLotoCode),
		zap.String("from", string(bay.ModuleLotoStatus)),
		zap.String("to", string(status)))
	bay.ModuleLotoStatus = status
	return nil
}
