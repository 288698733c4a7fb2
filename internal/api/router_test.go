package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loto-rfid-backend/config"
	"loto-rfid-backend/internal/db"
	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
)

type staticStatus map[string]string

func (s staticStatus) LastStatus(code string) (string, bool) {
	v, ok := s[code]
	return v, ok
}

func newTestRouter(t *testing.T, broker func() error) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	r := NewRouter(Options{
		Store:  store.NewGormStore(gormDB),
		Status: staticStatus{"LOTO-RFID-V1-A01": "alert"},
		Broker: broker,
		Server: config.ServerConfig{RateLimitPerSec: 100, RateLimitBurst: 100},
		Log:    zap.NewNop(),
	})
	return r, gormDB
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetBay(t *testing.T) {
	r, gormDB := newTestRouter(t, nil)

	bay := model.Bay{Name: "Bay 1", ModuleLotoCode: "LOTO-RFID-V1-A01", ModuleLotoStatus: model.ConnectivityOnline}
	require.NoError(t, gormDB.Create(&bay).Error)
	alice := model.Principal{Name: "Alice", Lastname: "Smith"}
	require.NoError(t, gormDB.Create(&alice).Error)

	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	session := model.MaintenanceSession{BayID: bay.ID, Name: "MT-0A1B2C3D", StartTime: start, Status: model.SessionActive}
	require.NoError(t, gormDB.Create(&session).Error)
	require.NoError(t, gormDB.Create(&model.AttendanceRecord{SessionID: session.ID, PrincipalID: alice.ID, EntryTime: start}).Error)

	w := serve(r, "/api/bays/LOTO-RFID-V1-A01")
	require.Equal(t, http.StatusOK, w.Code)

	var resp bayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bay 1", resp.Name)
	assert.Equal(t, "online", resp.Connectivity)
	require.NotNil(t, resp.LastStatus)
	assert.Equal(t, "alert", *resp.LastStatus)
	require.NotNil(t, resp.ActiveSession)
	assert.Equal(t, "MT-0A1B2C3D", resp.ActiveSession.Name)
	require.Len(t, resp.ActiveSession.Attendees, 1)
	assert.Equal(t, "Alice", resp.ActiveSession.Attendees[0].Name)
	assert.Equal(t, alice.ID, resp.ActiveSession.Attendees[0].PrincipalID)
}

func TestGetBayIdle(t *testing.T) {
	r, gormDB := newTestRouter(t, nil)
	require.NoError(t, gormDB.Create(&model.Bay{Name: "Bay 2", ModuleLotoCode: "LOTO-RFID-V1-A02"}).Error)

	w := serve(r, "/api/bays/LOTO-RFID-V1-A02")
	require.Equal(t, http.StatusOK, w.Code)

	var resp bayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "offline", resp.Connectivity)
	assert.Nil(t, resp.LastStatus)
	assert.Nil(t, resp.ActiveSession)
}

func TestGetBayUnknown(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	assert.Equal(t, http.StatusNotFound, serve(r, "/api/bays/GHOST").Code)
}

func TestHealthEndpoints(t *testing.T) {
	brokerUp := false
	r, _ := newTestRouter(t, func() error {
		if brokerUp {
			return nil
		}
		return errors.New("mqtt not connected")
	})

	assert.Equal(t, http.StatusOK, serve(r, "/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, "/ready").Code)

	brokerUp = true
	assert.Equal(t, http.StatusOK, serve(r, "/ready").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := serve(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
