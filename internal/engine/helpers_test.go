package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loto-rfid-backend/config"
	"loto-rfid-backend/internal/db"
	"loto-rfid-backend/internal/dispatch"
	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
	"loto-rfid-backend/internal/topics"
)

const testModule = "LOTO-RFID-V1-A01"

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type published struct {
	Topic   string
	Payload []byte
}

// recordingPublisher captures every publish in order.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, published{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (r *recordingPublisher) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Topic)
	}
	return out
}

func (r *recordingPublisher) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

type fixture struct {
	db    *gorm.DB
	store store.Store
	clock *clock.Mock
	proc  *Processor
	pub   *recordingPublisher
	out   *StatusPublisher
	svc   *Service

	bay   model.Bay
	alice model.Principal
	bob   model.Principal
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

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

	f := &fixture{
		db:    gormDB,
		store: store.NewGormStore(gormDB),
		clock: clock.NewMock(),
		pub:   &recordingPublisher{},
	}
	f.clock.Set(t0)
	f.proc = NewProcessor(f.store, f.clock, topics.New(config.DefaultTopicPrefix), policy, zap.NewNop())
	f.out = NewStatusPublisher(f.pub, zap.NewNop())
	f.svc = NewService(f.proc, f.out, 0, zap.NewNop())

	f.bay = model.Bay{Name: "Bay 1", ModuleLotoCode: testModule}
	require.NoError(t, gormDB.Create(&f.bay).Error)

	f.alice = f.principal(t, "Alice", "Smith", "CARD-ALICE", "LOTO-ALICE")
	f.bob = f.principal(t, "Bob", "Jones", "CARD-BOB", "LOTO-BOB")

	spare := model.Tag{Code: "LOTO-SPARE", Category: model.TagCategoryLoto}
	require.NoError(t, gormDB.Create(&spare).Error)
	return f
}

func (f *fixture) principal(t *testing.T, name, lastname, card, loto string) model.Principal {
	t.Helper()
	p := model.Principal{Name: name, Lastname: lastname}
	require.NoError(t, f.db.Create(&p).Error)
	for code, category := range map[string]model.TagCategory{card: model.TagCategoryCard, loto: model.TagCategoryLoto} {
		tag := model.Tag{Code: code, Category: category, PrincipalID: &p.ID}
		require.NoError(t, f.db.Create(&tag).Error)
	}
	return p
}

// tags runs one TAGS event through the service, as a lane would.
func (f *fixture) tags(t *testing.T, body string) {
	t.Helper()
	f.svc.Handle(context.Background(), dispatchTags(testModule, body))
}

func (f *fixture) sessions(t *testing.T) []model.MaintenanceSession {
	t.Helper()
	var out []model.MaintenanceSession
	require.NoError(t, f.db.Where("bay_id = ?", f.bay.ID).Order("id").Find(&out).Error)
	return out
}

func (f *fixture) attendance(t *testing.T) []model.AttendanceRecord {
	t.Helper()
	var out []model.AttendanceRecord
	require.NoError(t, f.db.Order("id").Find(&out).Error)
	return out
}

func (f *fixture) alerts(t *testing.T) []model.AlertRecord {
	t.Helper()
	var out []model.AlertRecord
	require.NoError(t, f.db.Order("id").Find(&out).Error)
	return out
}

func (f *fixture) reloadBay(t *testing.T) model.Bay {
	t.Helper()
	var bay model.Bay
	require.NoError(t, f.db.First(&bay, f.bay.ID).Error)
	return bay
}

func dispatchTags(moduleCode, body string) dispatch.Message {
	return dispatch.Message{
		ID:         uuid.NewString(),
		ModuleCode: moduleCode,
		Kind:       topics.KindTags,
		Topic:      topics.New(config.DefaultTopicPrefix).Topic(moduleCode, topics.KindTags),
		Payload:    []byte(body),
		ReceivedAt: time.Now(),
	}
}

// tagsBody builds a TAGS body for testModule.
func tagsBody(card, loto []string) string {
	p := TagsPayload{ModuleLotoCode: testModule, Tags: &TagSet{Card: []TagRead{}, Loto: []TagRead{}}}
	for _, c := range card {
		p.Tags.Card = append(p.Tags.Card, TagRead{TagCode: c, Timestamp: "2026-03-02T08:00:00Z"})
	}
	for _, c := range loto {
		p.Tags.Loto = append(p.Tags.Loto, TagRead{TagCode: c, Timestamp: "2026-03-02T08:00:00Z"})
	}
	body, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return string(body)
}

func decodeStatus(t *testing.T, payload []byte) StatusPayload {
	t.Helper()
	var s StatusPayload
	require.NoError(t, json.Unmarshal(payload, &s))
	return s
}

func decodeUsers(t *testing.T, payload []byte) UsersPayload {
	t.Helper()
	var u UsersPayload
	require.NoError(t, json.Unmarshal(payload, &u))
	return u
}
