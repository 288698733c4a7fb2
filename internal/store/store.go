package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loto-rfid-backend/internal/model"
)

// Store defines the interface for all database operations used by the
// tag-event engine. Lookups that find nothing return a nil result and a nil
// error; only store failures are errors.
type Store interface {
	// Transaction runs fn against a Store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	FindBayByModuleCode(ctx context.Context, moduleCode string) (*model.Bay, error)
	SetBayConnectivity(ctx context.Context, bayID int64, status model.Connectivity) error

	PrincipalsByTags(ctx context.Context, codes []string, category model.TagCategory) ([]ResolvedPrincipal, error)
	DescribeTags(ctx context.Context, codes []string) ([]TagInfo, error)

	ActiveSession(ctx context.Context, bayID int64) (*model.MaintenanceSession, error)
	LatestSession(ctx context.Context, bayID int64) (*model.MaintenanceSession, error)
	CreateSession(ctx context.Context, session *model.MaintenanceSession) error
	FinishSession(ctx context.Context, sessionID int64, endTime time.Time) error

	OpenAttendances(ctx context.Context, sessionID int64) ([]model.AttendanceRecord, error)
	CreateAttendance(ctx context.Context, record *model.AttendanceRecord) error
	CloseAttendance(ctx context.Context, attendanceID int64, exitTime time.Time) error
	LatestAttendance(ctx context.Context, sessionID, principalID int64) (*model.AttendanceRecord, error)

	EnsureAlertType(ctx context.Context, name string) (*model.AlertType, error)
	CreateAlerts(ctx context.Context, alerts []model.AlertRecord) error

	BayOverview(ctx context.Context, moduleCode string) (*BayOverview, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn in a database transaction. The transaction is rolled
// back when fn returns an error.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// FindBayByModuleCode returns the bay wired to a reader module, or nil.
func (s *gormStore) FindBayByModuleCode(ctx context.Context, moduleCode string) (*model.Bay, error) {
	var bay model.Bay
	err := s.db.WithContext(ctx).Where("module_loto_code = ?", moduleCode).First(&bay).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bay for module %q: %w", moduleCode, err)
	}
	return &bay, nil
}

// SetBayConnectivity stores the module link state of a bay.
func (s *gormStore) SetBayConnectivity(ctx context.Context, bayID int64, status model.Connectivity) error {
	err := s.db.WithContext(ctx).Model(&model.Bay{}).
		Where("id = ?", bayID).
		Update("module_loto_status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update connectivity of bay %d: %w", bayID, err)
	}
	return nil
}

// PrincipalsByTags resolves the codes owned by a principal with a tag of the
// given category. A principal holding several matching tags is returned once.
func (s *gormStore) PrincipalsByTags(ctx context.Context, codes []string, category model.TagCategory) ([]ResolvedPrincipal, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var tags []model.Tag
	err := s.db.WithContext(ctx).
		Preload("Principal").
		Where("tag_code IN ? AND category = ? AND principal_id IS NOT NULL", codes, category).
		Order("tag_code").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s tags: %w", category, err)
	}

	seen := make(map[int64]struct{}, len(tags))
	resolved := make([]ResolvedPrincipal, 0, len(tags))
	for _, tag := range tags {
		if tag.Principal == nil {
			continue
		}
		if _, dup := seen[tag.Principal.ID]; dup {
			continue
		}
		seen[tag.Principal.ID] = struct{}{}
		resolved = append(resolved, ResolvedPrincipal{Principal: *tag.Principal, TagCode: tag.Code})
	}
	return resolved, nil
}

// DescribeTags lists every code with whatever the store knows about it, in
// the order given.
func (s *gormStore) DescribeTags(ctx context.Context, codes []string) ([]TagInfo, error) {
	if len(codes) == 0 {
		return []TagInfo{}, nil
	}

	var tags []model.Tag
	if err := s.db.WithContext(ctx).Preload("Principal").Where("tag_code IN ?", codes).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to describe tags: %w", err)
	}

	byCode := make(map[string]model.Tag, len(tags))
	for _, tag := range tags {
		byCode[tag.Code] = tag
	}

	infos := make([]TagInfo, 0, len(codes))
	for _, code := range codes {
		info := TagInfo{TagCode: code}
		if tag, ok := byCode[code]; ok {
			category := string(tag.Category)
			info.Type = &category
			if tag.Principal != nil {
				name, lastname := tag.Principal.Name, tag.Principal.Lastname
				info.UserName = &name
				info.UserLastname = &lastname
				info.Registered = true
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ActiveSession returns the bay's active session, or nil.
func (s *gormStore) ActiveSession(ctx context.Context, bayID int64) (*model.MaintenanceSession, error) {
	var session model.MaintenanceSession
	err := s.db.WithContext(ctx).
		Where("bay_id = ? AND status = ?", bayID, model.SessionActive).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active session of bay %d: %w", bayID, err)
	}
	return &session, nil
}

// LatestSession returns the bay's most recently created session, active or
// not, or nil.
func (s *gormStore) LatestSession(ctx context.Context, bayID int64) (*model.MaintenanceSession, error) {
	var session model.MaintenanceSession
	err := s.db.WithContext(ctx).
		Where("bay_id = ?", bayID).
		Order("id DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest session of bay %d: %w", bayID, err)
	}
	return &session, nil
}

// CreateSession inserts a new maintenance session.
func (s *gormStore) CreateSession(ctx context.Context, session *model.MaintenanceSession) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session for bay %d: %w", session.BayID, err)
	}
	return nil
}

// FinishSession marks an active session finished at endTime. Finishing an
// already finished session is a no-op.
func (s *gormStore) FinishSession(ctx context.Context, sessionID int64, endTime time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.MaintenanceSession{}).
		Where("id = ? AND status = ?", sessionID, model.SessionActive).
		Updates(map[string]any{
			"end_time": endTime,
			"status":   model.SessionFinished,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish session %d: %w", sessionID, err)
	}
	return nil
}

// OpenAttendances lists the attendance records of a session without an exit time.
func (s *gormStore) OpenAttendances(ctx context.Context, sessionID int64) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND exit_time IS NULL", sessionID).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open attendance of session %d: %w", sessionID, err)
	}
	return records, nil
}

// CreateAttendance inserts an attendance record.
func (s *gormStore) CreateAttendance(ctx context.Context, record *model.AttendanceRecord) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error; err != nil {
		return fmt.Errorf("failed to open attendance of principal %d in session %d: %w", record.PrincipalID, record.SessionID, err)
	}
	return nil
}

// CloseAttendance sets the exit time of an open attendance record.
func (s *gormStore) CloseAttendance(ctx context.Context, attendanceID int64, exitTime time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.AttendanceRecord{}).
		Where("id = ? AND exit_time IS NULL", attendanceID).
		Update("exit_time", exitTime).Error
	if err != nil {
		return fmt.Errorf("failed to close attendance %d: %w", attendanceID, err)
	}
	return nil
}

// LatestAttendance returns the principal's most recent attendance record in
// a session, open or closed, or nil.
func (s *gormStore) LatestAttendance(ctx context.Context, sessionID, principalID int64) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND principal_id = ?", sessionID, principalID).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance of principal %d in session %d: %w", principalID, sessionID, err)
	}
	return &record, nil
}

// EnsureAlertType finds the alert type with the given name, creating it if absent.
func (s *gormStore) EnsureAlertType(ctx context.Context, name string) (*model.AlertType, error) {
	var alertType model.AlertType
	if err := s.db.WithContext(ctx).Where(model.AlertType{Name: name}).FirstOrCreate(&alertType).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure alert type %q: %w", name, err)
	}
	return &alertType, nil
}

// CreateAlerts inserts alert records in one batch.
func (s *gormStore) CreateAlerts(ctx context.Context, alerts []model.AlertRecord) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&alerts).Error; err != nil {
		return fmt.Errorf("failed to create %d alerts: %w", len(alerts), err)
	}
	return nil
}

// BayOverview gathers the live state of the bay wired to moduleCode, or nil
// when no bay uses that code.
func (s *gormStore) BayOverview(ctx context.Context, moduleCode string) (*BayOverview, error) {
	bay, err := s.FindBayByModuleCode(ctx, moduleCode)
	if err != nil || bay == nil {
		return nil, err
	}

	overview := &BayOverview{Bay: *bay}
	session, err := s.ActiveSession(ctx, bay.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return overview, nil
	}
	overview.ActiveSession = session

	err = s.db.WithContext(ctx).
		Preload("Principal").
		Where("session_id = ? AND exit_time IS NULL", session.ID).
		Order("entry_time").
		Find(&overview.OpenAttendees).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendees of session %d: %w", session.ID, err)
	}
	return overview, nil
}
