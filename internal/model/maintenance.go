package model

import "time"

// SessionStatus is the lifecycle state of a maintenance session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionFinished SessionStatus = "finished"
)

// MaintenanceSession is a bounded interval during which a bay is under
// maintenance. At most one active session exists per bay.
type MaintenanceSession struct {
	ID        int64         `gorm:"primaryKey"`
	BayID     int64         `gorm:"not null;index;uniqueIndex:uq_active_session_per_bay,where:status = 'active'"`
	Name      string        `gorm:"uniqueIndex;size:32;not null"`
	StartTime time.Time     `gorm:"not null"`
	EndTime   *time.Time
	Status    SessionStatus `gorm:"size:16;not null;index"`

	// Associations
	Bay         Bay                `gorm:"constraint:OnDelete:CASCADE"`
	Attendances []AttendanceRecord `gorm:"foreignKey:SessionID"`
}

// IsActive reports whether the session is still open.
func (s MaintenanceSession) IsActive() bool {
	return s.Status == SessionActive
}

// AttendanceRecord is a principal's entry/exit interval within a session,
// driven by the presence of their LOTO tag. A nil ExitTime means open.
type AttendanceRecord struct {
	ID          int64     `gorm:"primaryKey"`
	SessionID   int64     `gorm:"not null;index;uniqueIndex:uq_open_attendance,priority:1,where:exit_time IS NULL"`
	PrincipalID int64     `gorm:"not null;index;uniqueIndex:uq_open_attendance,priority:2,where:exit_time IS NULL"`
	EntryTime   time.Time `gorm:"not null"`
	ExitTime    *time.Time

	// Associations
	Session   MaintenanceSession `gorm:"constraint:OnDelete:CASCADE"`
	Principal Principal          `gorm:"constraint:OnDelete:CASCADE"`
}

// IsOpen reports whether the principal is still inside the session.
func (a AttendanceRecord) IsOpen() bool {
	return a.ExitTime == nil
}
