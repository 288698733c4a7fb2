package model

import "time"

// AlertType names a category of safety alert.
type AlertType struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:128;not null"`
}

// AlertRecord is a persisted safety alert. It always belongs to a session;
// the attendance link is best-effort context and may be nil.
type AlertRecord struct {
	ID           int64     `gorm:"primaryKey"`
	SessionID    int64     `gorm:"not null;index"`
	AttendanceID *int64    `gorm:"index"`
	AlertTypeID  int64     `gorm:"not null;index"`
	PrincipalID  int64     `gorm:"not null;index"`
	AlertTime    time.Time `gorm:"not null"`
	Resolved     bool      `gorm:"not null;default:false"`
	ResolvedAt   *time.Time

	// Associations
	Session    MaintenanceSession `gorm:"constraint:OnDelete:CASCADE"`
	Attendance *AttendanceRecord  `gorm:"constraint:OnDelete:SET NULL"`
	AlertType  AlertType
}
