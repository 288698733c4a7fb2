package model

import "time"

// Connectivity is the last known link state of a bay's reader module.
type Connectivity string

const (
	ConnectivityOnline  Connectivity = "online"
	ConnectivityOffline Connectivity = "offline"
	ConnectivityError   Connectivity = "error"
)

// Bay represents a maintenance work area monitored by one reader module.
type Bay struct {
	ID               int64        `gorm:"primaryKey"`
	Name             string       `gorm:"size:128;not null"`
	ModuleLotoCode   string       `gorm:"uniqueIndex;size:128;not null"`
	ModuleLotoStatus Connectivity `gorm:"size:16;not null;default:offline"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`

	// Associations
	Sessions []MaintenanceSession `gorm:"foreignKey:BayID"`
}
