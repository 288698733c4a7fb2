package model

import "time"

// TagCategory distinguishes personnel credentials from lockout devices.
type TagCategory string

const (
	TagCategoryCard TagCategory = "CARD"
	TagCategoryLoto TagCategory = "LOTO"
)

// Principal is a person who may carry CARD and LOTO tags.
type Principal struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	Lastname  string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256"`
	Job       string `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Tags []Tag `gorm:"foreignKey:PrincipalID"`
}

// Tag is an RFID code registered to a principal. A code read in the field
// that has no row here is simply unregistered.
type Tag struct {
	ID          int64       `gorm:"primaryKey"`
	Code        string      `gorm:"column:tag_code;uniqueIndex;size:64;not null"`
	Category    TagCategory `gorm:"size:8;index;not null"`
	PrincipalID *int64      `gorm:"index"`
	CreatedAt   time.Time

	// Associations
	Principal *Principal `gorm:"constraint:OnDelete:SET NULL"`
}
