package store

import "loto-rfid-backend/internal/model"

// ResolvedPrincipal pairs a registered principal with the tag code that
// identified them in an event.
type ResolvedPrincipal struct {
	Principal model.Principal
	TagCode   string
}

// TagInfo describes one tag code read by a module, registered or not.
type TagInfo struct {
	TagCode      string  `json:"tag_code"`
	Type         *string `json:"type"`
	UserName     *string `json:"user_name"`
	UserLastname *string `json:"user_lastname"`
	Registered   bool    `json:"registered"`
}

// BayOverview is the live state of a bay as stored.
type BayOverview struct {
	Bay           model.Bay
	ActiveSession *model.MaintenanceSession
	OpenAttendees []model.AttendanceRecord
}
