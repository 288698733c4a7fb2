package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"loto-rfid-backend/internal/store"
)

// ErrMalformedPayload marks an inbound body that cannot be decoded. Such
// messages are dropped without a status reply.
var ErrMalformedPayload = errors.New("malformed payload")

// ErrModuleMismatch marks a TAGS body naming a module other than the one in
// its topic. Such messages are dropped.
var ErrModuleMismatch = errors.New("module code does not match topic")

// Status values understood by the field module.
const (
	StatusOK    = "ok"
	StatusAlert = "alert"
	StatusError = "error"
)

const (
	AlertCodeNoLockout    = "NO_LOTO"
	AlertTypeNoLockout    = "Ingreso sin candado"
	alertMessageNoLockout = "Ingresó sin colocar candado."
	okMessage             = "Todos los trabajadores con candado validado."
	unmappedBayMessage    = "module_loto_code no asignado a ninguna bahía"
)

// TagRead is one tag seen by the reader.
type TagRead struct {
	TagCode   string `json:"tag_code"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TagSet groups the reads of one event by category.
type TagSet struct {
	Card []TagRead `json:"CARD"`
	Loto []TagRead `json:"LOTO"`
}

// TagsPayload is the body of a TAGS message.
type TagsPayload struct {
	ModuleLotoCode string  `json:"module_loto_code"`
	Tags           *TagSet `json:"tags"`
}

// CardCodes returns the distinct non-empty CARD codes in read order.
func (p *TagsPayload) CardCodes() []string {
	if p.Tags == nil {
		return []string{}
	}
	return distinctCodes(p.Tags.Card)
}

// LotoCodes returns the distinct non-empty LOTO codes in read order.
func (p *TagsPayload) LotoCodes() []string {
	if p.Tags == nil {
		return []string{}
	}
	return distinctCodes(p.Tags.Loto)
}

func distinctCodes(reads []TagRead) []string {
	codes := make([]string, 0, len(reads))
	seen := make(map[string]struct{}, len(reads))
	for _, r := range reads {
		code := strings.TrimSpace(r.TagCode)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// DecodeTags parses a TAGS body. The body must be a JSON object with a tags
// object; an event where nothing was read carries empty CARD and LOTO lists.
func DecodeTags(body []byte) (*TagsPayload, error) {
	var p TagsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Tags == nil {
		return nil, fmt.Errorf("%w: missing tags", ErrMalformedPayload)
	}
	return &p, nil
}

// StatusAlertItem describes one violator in an alert status.
type StatusAlertItem struct {
	AlertCode string `json:"alert_code"`
	Name      string `json:"name"`
	Lastname  string `json:"lastname"`
	Message   string `json:"message"`
}

// StatusPayload is the body of a STATUS message.
type StatusPayload struct {
	ModuleLotoCode string            `json:"module_loto_code"`
	Status         string            `json:"status"`
	Alerts         []StatusAlertItem `json:"alerts,omitempty"`
	Message        string            `json:"message,omitempty"`
}

// UsersPayload is the body of a USERS message.
type UsersPayload struct {
	ModuleLotoCode string          `json:"module_loto_code"`
	Timestamp      string          `json:"timestamp"`
	TagsInfo       []store.TagInfo `json:"tags_info"`
}

// OnlinePayload is the JSON form of an ONLINE heartbeat.
type OnlinePayload struct {
	ModuleLotoCode string  `json:"module_loto_code"`
	Status         *string `json:"status"`
}
