package engine

import (
	"bytes"
	"context"
	"strings"

	"github.com/goccy/go-json"

	"loto-rfid-backend/internal/store"
	"loto-rfid-backend/internal/topics"
)

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

// HeartbeatText extracts the status text of a heartbeat body. ONLINE
// messages may carry a JSON object whose status field defaults to online;
// anything else is taken as plain text.
func HeartbeatText(kind topics.Kind, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if kind == topics.KindOnline && bytes.HasPrefix(trimmed, []byte("{")) {
		var p OnlinePayload
		if err := json.Unmarshal(trimmed, &p); err == nil {
			if p.Status == nil {
				return "online"
			}
			return *p.Status
		}
	}
	return string(trimmed)
}

// NormalizeHeartbeat strips quoting and whitespace and lower-cases raw.
func NormalizeHeartbeat(raw string) string {
	return strings.ToLower(strings.TrimSpace(quoteStripper.Replace(strings.TrimSpace(raw))))
}

// HeartbeatHandler applies connectivity signals independently of tag flow.
type HeartbeatHandler struct {
	tracker Tracker
}

// Handle normalizes rawStatus and records it on the bay wired to
// moduleCode. Unmapped modules are ignored and report false.
func (h HeartbeatHandler) Handle(ctx context.Context, st store.Store, moduleCode, rawStatus string) (bool, error) {
	status := ConnectivityFor(NormalizeHeartbeat(rawStatus))
	return h.tracker.MarkConnectivity(ctx, st, moduleCode, status)
}
