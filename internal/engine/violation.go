package engine

import (
	"sort"

	"loto-rfid-backend/internal/model"
)

// DetectViolators returns the CARD holders with no LOTO tag in the same
// event, compared by principal ID and ordered by ID.
func DetectViolators(card, loto []model.Principal) []model.Principal {
	locked := make(map[int64]struct{}, len(loto))
	for _, p := range loto {
		locked[p.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(card))
	violators := make([]model.Principal, 0)
	for _, p := range card {
		if _, ok := locked[p.ID]; ok {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		violators = append(violators, p)
	}
	sort.Slice(violators, func(i, j int) bool { return violators[i].ID < violators[j].ID })
	return violators
}
