package engine

import (
	"context"
	"sort"

	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/store"
)

// Correlator maps raw tag codes to the principals that own them.
type Correlator struct{}

// Resolve returns the principals owning a tag of the given category among
// codes. Unregistered codes are skipped, not reported as errors.
func (Correlator) Resolve(ctx context.Context, st store.Store, codes []string, category model.TagCategory) ([]store.ResolvedPrincipal, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return st.PrincipalsByTags(ctx, codes, category)
}

// Describe lists every code with its owner, if any, for the USERS message.
func (Correlator) Describe(ctx context.Context, st store.Store, codes []string) ([]store.TagInfo, error) {
	return st.DescribeTags(ctx, codes)
}

// principalsOf flattens resolved pairs into distinct principals ordered by ID.
func principalsOf(resolved []store.ResolvedPrincipal) []model.Principal {
	seen := make(map[int64]struct{}, len(resolved))
	out := make([]model.Principal, 0, len(resolved))
	for _, r := range resolved {
		if _, dup := seen[r.Principal.ID]; dup {
			continue
		}
		seen[r.Principal.ID] = struct{}{}
		out = append(out, r.Principal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mergeCodes concatenates code lists, keeping the first occurrence of each.
func mergeCodes(lists ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, code := range list {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}
