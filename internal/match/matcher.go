// Package match selects the postback profiles that fire for an event.
package match

import (
	"sort"

	"github.com/trafficgate/postback-gateway/internal/model"
)

// Match returns every enabled profile whose scope and filters accept the
// event, ordered by ascending priority with creation time as tie-break.
// All matching profiles fire independently: a single deposit commonly
// notifies a global analytics tracker and an offer-specific one.
func Match(e model.Event, profiles []model.PostbackProfile) []model.PostbackProfile {
	matched := make([]model.PostbackProfile, 0, len(profiles))
	for _, p := range profiles {
		if !p.Enabled {
			continue
		}
		if !p.Scope.AppliesTo(e) {
			continue
		}
		if !p.PassesFilters(e) {
			continue
		}
		matched = append(matched, p)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched
}
