package risk

import (
	"time"

	"spotpilot/src/model"
)

// Macro safety window: an event gates trading while its scheduled time
// falls within [now−2h, now+4h], so the halt starts four hours before the
// event and lasts until two hours after it.
const (
	MacroLookback  = 2 * time.Hour
	MacroLookahead = 4 * time.Hour
)

// CheckMacroWindow reports whether any stored high-impact event falls
// inside the safety window around now, boundaries inclusive. When several
// events qualify, the latest one is returned.
func CheckMacroWindow(now time.Time, events []model.EconomicEvent) (model.EconomicEvent, bool) {
	var active model.EconomicEvent
	found := false

	for _, ev := range events {
		if !ev.HighImpact() || ev.Time.IsZero() {
			continue
		}
		if ev.Time.Before(now.Add(-MacroLookback)) || ev.Time.After(now.Add(MacroLookahead)) {
			continue
		}
		if !found || ev.Time.After(active.Time) {
			active = ev
			found = true
		}
	}

	return active, found
}
