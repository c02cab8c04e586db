package model

import (
	"fmt"
	"strconv"
	"time"
)

// ImpactHigh is the importance level that triggers the macro safety window.
const ImpactHigh = 1

// EconomicEvent is one scheduled macro event. The full list is persisted as
// a JSON array under the calendar.events settings key and refreshed at most
// once per 24h.
type EconomicEvent struct {
	Time    time.Time `json:"time"`
	Title   string    `json:"title"`
	Country string    `json:"country"`
	Impact  int       `json:"impact"`
}

// HighImpact reports whether the event participates in the macro safety gate.
func (e EconomicEvent) HighImpact() bool {
	return e.Impact >= ImpactHigh
}

// CalendarResponse is the raw economic-calendar feed payload.
type CalendarResponse struct {
	Status string          `json:"status"`
	Result []CalendarEvent `json:"result"`
}

// CalendarEvent is the raw calendar feed event shape. Only importance and
// date are load-bearing; the rest is carried for the news digest.
type CalendarEvent struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Country    string       `json:"country"`
	Indicator  string       `json:"indicator"`
	Comment    string       `json:"comment"`
	Period     string       `json:"period"`
	Currency   string       `json:"currency"`
	Importance int          `json:"importance"`
	Date       CalendarTime `json:"date"`
}

// ToEconomicEvent converts the feed shape to the persisted shape.
func (e CalendarEvent) ToEconomicEvent() EconomicEvent {
	return EconomicEvent{
		Time:    e.Date.Time.UTC(),
		Title:   e.Title,
		Country: e.Country,
		Impact:  e.Importance,
	}
}

// CalendarTime handles the calendar feed timestamps, which arrive in more
// than one layout:
// - "2025-12-08T16:00:00.000Z"
// - "2025-11-30T00:00:00Z"
type CalendarTime struct {
	time.Time
}

func (t *CalendarTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}

	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("CalendarTime: invalid json string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	}

	var lastErr error
	for _, layout := range layouts {
		tt, e := time.Parse(layout, s)
		if e == nil {
			t.Time = tt
			return nil
		}
		lastErr = e
	}
	return fmt.Errorf("CalendarTime: parse %q: %w", s, lastErr)
}
