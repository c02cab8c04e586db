package connectors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
)

const calendarTimeLayout = "2006-01-02T15:04:05.000Z"

// A missed refresh blinds the macro safety gate for up to a day, so
// calendar fetches retry. The advisory client does not.
const (
	calendarRetryAttempts   = 3
	calendarRetryBaseDelay  = 1 * time.Second
	calendarRetryMaxBackoff = 2 * time.Second
)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// CalendarClient fetches scheduled macro events from the economic calendar
// feed.
type CalendarClient struct {
	http      *resty.Client
	countries []string
}

func NewCalendarClient() *CalendarClient {
	cfg := GetConfig()

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.CalendarBaseURL, "/")).
		SetTimeout(cfg.CalendarTimeout).
		SetRetryCount(calendarRetryAttempts - 1).
		SetRetryWaitTime(calendarRetryBaseDelay).
		SetRetryMaxWaitTime(calendarRetryMaxBackoff).
		AddRetryCondition(isRetryableResp).
		SetHeader("accept", "application/json").
		SetHeader("accept-language", "en-GB,en;q=0.9").
		SetHeader("origin", "https://www.tradingview.com").
		SetHeader("referer", "https://www.tradingview.com/").
		SetHeader("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")

	return &CalendarClient{
		http:      httpClient,
		countries: splitCountries(cfg.CalendarCountries),
	}
}

// FetchHighImpact returns the high-impact events scheduled in [from, to],
// oldest first.
func (c *CalendarClient) FetchHighImpact(ctx context.Context, from, to time.Time) ([]model.EconomicEvent, error) {
	var decoded model.CalendarResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("from", from.UTC().Format(calendarTimeLayout)).
		SetQueryParam("to", to.UTC().Format(calendarTimeLayout)).
		SetQueryParam("countries", strings.Join(c.countries, ",")).
		SetResult(&decoded).
		Get("/events")
	if err != nil {
		return nil, fmt.Errorf("calendar request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("calendar status %d: %s", resp.StatusCode(), truncateBody(resp.String()))
	}

	if decoded.Status != "" && decoded.Status != "ok" {
		return nil, fmt.Errorf("unexpected calendar status field: %q", decoded.Status)
	}

	events := make([]model.EconomicEvent, 0, len(decoded.Result))
	for _, raw := range decoded.Result {
		if raw.Importance < model.ImpactHigh {
			continue
		}
		events = append(events, raw.ToEconomicEvent())
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })

	logger.WithFields(map[string]interface{}{
		"total":       len(decoded.Result),
		"high_impact": len(events),
	}).Info("Fetched economic calendar events")
	return events, nil
}

func splitCountries(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"US"}
	}
	return out
}
