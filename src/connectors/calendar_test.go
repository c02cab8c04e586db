package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

const calendarFixture = `{
	"status": "ok",
	"result": [
		{"id":"1","title":"Non Farm Payrolls","country":"US","importance":1,"date":"2026-03-06T13:30:00.000Z"},
		{"id":"2","title":"Bill Auction","country":"US","importance":-1,"date":"2026-03-05T16:00:00.000Z"},
		{"id":"3","title":"CPI","country":"US","importance":1,"date":"2026-03-04T13:30:00Z"}
	]
}`

func testCalendar(baseURL string) *CalendarClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(calendarRetryAttempts - 1).
		SetRetryWaitTime(time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Millisecond).
		AddRetryCondition(isRetryableResp)

	return &CalendarClient{
		http:      httpClient,
		countries: []string{"US"},
	}
}

func TestCalendarFetchHighImpact(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = map[string]string{
			"from":      r.URL.Query().Get("from"),
			"to":        r.URL.Query().Get("to"),
			"countries": r.URL.Query().Get("countries"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(calendarFixture))
	}))
	defer server.Close()

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	events, err := testCalendar(server.URL).FetchHighImpact(context.Background(), from, to)
	if err != nil {
		t.Fatalf("FetchHighImpact returned %v", err)
	}

	// Only the two high-impact events survive, oldest first.
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	if events[0].Title != "CPI" || events[1].Title != "Non Farm Payrolls" {
		t.Fatalf("order = %q, %q", events[0].Title, events[1].Title)
	}
	if want := time.Date(2026, 3, 6, 13, 30, 0, 0, time.UTC); !events[1].Time.Equal(want) {
		t.Fatalf("time = %v, want %v", events[1].Time, want)
	}

	if gotQuery["from"] != "2026-03-01T00:00:00.000Z" || gotQuery["countries"] != "US" {
		t.Fatalf("query = %+v", gotQuery)
	}
}

func TestCalendarFetchRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(calendarFixture))
	}))
	defer server.Close()

	events, err := testCalendar(server.URL).FetchHighImpact(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("FetchHighImpact returned %v after retry", err)
	}
	if attempts != 2 || len(events) != 2 {
		t.Fatalf("attempts = %d events = %d", attempts, len(events))
	}
}

func TestCalendarFetchGivesUpEventually(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := testCalendar(server.URL).FetchHighImpact(context.Background(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestCalendarRejectsBadStatusField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","result":[]}`))
	}))
	defer server.Close()

	if _, err := testCalendar(server.URL).FetchHighImpact(context.Background(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatal("expected error on status field")
	}
}

func TestSplitCountries(t *testing.T) {
	if got := splitCountries("us, eu ,"); len(got) != 2 || got[0] != "US" || got[1] != "EU" {
		t.Fatalf("splitCountries = %v", got)
	}
	if got := splitCountries(""); len(got) != 1 || got[0] != "US" {
		t.Fatalf("fallback = %v", got)
	}
}

func TestIsRetryableResp(t *testing.T) {
	tests := []struct {
		name string
		code int
		want bool
	}{
		{"bad gateway", http.StatusBadGateway, true},
		{"service unavailable", http.StatusServiceUnavailable, true},
		{"too many requests", http.StatusTooManyRequests, true},
		{"request timeout", http.StatusRequestTimeout, true},
		{"not found", http.StatusNotFound, false},
		{"ok", http.StatusOK, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.code)
			}))
			defer server.Close()

			resp, err := resty.New().SetBaseURL(server.URL).R().Get("/")
			if err != nil {
				t.Fatalf("probe request failed: %v", err)
			}
			if got := isRetryableResp(resp, nil); got != tc.want {
				t.Fatalf("isRetryableResp(%d) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}

	if !isRetryableResp(nil, context.DeadlineExceeded) {
		t.Fatal("transport errors must be retryable")
	}
	if isRetryableResp(nil, nil) {
		t.Fatal("nil response without error must not retry")
	}
}
