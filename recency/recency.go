// Package recency decides which scraped records are fresh enough to
// publish. Each site names one of three policies; the policy turns the
// current time (and for tenders, the upcoming issue) into a window and
// records outside the window are dropped.
package recency

import (
	"fmt"
	"time"

	"github.com/ys-23412/sbcontest2/dateutil"
	"github.com/ys-23412/sbcontest2/models"
)

const (
	PolicyWeekdaySnap      = "weekday_snap"
	PolicyTodayYesterday   = "today_yesterday"
	PolicyPublicationCycle = "publication_cycle"
)

// issueLookback bounds how far behind today an issue may be and still
// count as the active one.
const issueLookback = 6 * 24 * time.Hour

// Window is a half-open interval of acceptable record dates. A zero
// End means the window is unbounded above.
type Window struct {
	Start time.Time
	End   time.Time

	// NewTenderPeriod is set for the publication cycle policy when the
	// run falls inside the weekly posting period. It annotates the run
	// but never excludes records.
	NewTenderPeriod bool
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	day := dateutil.Midnight(d)
	if day.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !day.Before(w.End) {
		return false
	}
	return true
}

// WeekdaySnap keeps records dated on or after the previous business
// day: the preceding Friday when run on a Monday, otherwise yesterday.
func WeekdaySnap(now time.Time) Window {
	today := dateutil.Midnight(now)
	var cutoff time.Time
	if today.Weekday() == time.Monday {
		cutoff = today.AddDate(0, 0, -3)
	} else {
		cutoff = today.AddDate(0, 0, -1)
	}
	return Window{Start: cutoff}
}

// TodayYesterday keeps records dated today or yesterday.
func TodayYesterday(now time.Time) Window {
	today := dateutil.Midnight(now)
	return Window{Start: today.AddDate(0, 0, -1), End: today.AddDate(0, 0, 1)}
}

// SelectIssue picks the active publication issue: prefer the first
// issue dated after today, falling back to the most recent issue
// within the trailing lookback. Issues are assumed sorted ascending by
// date; unparseable dates are skipped.
func SelectIssue(issues []models.Issue, now time.Time) (models.Issue, time.Time, error) {
	today := dateutil.Midnight(now)
	floor := today.Add(-issueLookback)

	var (
		fallback     models.Issue
		fallbackDate time.Time
		found        bool
	)
	for _, issue := range issues {
		d, err := dateutil.Parse(issue.Date)
		if err != nil {
			continue
		}
		d = dateutil.Midnight(d)
		if d.Before(floor) {
			continue
		}
		if d.After(today) {
			return issue, d, nil
		}
		fallback, fallbackDate, found = issue, d, true
	}
	if !found {
		return models.Issue{}, time.Time{}, fmt.Errorf("recency: no issue within %d days of %s", int(issueLookback.Hours()/24), today.Format("2006-01-02"))
	}
	return fallback, fallbackDate, nil
}

// PublicationCycle keeps records dated within the lookback period
// ending at the issue date, and flags whether the run falls inside the
// weekly new-tender posting period.
func PublicationCycle(issueDate time.Time, now time.Time) Window {
	end := dateutil.Midnight(issueDate)
	return Window{
		Start:           end.Add(-issueLookback),
		End:             end,
		NewTenderPeriod: inNewTenderPeriod(now),
	}
}

// The posting period opens Wednesday at noon and closes Sunday at
// 22:00, Pacific time, every week.
const (
	periodOpenWeekday  = time.Wednesday
	periodOpenHour     = 12
	periodCloseWeekday = time.Sunday
	periodCloseHour    = 22
)

func inNewTenderPeriod(now time.Time) bool {
	t := now.In(dateutil.Pacific)
	switch t.Weekday() {
	case periodOpenWeekday:
		return t.Hour() >= periodOpenHour
	case time.Thursday, time.Friday, time.Saturday:
		return true
	case periodCloseWeekday:
		return t.Hour() < periodCloseHour
	default:
		return false
	}
}

// ForPolicy resolves a site's configured policy name into a window.
// Tender sites using the publication cycle resolve their window from
// the issue date separately and never route through here.
func ForPolicy(policy string, now time.Time) (Window, error) {
	switch policy {
	case PolicyWeekdaySnap, "":
		return WeekdaySnap(now), nil
	case PolicyTodayYesterday:
		return TodayYesterday(now), nil
	default:
		return Window{}, fmt.Errorf("recency: unknown policy %q", policy)
	}
}
