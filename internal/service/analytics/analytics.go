// Package analytics derives activity views from closed usage sessions. All
// functions are pure and recomputed on read; nothing here is cached or
// persisted, so the results can never drift from the session store.
package analytics

import (
	"time"

	"github.com/zhouzirui/huddle/backend/internal/model/session"
)

// ActivityRecord is the combined derived view served to dashboards.
type ActivityRecord struct {
	TotalActiveSeconds int64       `json:"totalActiveSeconds"`
	StreakDays         int         `json:"streakDays"`
	DailyBuckets       []DayBucket `json:"dailyBuckets"`
	Badges             []Badge     `json:"badges"`
}

// DayBucket is one calendar day's summed active minutes.
type DayBucket struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Minutes int64  `json:"minutes"`
}

// activeSeconds returns a closed session's credited time, falling back to
// wall-clock elapsed when the authoritative duration is absent. Open
// sessions contribute nothing.
func activeSeconds(s session.Session) int64 {
	if !s.Closed() {
		return 0
	}
	if s.ActiveDurationSeconds != nil {
		return *s.ActiveDurationSeconds
	}
	return int64(s.EndTime.Sub(s.StartTime) / time.Second)
}

// TotalActiveSeconds sums credited time across all closed sessions.
func TotalActiveSeconds(records []session.Session) int64 {
	var total int64
	for _, s := range records {
		total += activeSeconds(s)
	}
	return total
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Streak counts consecutive calendar days with at least one session,
// starting from the most recent day with activity. Same-day sessions
// deduplicate; a gap of more than one day ends the count. Time of day is
// irrelevant.
func Streak(records []session.Session) int {
	if len(records) == 0 {
		return 0
	}

	days := make(map[time.Time]struct{}, len(records))
	var latest time.Time
	for _, s := range records {
		if !s.Closed() {
			continue
		}
		day := dayOf(s.StartTime)
		days[day] = struct{}{}
		if day.After(latest) {
			latest = day
		}
	}
	if len(days) == 0 {
		return 0
	}

	streak := 0
	for day := latest; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			break
		}
		streak++
	}
	return streak
}

// DailyBuckets sums active minutes per calendar day over the trailing
// windowDays ending at now, oldest day first. Days without sessions appear
// with zero minutes so charts render without gaps.
func DailyBuckets(records []session.Session, windowDays int, now time.Time) []DayBucket {
	if windowDays <= 0 {
		return nil
	}

	end := dayOf(now)
	start := end.AddDate(0, 0, -(windowDays - 1))

	// Accumulate whole seconds per day and truncate once, so short sessions
	// on the same day don't each lose their sub-minute remainder.
	seconds := make(map[time.Time]int64, windowDays)
	for _, s := range records {
		if !s.Closed() {
			continue
		}
		day := dayOf(s.StartTime)
		if day.Before(start) || day.After(end) {
			continue
		}
		seconds[day] += activeSeconds(s)
	}

	buckets := make([]DayBucket, 0, windowDays)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		buckets = append(buckets, DayBucket{
			Date:    day.Format("2006-01-02"),
			Minutes: seconds[day] / 60,
		})
	}
	return buckets
}

// focusMinimum is the session length from which time counts as focused.
const focusMinimum = 25 * time.Minute

// FocusRatio is the share of total credited time spent in sessions long
// enough to count as focused blocks. Zero when there is no credited time.
func FocusRatio(records []session.Session) float64 {
	var total, focused int64
	for _, s := range records {
		secs := activeSeconds(s)
		total += secs
		if time.Duration(secs)*time.Second >= focusMinimum {
			focused += secs
		}
	}
	if total == 0 {
		return 0
	}
	return float64(focused) / float64(total)
}

// Derive computes the full activity view for one user's session log.
func Derive(records []session.Session, windowDays int, now time.Time, focusRatio float64) ActivityRecord {
	total := TotalActiveSeconds(records)
	streak := Streak(records)
	return ActivityRecord{
		TotalActiveSeconds: total,
		StreakDays:         streak,
		DailyBuckets:       DailyBuckets(records, windowDays, now),
		Badges:             BadgeState(total, streak, focusRatio),
	}
}
