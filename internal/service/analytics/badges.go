package analytics

import "fmt"

// Badge is one achievement's unlock state. Progress is human-readable and
// populated only while the badge is locked.
type Badge struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Unlocked bool   `json:"unlocked"`
	Progress string `json:"progress,omitempty"`
}

const hourSeconds = 3600

type badgeRule struct {
	id       string
	name     string
	unlocked func(totalSeconds int64, streakDays int, focusRatio float64) bool
	progress func(totalSeconds int64, streakDays int, focusRatio float64) string
}

func streakRule(id, name string, days int) badgeRule {
	return badgeRule{
		id:   id,
		name: name,
		unlocked: func(_ int64, streak int, _ float64) bool {
			return streak >= days
		},
		progress: func(_ int64, streak int, _ float64) string {
			return fmt.Sprintf("%d/%d days", streak, days)
		},
	}
}

func hoursRule(id, name string, hours int64) badgeRule {
	threshold := hours * hourSeconds
	return badgeRule{
		id:   id,
		name: name,
		unlocked: func(total int64, _ int, _ float64) bool {
			return total >= threshold
		},
		progress: func(total int64, _ int, _ float64) string {
			return fmt.Sprintf("%dh %dm of %dh", total/hourSeconds, (total%hourSeconds)/60, hours)
		},
	}
}

// badgeRules is the fixed achievement table. Order is presentation order.
var badgeRules = []badgeRule{
	streakRule("streak-5", "5 Day Streak", 5),
	streakRule("streak-10", "10 Day Streak", 10),
	streakRule("streak-30", "30 Day Streak", 30),
	hoursRule("hours-10", "10 Hour Club", 10),
	hoursRule("hours-50", "50 Hour Club", 50),
	hoursRule("hours-100", "100 Hour Club", 100),
	{
		id:   "deep-focus",
		name: "Deep Focus",
		unlocked: func(_ int64, _ int, focusRatio float64) bool {
			return focusRatio >= 0.5
		},
		progress: func(_ int64, _ int, focusRatio float64) string {
			return fmt.Sprintf("%.0f%% of 50%% focus time", focusRatio*100)
		},
	},
}

// BadgeState evaluates every badge rule against the given aggregates. It has
// no side effects and is never cached.
func BadgeState(totalSeconds int64, streakDays int, focusRatio float64) []Badge {
	badges := make([]Badge, 0, len(badgeRules))
	for _, rule := range badgeRules {
		b := Badge{
			ID:       rule.id,
			Name:     rule.name,
			Unlocked: rule.unlocked(totalSeconds, streakDays, focusRatio),
		}
		if !b.Unlocked {
			b.Progress = rule.progress(totalSeconds, streakDays, focusRatio)
		}
		badges = append(badges, b)
	}
	return badges
}
