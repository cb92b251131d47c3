package policy

import (
	"fmt"
	"strings"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/models"
)

// Decision is the single action selected for one message event
type Decision struct {
	Action string
	Reason string
}

// rule is one row of the ordered policy table. Rows are evaluated top
// to bottom; the first match wins.
type rule struct {
	matches func(totalStrikes int, worstSeverity string, cfg *config.Config) bool
	action  string
}

var table = []rule{
	{
		// Sustained abuse well past the threshold
		matches: func(total int, _ string, cfg *config.Config) bool {
			return total >= 2*cfg.StrikeThreshold
		},
		action: models.ActionKick,
	},
	{
		matches: func(total int, _ string, cfg *config.Config) bool {
			return total >= cfg.StrikeThreshold
		},
		action: models.ActionTimeout,
	},
	{
		// High-severity content or a climbing record both earn a warning
		matches: func(total int, worst string, cfg *config.Config) bool {
			return worst == models.SeverityHigh || total*10 >= 6*cfg.StrikeThreshold
		},
		action: models.ActionWarnDelete,
	},
	{
		matches: func(_ int, _ string, _ *config.Config) bool { return true },
		action:  models.ActionDelete,
	},
}

// Decide maps a violation set plus the updated strike total to exactly
// one action. Returns nil when no violations were detected.
func Decide(violations []models.Violation, totalStrikes int, cfg *config.Config) *Decision {
	if len(violations) == 0 {
		return nil
	}

	worst := models.WorstSeverity(violations)
	for _, r := range table {
		if !r.matches(totalStrikes, worst, cfg) {
			continue
		}
		return &Decision{
			Action: r.action,
			Reason: reasonFor(r.action, violations, totalStrikes),
		}
	}

	// Unreachable: the last row always matches
	return &Decision{Action: models.ActionDelete}
}

func reasonFor(action string, violations []models.Violation, total int) string {
	types := strings.Join(models.ViolationTypes(violations), ", ")
	switch action {
	case models.ActionKick:
		return fmt.Sprintf("Kicked for repeated violations (%d strikes): %s", total, types)
	case models.ActionTimeout:
		return fmt.Sprintf("Timed out for accumulated violations (%d strikes): %s", total, types)
	case models.ActionWarnDelete:
		return fmt.Sprintf("Warned for %s (%d strikes)", types, total)
	default:
		return fmt.Sprintf("Message removed: %s", types)
	}
}
