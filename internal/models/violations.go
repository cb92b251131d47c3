package models

// Violation type constants
const (
	ViolationRateSecond    = "rate_limit_second"
	ViolationRateMinute    = "rate_limit_minute"
	ViolationCooldownAbuse = "cooldown_abuse"
	ViolationDuplicate     = "duplicate_message"
	ViolationMentionSpam   = "mention_spam"
	ViolationLinkSpam      = "link_spam"
	ViolationEmojiSpam     = "emoji_spam"
)

// Severity levels for violations and join checks
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Violation is a single detected infraction on one message
type Violation struct {
	Type     string
	Severity string
}

// severityRank orders severities for worst-of comparisons
var severityRank = map[string]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// WorstSeverity returns the highest severity present in the set,
// or "" for an empty set
func WorstSeverity(violations []Violation) string {
	worst := ""
	rank := 0
	for _, v := range violations {
		if r := severityRank[v.Severity]; r > rank {
			rank = r
			worst = v.Severity
		}
	}
	return worst
}

// ViolationTypes returns the type tags of a violation set
func ViolationTypes(violations []Violation) []string {
	types := make([]string, len(violations))
	for i, v := range violations {
		types[i] = v.Type
	}
	return types
}

// GetViolationDisplayName returns a human-readable name for a violation type
func GetViolationDisplayName(violationType string) string {
	switch violationType {
	case ViolationRateSecond:
		return "Message Flood (per-second)"
	case ViolationRateMinute:
		return "Message Flood (per-minute)"
	case ViolationCooldownAbuse:
		return "Cooldown Abuse"
	case ViolationDuplicate:
		return "Duplicate Messages"
	case ViolationMentionSpam:
		return "Mention Spam"
	case ViolationLinkSpam:
		return "Link Spam"
	case ViolationEmojiSpam:
		return "Emoji Spam"
	default:
		return violationType
	}
}
