package policy

import (
	"regexp"
	"strings"
)

// ActionDecision classifies an outbound backend action before it is executed.
type ActionDecision struct {
	Risk    string
	Blocked bool
	Reason  string
}

var (
	blockedActionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(exfiltrate|steal|dump credentials|leak secrets?)\b`),
		regexp.MustCompile(`(?i)\b(print|show|reveal|export)\b.*\b(api[_ -]?key|token|password|secret)\b`),
	}
	blockedActionTypes = map[string]string{
		"delete_account":     "account deletion is not available over voice",
		"rotate_credentials": "credential rotation is not available over voice",
		"export_secrets":     "secret export is never allowed",
	}
	highRiskActionTypes = map[string]bool{
		"delete_record":  true,
		"cancel_invoice": true,
		"remove_member":  true,
	}
)

// DecideAction inspects an action type plus its free-text parameters and
// decides whether the backend action handler may forward it.
func DecideAction(actionType string, parameterText string) ActionDecision {
	action := strings.ToLower(strings.TrimSpace(actionType))
	if action == "" {
		return ActionDecision{Risk: "low"}
	}

	if reason, ok := blockedActionTypes[action]; ok {
		return ActionDecision{Risk: "blocked", Blocked: true, Reason: reason}
	}

	combined := action + " " + strings.ToLower(parameterText)
	for _, re := range blockedActionPatterns {
		if re.MatchString(combined) {
			return ActionDecision{
				Risk:    "blocked",
				Blocked: true,
				Reason:  "request appears to include destructive or secret-exfiltration behavior",
			}
		}
	}

	if highRiskActionTypes[action] {
		return ActionDecision{Risk: "high"}
	}
	return ActionDecision{Risk: "low"}
}
