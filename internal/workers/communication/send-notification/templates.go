// internal/workers/communication/send-notification/templates.go
package sendnotification

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type template struct {
	Subject string
	Body    string
}

var templates = map[string]template{
	TypeTaskAssigned: {
		Subject: "New care task: {{taskTitle}}",
		Body:    "Hi {{recipientName}}, {{assignedBy}} assigned you \"{{taskTitle}}\"[[ due {{dueDate}}]].",
	},
	TypeClaimDecided: {
		Subject: "Your claim {{claimId}} was {{claimStatus}}",
		Body:    "Hi {{recipientName}}, claim {{claimId}} is now {{claimStatus}}.[[ Your share is {{patientResponsibility}}.]]",
	},
	TypeNewMessage: {
		Subject: "New message in {{groupName}}",
		Body:    "{{senderName}}: {{preview}}",
	},
	TypeOrderPlaced: {
		Subject: "Order {{orderId}} confirmed",
		Body:    "Thanks {{recipientName}}, your order {{orderId}} for {{total}} is confirmed.",
	},
	TypeCaregiverMatched: {
		Subject: "{{matchCount}} caregivers match your needs",
		Body:    "Hi {{recipientName}}, we found {{matchCount}} caregivers for your care group.[[ Top match: {{topCaregiver}}.]]",
	},
}

// renderTemplate substitutes {{key}} placeholders and drops any left over.
// A [[...]] section is kept only when every placeholder inside it has a value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := renderOptional(tmpl, data)
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", formatValue(v))
	}
	return stripPlaceholders(result)
}

func renderOptional(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "[[")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "]]")
		if end == -1 {
			break
		}
		b.WriteString(rest[:start])
		section := rest[start+2 : start+end]
		if hasAll(section, data) {
			b.WriteString(section)
		}
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

func hasAll(section string, data map[string]interface{}) bool {
	for {
		start := strings.Index(section, "{{")
		if start == -1 {
			return true
		}
		end := strings.Index(section[start:], "}}")
		if end == -1 {
			return true
		}
		if formatValue(data[section[start+2:start+end]]) == "" {
			return false
		}
		section = section[start+end+2:]
	}
}

func stripPlaceholders(s string) string {
	for {
		start := strings.Index(s, "{{")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return s
		}
		s = s[:start] + s[start+end+2:]
	}
}

// withCurrency adds a formatted "$12.34" value under the bare name of every
// numeric "...Cents" key, so totalCents also renders as {{total}}.
func withCurrency(data map[string]interface{}) {
	for k, v := range data {
		name := strings.TrimSuffix(k, "Cents")
		if name == k || name == "" {
			continue
		}
		if _, taken := data[name]; taken {
			continue
		}
		var cents int64
		switch n := v.(type) {
		case float64:
			cents = int64(math.Round(n))
		case int64:
			cents = n
		case int:
			cents = int64(n)
		default:
			continue
		}
		data[name] = formatCents(cents)
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// formatValue keeps JSON numbers readable: 3 rather than 3e+00.
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
