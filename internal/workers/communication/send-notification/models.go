// internal/workers/communication/send-notification/models.go
package sendnotification

type Input struct {
	RecipientID      string                 `json:"recipientId"`
	CareGroupID      string                 `json:"careGroupId,omitempty"`
	NotificationType string                 `json:"notificationType"`
	Priority         string                 `json:"priority,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"`
	Channels       []string `json:"channels"`
	SentAt         string   `json:"sentAt"`
}

// Notification types
const (
	TypeTaskAssigned     = "task_assigned"
	TypeClaimDecided     = "claim_decided"
	TypeNewMessage       = "new_message"
	TypeOrderPlaced      = "order_placed"
	TypeCaregiverMatched = "caregiver_matched"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusInApp    = "in_app"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

var priorityRank = map[string]int{PriorityLow: 0, PriorityNormal: 1, PriorityHigh: 2}
