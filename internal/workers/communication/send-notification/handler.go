// internal/workers/communication/send-notification/handler.go
package sendnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	awsclient "carehub/internal/common/aws"
	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/realtime"
	"carehub/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "send-notification"

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// EventPublisher is satisfied by *realtime.Hub.
type EventPublisher interface {
	Publish(ctx context.Context, e realtime.Event) error
}

type Handler struct {
	config    *Config
	store     *store.Store
	sesClient SESService
	snsClient SNSService
	events    EventPublisher
	errors    *errors.ErrorHandler
	logger    logger.Logger
	now       func() time.Time
}

// NewHandler accepts nil SES/SNS clients when the channel is disabled and a
// nil publisher when realtime fan-out is not wired.
func NewHandler(config *Config, db *sql.DB, sesClient SESService, snsClient SNSService, events EventPublisher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		store:     store.New(db),
		sesClient: sesClient,
		snsClient: snsClient,
		events:    events,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
		now:       time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	tmpl, ok := templates[input.NotificationType]
	if !ok {
		return nil, errors.NewInvalidInputError("unknown notification type: " + input.NotificationType)
	}
	if input.RecipientID == "" {
		return nil, errors.NewInvalidInputError("recipientId is required")
	}

	sentAt := h.now().UTC().Format(time.RFC3339)

	profile, err := h.store.Profiles.Get(ctx, input.RecipientID)
	if stderrors.Is(err, store.ErrNotFound) {
		h.logger.Warn("recipient not found", map[string]interface{}{
			"recipientId": input.RecipientID,
		})
		return &Output{NotificationID: uuid.NewString(), Status: StatusDisabled, Channels: []string{}, SentAt: sentAt}, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("profiles", err)
	}

	data := map[string]interface{}{
		"recipientName":    profile.DisplayName,
		"notificationType": input.NotificationType,
		"priority":         input.Priority,
	}
	for k, v := range input.Metadata {
		data[k] = v
	}
	withCurrency(data)
	subject := renderTemplate(tmpl.Subject, data)
	body := renderTemplate(tmpl.Body, data)

	channels := []string{ChannelInApp}
	attempted, delivered := 0, 0

	if h.config.EmailEnabled && h.sesClient != nil && profile.Email != "" {
		attempted++
		_, err := h.sesClient.SendEmail(ctx, awsclient.EmailInput(h.config.FromEmail, profile.Email, subject, body, ""))
		if err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error":       err,
				"recipientId": input.RecipientID,
			})
		} else {
			delivered++
			channels = append(channels, ChannelEmail)
		}
	}

	if h.config.SMSEnabled && h.snsClient != nil && profile.Phone != "" && h.smsEligible(input.Priority) {
		attempted++
		_, err := h.snsClient.Publish(ctx, awsclient.SMSInput(profile.Phone, subject+": "+body, h.config.SMSSenderID))
		if err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error":       err,
				"recipientId": input.RecipientID,
			})
		} else {
			delivered++
			channels = append(channels, ChannelSMS)
		}
	}

	// Nothing left the building, so an engine retry cannot duplicate anything.
	if attempted > 0 && delivered == 0 {
		return nil, errors.NewNotificationSendFailedError(input.NotificationType, stderrors.New("all delivery channels failed"))
	}

	status := StatusInApp
	if delivered > 0 {
		status = StatusSent
	}

	notificationID, err := h.store.Notifications.Insert(ctx, store.Notification{
		UserID:    input.RecipientID,
		GroupID:   input.CareGroupID,
		EventType: input.NotificationType,
		Title:     subject,
		Body:      body,
		Channels:  channels,
		Status:    status,
	})
	if err != nil {
		// Email or SMS may already be out; failing here would resend them.
		h.logger.Error("failed to store notification", map[string]interface{}{
			"error":       err,
			"recipientId": input.RecipientID,
		})
		notificationID = uuid.NewString()
	}

	if input.CareGroupID != "" && h.events != nil {
		h.publish(ctx, input, notificationID, subject)
	}

	h.logger.Info("notification processed", map[string]interface{}{
		"notificationId": notificationID,
		"type":           input.NotificationType,
		"status":         status,
		"channels":       channels,
	})

	return &Output{NotificationID: notificationID, Status: status, Channels: channels, SentAt: sentAt}, nil
}

func (h *Handler) smsEligible(priority string) bool {
	return priorityRank[priority] >= priorityRank[h.config.SMSPriority] && priority != ""
}

func (h *Handler) publish(ctx context.Context, input *Input, notificationID, title string) {
	event, err := realtime.NewEvent(realtime.EventNotification, input.CareGroupID, "", map[string]string{
		"notificationId":   notificationID,
		"recipientId":      input.RecipientID,
		"notificationType": input.NotificationType,
		"title":            title,
	})
	if err == nil {
		err = h.events.Publish(ctx, event)
	}
	if err != nil {
		h.logger.Warn("failed to publish notification event", map[string]interface{}{
			"careGroupId": input.CareGroupID,
			"error":       err,
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	if sendErr := h.errors.HandleJobError(context.Background(), client, job, err); sendErr != nil {
		h.logger.Error("failed to report job failure", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
