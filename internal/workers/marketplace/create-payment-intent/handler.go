// internal/workers/marketplace/create-payment-intent/handler.go
package createpaymentintent

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"carehub/internal/common/errors"
	httpclient "carehub/internal/common/http"
	"carehub/internal/common/logger"
	"carehub/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-payment-intent"

type Handler struct {
	config *Config
	client *httpclient.Client
	store  *store.Store
	errors *errors.ErrorHandler
	logger logger.Logger
}

// NewHandler never retries the Stripe call itself. The idempotency key makes
// an engine retry safe, a blind client retry on a 4xx is not.
func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	breaker := httpclient.NewCircuitBreaker(config.BreakerThreshold, config.BreakerCooldown)
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout, httpclient.WithCircuitBreaker(breaker)),
		store:  store.New(db),
		errors: errors.NewErrorHandler(log),
		logger: log,
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
	if input.OrderID == "" || input.UserID == "" {
		return nil, errors.NewInvalidInputError("orderId and userId are required")
	}
	if h.config.SecretKey == "" {
		return nil, errors.NewPaymentFailedError(stderrors.New("stripe secret key not configured"))
	}

	order, err := h.store.Orders.Get(ctx, input.UserID, input.OrderID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewResourceNotFoundError("orders", "orderId: "+input.OrderID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("orders", err)
	}
	if order.Status != store.OrderPending {
		return nil, errors.NewBusinessRuleError("Order is not awaiting payment", "status: "+order.Status)
	}
	if order.TotalCents <= 0 {
		return nil, errors.NewInvalidInputError("order total must be positive")
	}

	currency := order.Currency
	if currency == "" {
		currency = h.config.Currency
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(order.TotalCents, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[order_id]", order.ID)
	form.Set("metadata[user_id]", order.UserID)

	var intent paymentIntent
	err = h.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    strings.TrimRight(h.config.BaseURL, "/") + "/v1/payment_intents",
		Headers: map[string]string{
			"Authorization":   "Bearer " + h.config.SecretKey,
			"Idempotency-Key": order.ID,
		},
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, &intent)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	if err := h.store.Orders.AttachPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		// The intent exists; a retry replays the same idempotency key.
		return nil, errors.NewQueryExecutionFailedError("attach_payment_intent", err)
	}

	h.logger.Info("payment intent created", map[string]interface{}{
		"orderId":         order.ID,
		"paymentIntentId": intent.ID,
		"amountCents":     order.TotalCents,
		"status":          intent.Status,
	})

	return &Output{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          intent.Status,
		AmountCents:     order.TotalCents,
		Currency:        currency,
	}, nil
}

// classifyStripeError maps 4xx to a decline carrying Stripe's message and
// everything else to a provider failure.
func classifyStripeError(err error) error {
	var statusErr *httpclient.StatusError
	if stderrors.As(err, &statusErr) && !statusErr.Temporary() {
		var body struct {
			Error struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		details := string(statusErr.Body)
		if json.Unmarshal(statusErr.Body, &body) == nil && body.Error.Message != "" {
			details = body.Error.Message
		}
		stdErr := errors.NewPaymentDeclinedError(details).WithMetadata("httpStatus", statusErr.StatusCode)
		if body.Error.Code != "" {
			stdErr = stdErr.WithMetadata("stripeCode", body.Error.Code)
		}
		return stdErr
	}
	return errors.NewPaymentFailedError(err)
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
