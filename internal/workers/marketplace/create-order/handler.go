// internal/workers/marketplace/create-order/handler.go
package createorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/domain/cart"
	"carehub/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const TaskType = "create-order"

type Handler struct {
	config *Config
	store  *store.Store
	carts  *cart.Store
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, rdb *redis.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store.New(db),
		carts:  cart.NewStore(rdb, config.CartTTL),
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
	if input.UserID == "" {
		return nil, errors.NewInvalidInputError("userId is required")
	}

	c, err := h.carts.Load(ctx, input.UserID)
	if err != nil {
		return nil, errors.NewExternalServiceError("redis", err)
	}
	if c.IsEmpty() {
		return nil, errors.NewCartEmptyError(input.UserID)
	}

	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := h.store.Products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("products", err)
	}

	// Cart prices are display hints; the catalog price is charged.
	order := &store.Order{UserID: input.UserID, Currency: h.config.Currency}
	var missing []string
	itemCount := 0
	for _, it := range c.Items {
		p, ok := products[it.ProductID]
		if !ok {
			missing = append(missing, it.ProductID)
			continue
		}
		order.Items = append(order.Items, store.OrderItem{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   it.Quantity,
		})
		order.TotalCents += p.PriceCents * int64(it.Quantity)
		itemCount += it.Quantity
	}
	if len(missing) > 0 {
		return nil, errors.NewInvalidInputError("unavailable products: " + strings.Join(missing, ", ")).
			WithMetadata("productIds", missing)
	}

	if err := h.store.Orders.Create(ctx, order); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	if err := h.carts.Delete(ctx, input.UserID); err != nil {
		h.logger.Warn("failed to clear cart after order", map[string]interface{}{
			"userId":  input.UserID,
			"orderId": order.ID,
			"error":   err,
		})
	}

	h.logger.Info("order created", map[string]interface{}{
		"orderId":    order.ID,
		"userId":     input.UserID,
		"totalCents": order.TotalCents,
		"itemCount":  itemCount,
	})

	return &Output{
		OrderID:    order.ID,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		Currency:   order.Currency,
		ItemCount:  itemCount,
	}, nil
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
