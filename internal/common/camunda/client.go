// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carehub/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gRPC client with retries and StandardError mapping.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig is used when ClientConfig.RetryConfig is nil.
var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient creates a plaintext client with default timeouts.
func NewClient(address string) (*Client, error) {
	config := &ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		RetryConfig:            DefaultRetryConfig,
	}
	return NewClientWithConfig(config)
}

// NewClientWithConfig dials the gateway and verifies it with a topology request.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
	}, nil
}

// GetClient returns the raw Zeebe client used to open job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry executes a Zeebe command with exponential backoff. Only
// transient errors (timeouts, connection issues) are retried.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryableZeebeError(err) || attempt == c.config.RetryConfig.MaxRetries {
			return nil, c.mapZeebeError(err, operationName, attempt)
		}

		delay := c.config.RetryConfig.BaseDelay * time.Duration(1<<attempt)
		if delay > c.config.RetryConfig.MaxDelay {
			delay = c.config.RetryConfig.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt, ctx.Err())
		}
	}

	return nil, fmt.Errorf("operation %s failed after %d retries: %w", operationName, c.config.RetryConfig.MaxRetries, lastErr)
}

type errClass int

const (
	classUnknown errClass = iota
	classUnavailable
	classTimeout
	classNotFound
	classConflict
	classDenied
)

// phraseClasses is the fallback for errors raised before a gRPC status
// exists, e.g. while dialing.
var phraseClasses = []struct {
	phrase string
	class  errClass
}{
	{"connection refused", classUnavailable},
	{"connection reset", classUnavailable},
	{"broken pipe", classUnavailable},
	{"unavailable", classUnavailable},
	{"unreachable", classUnavailable},
	{"deadline exceeded", classTimeout},
	{"timeout", classTimeout},
	{"not found", classNotFound},
	{"already exists", classConflict},
	{"permission denied", classDenied},
	{"unauthorized", classDenied},
}

func classify(err error) errClass {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
			return classUnavailable
		case codes.DeadlineExceeded:
			return classTimeout
		case codes.NotFound:
			return classNotFound
		case codes.AlreadyExists, codes.FailedPrecondition:
			return classConflict
		case codes.PermissionDenied, codes.Unauthenticated:
			return classDenied
		}
	}
	msg := strings.ToLower(err.Error())
	for _, pc := range phraseClasses {
		if strings.Contains(msg, pc.phrase) {
			return pc.class
		}
	}
	return classUnknown
}

func isRetryableZeebeError(err error) bool {
	c := classify(err)
	return c == classUnavailable || c == classTimeout
}

// mapZeebeError converts Zeebe errors into StandardErrors.
func (c *Client) mapZeebeError(err error, operation string, attempt int) error {
	detail := fmt.Sprintf("zeebe %s failed", operation)
	if attempt > 0 {
		detail += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %w", detail, err)

	switch classify(err) {
	case classTimeout:
		return errors.NewTimeoutError("zeebe", wrapped)
	case classNotFound:
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case classConflict:
		return errors.NewBusinessRuleError(wrapped.Error(), "Resource already exists")
	case classDenied:
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

// HealthCheck performs a basic health check against the Zeebe broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	_, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// StartProcess creates an instance of the latest version of processID with
// vars as its initial variables and returns the process instance key.
func (c *Client) StartProcess(ctx context.Context, processID string, vars interface{}) (int64, error) {
	result, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(vars)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("process variables: %v", err))
		}
		return cmd.Send(ctx)
	}, "create-instance:"+processID)
	if err != nil {
		return 0, err
	}

	resp, ok := result.(*pb.CreateProcessInstanceResponse)
	if !ok || resp == nil {
		return 0, fmt.Errorf("unexpected create-instance response %T", result)
	}
	return resp.GetProcessInstanceKey(), nil
}

// PublishMessage correlates a message to waiting process instances, e.g. a
// manual review outcome for a claim held in pending_review.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey string, vars interface{}) error {
	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd, err := c.client.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			VariablesFromObject(vars)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("message variables: %v", err))
		}
		return cmd.Send(ctx)
	}, "publish-message:"+name)
	return err
}

// DeployResources deploys BPMN files from disk in one deployment.
func (c *Client) DeployResources(ctx context.Context, paths ...string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	result, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd := c.client.NewDeployResourceCommand()
		for _, p := range paths {
			cmd = cmd.AddResourceFile(p)
		}
		return cmd.Send(ctx)
	}, "deploy-resources")
	if err != nil {
		return 0, err
	}

	resp, ok := result.(*pb.DeployResourceResponse)
	if !ok || resp == nil {
		return 0, fmt.Errorf("unexpected deploy response %T", result)
	}
	return resp.GetKey(), nil
}
