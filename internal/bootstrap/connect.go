package bootstrap

import (
	"context"
	"fmt"
	"time"

	"carehub/internal/cache"
	"carehub/internal/common/aws"
	"carehub/internal/common/camunda"
	"carehub/internal/common/config"
	"carehub/internal/common/database"
	sn "carehub/internal/workers/communication/send-notification"

	"go.uber.org/zap"
)

// RetryWithBackoff runs operation until it succeeds or maxRetries attempts
// have failed, doubling the delay after each failure.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

const retryDelay = 2 * time.Second

func ConnectZeebe(cfg *config.Config, log *zap.Logger) (*camunda.Client, error) {
	var client *camunda.Client
	err := RetryWithBackoff(func() error {
		var err error
		client, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, retryDelay, log, "Zeebe client initialization")
	return client, err
}

func ConnectPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := RetryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, retryDelay, log, "PostgreSQL connection")
	return pg, err
}

func ConnectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*database.RedisClient, error) {
	var rdb *database.RedisClient
	err := RetryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			return err
		}
		return nil
	}, 10, retryDelay, log, "Redis connection")
	return rdb, err
}

func ConnectElasticsearch(ctx context.Context, cfg *config.Config, log *zap.Logger) (*database.ElasticsearchClient, error) {
	var es *database.ElasticsearchClient
	err := RetryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, retryDelay, log, "Elasticsearch connection")
	return es, err
}

// ConnectLimiter dials the gateway's rate limiter and response cache.
func ConnectLimiter(cfg *config.Config, log *zap.Logger) (*cache.Client, error) {
	var c *cache.Client
	err := RetryWithBackoff(func() error {
		var err error
		c, err = cache.NewClient(cfg.HTTP.LimiterRedis)
		return err
	}, 10, retryDelay, log, "Rate limiter Redis connection")
	return c, err
}

// NotificationClients builds the SES and SNS clients for the channels that
// are switched on. A disabled channel stays a nil interface.
func NotificationClients(ctx context.Context, cfg *config.Config) (sn.SESService, sn.SNSService, error) {
	var (
		ses sn.SESService
		sns sn.SNSService
	)
	if cfg.Integrations.AWS.SES.Enabled {
		c, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("ses client: %w", err)
		}
		ses = c
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		c, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("sns client: %w", err)
		}
		sns = c
	}
	return ses, sns, nil
}
