package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourism-compliance/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the zeebe client with retrying commands.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds the Zeebe client configuration
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	MessageTTL             time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig controls ExecuteWithRetry backoff.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Dial opens a zeebe client and checks the gateway answers a topology request within
// ConnectionTimeout.
func Dial(ctx context.Context, config *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.ConnectionTimeout)
	defer cancel()
	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("zeebe gateway %s unreachable: %w", config.GatewayAddress, err)
	}

	return Wrap(zeebeClient, config), nil
}

// Wrap reuses an existing zeebe client, e.g. the one the job workers already hold.
func Wrap(client zbc.Client, config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{ConnectionTimeout: 10 * time.Second, MessageTTL: time.Hour}
	}
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	return &Client{client: client, config: config}
}

// Zeebe exposes the underlying client for job workers.
func (c *Client) Zeebe() zbc.Client {
	return c.client
}

// Close closes the underlying zeebe client.
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishMessage publishes a correlated message so BPMN processes waiting on name can resume.
// messageID makes redelivery of the same event idempotent on the broker side.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey, messageID string, variables interface{}) error {
	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd := c.client.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			TimeToLive(c.config.MessageTTL)
		if messageID != "" {
			cmd = cmd.MessageId(messageID)
		}
		withVars, err := cmd.VariablesFromObject(variables)
		if err != nil {
			return nil, err
		}
		return withVars.Send(ctx)
	}, "publish-message:"+name)
	return err
}

// ExecuteWithRetry runs operation with exponential backoff while its error is retryable.
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
			return nil, mapZeebeError(err, operationName, attempt)
		}

		delay := c.config.RetryConfig.BaseDelay * time.Duration(1<<attempt)
		if delay > c.config.RetryConfig.MaxDelay {
			delay = c.config.RetryConfig.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.NewUpstreamTimeoutError("zeebe", fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err()))
		}
	}

	return nil, fmt.Errorf("operation %s failed after %d retries: %w", operationName, c.config.RetryConfig.MaxRetries, lastErr)
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
		"resource_exhausted",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempt int) *errors.StandardError {
	lowerMsg := strings.ToLower(err.Error())

	enhanced := fmt.Errorf("zeebe operation '%s' failed after %d attempt(s): %w", operation, attempt+1, err)

	switch {
	case strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded") ||
		strings.Contains(lowerMsg, "unavailable") ||
		strings.Contains(lowerMsg, "unreachable") ||
		strings.Contains(lowerMsg, "connection refused") ||
		strings.Contains(lowerMsg, "connection reset"):
		return errors.NewUpstreamTimeoutError("zeebe", enhanced).WithMetadata("operation", operation)

	case strings.Contains(lowerMsg, "not found"):
		return errors.NewNotFoundError("zeebe resource", operation)

	default:
		return errors.NewInternalError("zeebe", enhanced).WithMetadata("operation", operation)
	}
}

// HealthCheck requests the broker topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
