// Package delivery hands delivery requests raised by completed sales to the
// delivery module. The engine only emits the request; the delivery workflow
// itself lives elsewhere.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the stream name used when none is configured
const DefaultStream = "pos:delivery:requests"

// RedisStreamGateway appends delivery requests to a Redis stream with XADD
type RedisStreamGateway struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisStreamGateway creates a gateway writing to stream.
// A positive maxLen trims the stream approximately to that many entries.
func NewRedisStreamGateway(client redis.UniversalClient, stream string, maxLen int64, logger *zap.Logger) *RedisStreamGateway {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamGateway{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

// RequestDelivery publishes one stream entry per request
func (g *RedisStreamGateway) RequestDelivery(ctx context.Context, req appsales.DeliveryRequest) error {
	args, err := streamArgs(g.stream, g.maxLen, req)
	if err != nil {
		return err
	}

	id, err := g.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", g.stream, err)
	}

	g.logger.Debug("delivery request appended to stream",
		zap.String("stream", g.stream),
		zap.String("entry_id", id),
		zap.String("delivery_id", req.DeliveryID.String()),
	)
	return nil
}

// streamArgs builds the XADD arguments. The delivery ID is a top-level field so
// consumers can deduplicate without decoding the payload.
func streamArgs(stream string, maxLen int64, req appsales.DeliveryRequest) (*redis.XAddArgs, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery request: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"delivery_id": req.DeliveryID.String(),
			"sale_id":     req.SaleID.String(),
			"tenant_id":   req.TenantID.String(),
			"payload":     string(payload),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return args, nil
}

// LogGateway only logs delivery requests. It is used when no Redis server is configured.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway creates a new LogGateway
func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// RequestDelivery logs the request
func (g *LogGateway) RequestDelivery(_ context.Context, req appsales.DeliveryRequest) error {
	g.logger.Info("delivery request",
		zap.String("delivery_id", req.DeliveryID.String()),
		zap.String("sale_id", req.SaleID.String()),
		zap.String("sale_number", req.SaleNumber),
		zap.Int("lines", len(req.Lines)),
	)
	return nil
}

var (
	_ appsales.DeliveryGateway = (*RedisStreamGateway)(nil)
	_ appsales.DeliveryGateway = (*LogGateway)(nil)
)
