package coach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/apiclient"
	"github.com/park285/chess-coach/pkg/coachdto"
)

// Client talks to the coaching backend. Advice responses carry back the epoch
// the request was issued against; the caller drops responses whose epoch no
// longer matches the live session.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...apiclient.Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("coach base url required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	all := append([]apiclient.Option{apiclient.WithTimeout(timeout)}, opts...)
	return &Client{
		api:    apiclient.NewClient(baseURL, all...),
		logger: logger,
	}, nil
}

// Advise sends the player's question plus the position context and returns
// the coach's reply with any suggested lines.
func (c *Client) Advise(ctx context.Context, req coachdto.CoachAdviceRequest) (*coachdto.CoachAdvice, error) {
	start := time.Now()
	var advice coachdto.CoachAdvice
	if err := c.api.DoJSON(ctx, fasthttp.MethodPost, "/v1/coach/chat", req, &advice, true); err != nil {
		c.logger.Warn("coach_request_failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("coach advise: %w", err)
	}
	if advice.Epoch == "" {
		advice.Epoch = req.Epoch
	}
	c.logger.Debug("coach_advice_received",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("lines", len(advice.Lines)),
	)
	return &advice, nil
}
