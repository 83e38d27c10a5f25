package analysis

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

// Client talks to the game-analysis backend, which walks a finished or
// in-progress record and flags the critical moments.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...apiclient.Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("analysis base url required")
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

// Analyze submits a game record and returns the per-move report.
func (c *Client) Analyze(ctx context.Context, req coachdto.AnalysisRequest) (*coachdto.AnalysisReport, error) {
	start := time.Now()
	var report coachdto.AnalysisReport
	if err := c.api.DoJSON(ctx, fasthttp.MethodPost, "/v1/analysis/game", req, &report, true); err != nil {
		c.logger.Warn("analysis_request_failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("analyze game: %w", err)
	}
	c.logger.Debug("analysis_report_received",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("moments", len(report.Moments)),
	)
	return &report, nil
}
