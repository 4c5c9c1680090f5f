package metrics

import (
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/ieql/engine/internal/common/configtypes"
)

// StartServer exposes the metrics registry over HTTP at cfg.Path,
// serving from a background goroutine. It returns nil when metrics are
// disabled; otherwise the caller owns shutting the server down. The
// listener is bound before returning, so a bad address fails here
// rather than in the serving goroutine.
func (m *ScanMetrics) StartServer(cfg configtypes.MetricsConfig, logger *zap.Logger) (*fasthttp.Server, error) {
	if !cfg.Enabled {
		logger.Info("metrics disabled")
		return nil, nil
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %s: %w", cfg.Listen, err)
	}

	srv := &fasthttp.Server{
		Name:         "ieql-metrics",
		Handler:      m.endpoint(cfg.Path),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening",
			zap.String("listen", cfg.Listen), zap.String("path", cfg.Path))
		if err := srv.Serve(ln); err != nil {
			logger.Error("metrics server exited", zap.Error(err))
		}
	}()

	return srv, nil
}

// endpoint routes the configured path to the prometheus handler and
// rejects everything else.
func (m *ScanMetrics) endpoint(path string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != path {
			ctx.Error("not found", fasthttp.StatusNotFound)
			return
		}
		m.httpHandler(ctx)
	}
}
