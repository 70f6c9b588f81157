package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

const shutdownTimeout = 5 * time.Second

// serve runs an HTTP server until ctx is cancelled or the session is
// done. A nil handler serves http.DefaultServeMux (net/pprof).
func serve(
	ctx context.Context,
	sessionDone <-chan struct{},
	name string,
	addr string,
	handler http.Handler,
) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	observability.Go(ctx, func() {
		select {
		case <-ctx.Done():
		case <-sessionDone:
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf(ctx, "unable to shutdown the %s server: %v", name, err)
		}
	})

	logger.Infof(ctx, "serving %s at %s", name, addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("the %s server at %s failed: %w", name, addr, err)
}
