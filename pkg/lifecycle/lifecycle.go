/*
 * Copyright 2025 SMSDesk Pty Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle runs a set of long-lived services until the process
// receives a termination signal.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smsdesk/pulse/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// Service is one long-lived component. Start blocks until the context is
// cancelled or the service fails; Stop releases resources.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// CreateComponentLogger creates a logger tagged with a component field,
// suitable for injection into services.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	return logger.NewComponent(config, component)
}

// Run starts every service and blocks until SIGINT/SIGTERM or the first
// service failure, then stops them all in reverse order.
func Run(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(services))

	for _, svc := range services {
		svc := svc

		go func() {
			if err := svc.Start(ctx); err != nil && err != context.Canceled {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Service failed")
	case <-ctx.Done():
	}

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("Service stop failed")
		}
	}

	return runErr
}
