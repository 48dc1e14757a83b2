// Package server runs the relay's long-lived components (the WebSocket
// acceptor, the admin endpoint, periodic stats) as one unit that shuts down
// together on a signal, a cancelled context, or the first component failure.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is one component managed by a Lifecycle.
type Service interface {
	// Start runs the component and returns only once it has been stopped or
	// has failed. A nil return after Stop is a clean exit.
	Start() error
	// Stop asks a running Start to return. It may be called before Start
	// has begun serving.
	Stop()
}

// FuncService wraps a blocking serve function and its matching stop
// function, e.g. an acceptor's ListenAndServe and Stop.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start runs StartFn.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop runs StopFn.
func (f *FuncService) Stop() { f.StopFn() }

// TickerService runs Fn every Interval until stopped.
type TickerService struct {
	Interval time.Duration
	Fn       func()

	once sync.Once
	quit chan struct{}
}

// NewTickerService creates a TickerService.
//
// Precondition: interval > 0; fn must be non-nil.
func NewTickerService(interval time.Duration, fn func()) *TickerService {
	return &TickerService{Interval: interval, Fn: fn, quit: make(chan struct{})}
}

// Start blocks, invoking Fn on every tick, until Stop is called.
func (s *TickerService) Start() error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Fn()
		case <-s.quit:
			return nil
		}
	}
}

// Stop ends the ticker loop. Safe to call more than once.
func (s *TickerService) Stop() {
	s.once.Do(func() { close(s.quit) })
}

// Lifecycle owns the relay's named services. They are launched together in
// registration order and torn down in the opposite order, so the WebSocket
// acceptor registered first is the last to close.
type Lifecycle struct {
	logger   *zap.Logger
	services []namedService
	mu       sync.Mutex
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle returns an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add appends svc under name. Services added after Run has begun are not started.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run launches every service and waits for SIGINT, SIGTERM, cancellation of
// ctx, or the first service failure, then stops them all.
//
// Postcondition: Every service has been stopped. Returns the failure that
// triggered the shutdown, or nil when a signal or ctx ended the run.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	failures := l.launch(services)
	l.logger.Info("services launched",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	runErr := l.wait(ctx, failures)
	l.shutdown(services)

	l.logger.Info("relay stopped", zap.Duration("uptime", time.Since(start)))
	return runErr
}

// launch starts each service on its own goroutine. A service whose Start
// returns an error reports it on the returned channel.
func (l *Lifecycle) launch(services []namedService) <-chan error {
	failures := make(chan error, len(services))
	for _, ns := range services {
		ns := ns
		go func() {
			began := time.Now()
			l.logger.Info("service starting", zap.String("service", ns.name))
			err := ns.service.Start()
			if err == nil {
				return
			}
			l.logger.Error("service exited with error",
				zap.String("service", ns.name),
				zap.Duration("ran_for", time.Since(began)),
				zap.Error(err),
			)
			failures <- fmt.Errorf("service %s: %w", ns.name, err)
		}()
	}
	return failures
}

// wait blocks until a shutdown trigger arrives.
func (l *Lifecycle) wait(ctx context.Context, failures <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		l.logger.Info("shutdown requested", zap.Stringer("signal", sig))
		return nil
	case <-ctx.Done():
		l.logger.Info("shutdown requested", zap.String("reason", "context done"))
		return nil
	case err := <-failures:
		l.logger.Error("shutting down after service failure", zap.Error(err))
		return err
	}
}

// shutdown stops services last-registered first.
func (l *Lifecycle) shutdown(services []namedService) {
	began := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		stopStart := time.Now()
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(stopStart)),
		)
	}
	l.logger.Info("all services stopped", zap.Duration("elapsed", time.Since(began)))
}
