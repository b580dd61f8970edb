// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package command

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("parkhaven/command")

// Authorizer answers capability checks for members. The platform adapter
// bridges this to the host permission system.
type Authorizer interface {
	Check(ctx context.Context, memberID, capability string) bool
}

// AllowAll grants every capability. Useful for tests and single-operator
// setups with no permission plugin.
type AllowAll struct{}

// Check always returns true.
func (AllowAll) Check(context.Context, string, string) bool { return true }

// Dispatcher handles command parsing, capability checks, and execution.
type Dispatcher struct {
	registry    *Registry
	auth        Authorizer
	rateLimiter *RateLimiter // optional, can be nil
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter configures the dispatcher to use rate limiting.
// If not provided, rate limiting is disabled.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		d.rateLimiter = rl
	}
}

// NewDispatcher creates a new command dispatcher with the given registry
// and authorizer. Returns an error if registry or auth is nil.
func NewDispatcher(registry *Registry, auth Authorizer, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Errorf("registry must not be nil")
	}
	if auth == nil {
		return nil, oops.Errorf("authorizer must not be nil")
	}
	d := &Dispatcher{
		registry: registry,
		auth:     auth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch parses and executes a command.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, exec *Execution) (err error) {
	if exec.MemberID == "" {
		return ErrNoMember()
	}
	if exec.Services == nil {
		return oops.Errorf("execution services must not be nil")
	}

	parsed, err := Parse(input)
	if err != nil {
		return err
	}

	rec := newMetricsRecorder()
	rec.setCommand(parsed.Name)
	defer rec.record()

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.name", parsed.Name),
			attribute.String("member.id", exec.MemberID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Rate limiting runs before lookup so floods of garbage input are
	// throttled too.
	if d.rateLimiter != nil && !d.auth.Check(ctx, exec.MemberID, CapabilityRateLimitBypass) {
		allowed, cooldownMs := d.rateLimiter.Allow(exec.MemberID)
		if !allowed {
			span.SetAttributes(
				attribute.Bool("command.rate_limited", true),
				attribute.Int64("command.cooldown_ms", cooldownMs),
			)
			rec.setStatus(StatusRateLimited)
			err = ErrRateLimited(cooldownMs)
			return err
		}
	}

	entry, ok := d.registry.Get(parsed.Name)
	if !ok {
		rec.setStatus(StatusNotFound)
		err = ErrUnknownCommand(parsed.Name)
		return err
	}

	span.SetAttributes(attribute.String("command.source", entry.Source))

	if entry.Capability != "" && !d.auth.Check(ctx, exec.MemberID, entry.Capability) {
		rec.setStatus(StatusPermissionDenied)
		err = ErrPermissionDenied(parsed.Name, entry.Capability)
		return err
	}

	exec.Args = parsed.Args
	exec.InvokedAs = parsed.Name
	err = entry.Handler(ctx, exec)
	if err != nil {
		rec.setStatus(StatusError)
		slog.WarnContext(ctx, "command execution failed",
			"command", parsed.Name,
			"member_id", exec.MemberID,
			"error", err,
		)
	}
	return err
}
