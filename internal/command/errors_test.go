// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parkhaven/parkhaven/pkg/errutil"
)

func TestErrorConstructors(t *testing.T) {
	errutil.AssertErrorCode(t, ErrUnknownCommand("bogus"), CodeUnknownCommand)
	errutil.AssertErrorCode(t, ErrPermissionDenied("queueadmin", "park.queue.manage"), CodePermissionDenied)
	errutil.AssertErrorCode(t, ErrInvalidArgs("queue", "queue <join|leave>"), CodeInvalidArgs)
	errutil.AssertErrorCode(t, ErrRateLimited(500), CodeRateLimited)
	errutil.AssertErrorCode(t, ErrNoMember(), CodeNoMember)
	errutil.AssertErrorCode(t, QueueError("boom", nil), CodeQueueError)
	errutil.AssertErrorCode(t, QueueError("boom", errors.New("cause")), CodeQueueError)
}

func TestPlayerMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, "Something went wrong. Try again."},
		{"plain error", errors.New("boom"), "Something went wrong. Try again."},
		{"unknown command", ErrUnknownCommand("bogus"), "Unknown command. Try 'help'."},
		{"permission denied", ErrPermissionDenied("queueadmin", "park.queue.manage"), "You don't have permission to do that."},
		{"invalid args with usage", ErrInvalidArgs("queue", "queue <join|leave>"), "Usage: queue <join|leave>"},
		{"queue error carries message", QueueError("The queue for Teacups is closed.", nil), "The queue for Teacups is closed."},
		{"rate limited", ErrRateLimited(500), "Too many commands. Please slow down."},
		{"no member", ErrNoMember(), "You must be in the park to do that."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlayerMessage(tt.err))
		})
	}
}
