// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/vqueue"
	"github.com/parkhaven/parkhaven/pkg/errutil"
)

func TestBuilder_SetID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"castle-fp", false},
		{"teacups2", false},
		{"a", false},
		{"", true},
		{"Castle", true},
		{"castle fp", true},
		{"-castle", true},
		{"castle_fp", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			b := vqueue.NewBuilder("op")
			err := b.SetID(tt.id)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "BUILDER_BAD_ID")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuilder_MissingOrder(t *testing.T) {
	b := vqueue.NewBuilder("op")
	assert.Equal(t, "id", b.Missing())

	require.NoError(t, b.SetID("castle-fp"))
	assert.Equal(t, "name", b.Missing())

	require.NoError(t, b.SetName("Castle FastPass"))
	assert.Equal(t, "holding-area", b.Missing())

	require.NoError(t, b.SetHoldingArea(3))
	assert.Equal(t, "holding-position", b.Missing())

	require.NoError(t, b.SetHoldingPosition(platform.Position{World: "park", X: 1, Y: 64, Z: 1}))
	assert.Equal(t, "admit-position", b.Missing())

	require.NoError(t, b.SetAdmitPosition(platform.Position{World: "park", X: 2, Y: 64, Z: 2}))
	assert.Equal(t, "", b.Missing())
}

func TestBuilder_BuildIncomplete(t *testing.T) {
	b := vqueue.NewBuilder("op")
	require.NoError(t, b.SetID("castle-fp"))

	_, err := b.Build("hub1")
	errutil.AssertErrorCode(t, err, "BUILDER_INCOMPLETE")
	errutil.AssertErrorContext(t, err, "missing", "name")
}

func TestBuilder_Build(t *testing.T) {
	b := vqueue.NewBuilder("op")
	require.NoError(t, b.SetID("castle-fp"))
	require.NoError(t, b.SetName("Castle FastPass"))
	require.NoError(t, b.SetHoldingArea(3))
	require.NoError(t, b.SetHoldingPosition(platform.Position{World: "park", X: 1, Y: 64, Z: 1}))
	require.NoError(t, b.SetAdmitPosition(platform.Position{World: "park", X: 2, Y: 64, Z: 2}))

	q, err := b.Build("hub1")
	require.NoError(t, err)
	assert.Equal(t, "castle-fp", q.ID)
	assert.Equal(t, "Castle FastPass", q.Name)
	assert.Equal(t, 3, q.HoldingArea)
	assert.True(t, q.HostedBy("hub1"))
	assert.False(t, q.Line().Open(), "new queues start closed")
}

func TestBuilder_Validation(t *testing.T) {
	b := vqueue.NewBuilder("op")
	errutil.AssertErrorCode(t, b.SetName(""), "BUILDER_BAD_NAME")
	errutil.AssertErrorCode(t, b.SetHoldingArea(0), "BUILDER_BAD_HOLDING")
	errutil.AssertErrorCode(t, b.SetHoldingPosition(platform.Position{}), "BUILDER_BAD_POSITION")
	errutil.AssertErrorCode(t, b.SetAdmitPosition(platform.Position{}), "BUILDER_BAD_POSITION")
}
