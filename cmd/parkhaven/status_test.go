// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// healthStub serves liveness/readiness endpoints with fixed answers.
func healthStub(t *testing.T, ready bool) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/healthz/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestStatusCommand_Healthy(t *testing.T) {
	addr := healthStub(t, true)

	cmd := newStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--metrics-addr", addr})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "live, ready")
}

func TestStatusCommand_NotReady(t *testing.T) {
	addr := healthStub(t, false)

	cmd := newStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--metrics-addr", addr})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "live, not ready")
}

func TestStatusCommand_Unreachable(t *testing.T) {
	cmd := newStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	// Reserved port with nothing listening.
	cmd.SetArgs([]string{"--metrics-addr", "127.0.0.1:1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "unreachable")
}

func TestStatusCommand_JSONOutput(t *testing.T) {
	addr := healthStub(t, true)

	cmd := newStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--metrics-addr", addr, "--json"})

	require.NoError(t, cmd.Execute())

	var status CoordinatorStatus
	require.NoError(t, json.Unmarshal(buf.Bytes(), &status))
	assert.Equal(t, addr, status.Addr)
	assert.True(t, status.Live)
	assert.True(t, status.Ready)
	assert.Empty(t, status.Error)
}
