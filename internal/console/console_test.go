// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package console_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/command/handlers"
	"github.com/parkhaven/parkhaven/internal/console"
	"github.com/parkhaven/parkhaven/internal/platform/platformtest"
	"github.com/parkhaven/parkhaven/internal/queue"
	"github.com/parkhaven/parkhaven/internal/relay/relaytest"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startConsole runs a console server on a loopback port and returns a
// connected session reader plus the send function.
func startConsole(t *testing.T) (*bufio.Reader, func(string)) {
	t.Helper()

	dir := platformtest.NewDirectory()
	signs := platformtest.NewSignWriter()

	qm := queue.NewManager("magic-kingdom", dir, signs, nil)
	q := queue.New("teacups", "Teacups", "magic-kingdom")
	require.NoError(t, qm.Register(q))
	qm.SetOpen(q, true)

	vm := vqueue.NewManager("hub1", relaytest.New(), noopStore{}, dir)

	reg := command.NewRegistry()
	handlers.RegisterAll(reg)
	d, err := command.NewDispatcher(reg, command.AllowAll{})
	require.NoError(t, err)

	svc := &command.Services{Queues: qm, Virtual: vm, Online: dir}
	srv := console.NewServer("127.0.0.1:0", d, reg, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var addr string
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		return addr != ""
	}, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	reader := bufio.NewReader(conn)
	send := func(line string) {
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	return reader, send
}

type noopStore struct{}

func (noopStore) Save(context.Context, vqueue.Document) error  { return nil }
func (noopStore) Delete(context.Context, string) error         { return nil }
func (noopStore) LoadAll(context.Context) ([]vqueue.Document, error) {
	return nil, nil
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSpace(line)
}

func TestConsole_Welcome(t *testing.T) {
	r, _ := startConsole(t)
	assert.Contains(t, readLine(t, r), "ParkHaven admin console")
}

func TestConsole_DispatchesCommands(t *testing.T) {
	r, send := startConsole(t)
	readLine(t, r) // welcome

	send("queue list")
	assert.Equal(t, "Teacups (teacups) - open, 0 in line", readLine(t, r))
}

func TestConsole_ReportsErrors(t *testing.T) {
	r, send := startConsole(t)
	readLine(t, r)

	send("bogus")
	line := readLine(t, r)
	assert.Contains(t, line, "Error:")
	assert.Contains(t, line, "UNKNOWN_COMMAND")
}

func TestConsole_Help(t *testing.T) {
	r, send := startConsole(t)
	readLine(t, r)

	send("help")
	var out strings.Builder
	for {
		line := readLine(t, r)
		out.WriteString(line + "\n")
		if strings.HasPrefix(line, "vqueueadmin") {
			break
		}
	}
	assert.Contains(t, out.String(), "queue")
	assert.Contains(t, out.String(), "vqueueadmin")
}

func TestConsole_Quit(t *testing.T) {
	r, send := startConsole(t)
	readLine(t, r)

	send("quit")
	assert.Equal(t, "Goodbye.", readLine(t, r))

	_, err := r.ReadString('\n')
	assert.Error(t, err) // connection closed by server
}

func TestConsole_BlankLinesIgnored(t *testing.T) {
	r, send := startConsole(t)
	readLine(t, r)

	send("")
	send("queue list")
	assert.Equal(t, "Teacups (teacups) - open, 0 in line", readLine(t, r))
}
