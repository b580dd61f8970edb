// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package console provides a line-based TCP admin console. Operators
// connect (typically over localhost or an SSH tunnel) and issue the same
// commands players use in-game, dispatched with operator capabilities.
package console

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/command"
)

// Server accepts console connections and dispatches their input.
type Server struct {
	addr       string
	dispatcher *command.Dispatcher
	registry   *command.Registry
	services   *command.Services
	listener   net.Listener
	mu         sync.RWMutex
}

// NewServer creates a console server. The registry is consulted only for
// the help listing; dispatch goes through the dispatcher.
func NewServer(addr string, d *command.Dispatcher, reg *command.Registry, svc *command.Services) *Server {
	return &Server{
		addr:       addr,
		dispatcher: d,
		registry:   reg,
		services:   svc,
	}
}

// Addr returns the listen address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("admin console started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing console listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("console accept failed", "error", err)
				continue
			}
		}
		go s.handle(ctx, conn)
	}
}

// handle serves one console session until disconnect.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("error closing console connection", "error", err)
		}
	}()

	remote := conn.RemoteAddr().String()
	slog.Info("console session opened", "remote", remote)

	exec := &command.Execution{
		MemberID:   "console:" + remote,
		MemberName: "operator",
		Output:     conn,
		Services:   s.services,
	}

	fmt.Fprintln(conn, "ParkHaven admin console. Type 'help' for commands, 'quit' to leave.")

	lineCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			select {
			case lineCh <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(conn, "Server shutting down.")
			return

		case err := <-errCh:
			if err != nil {
				slog.Debug("console read error", "remote", remote, "error", err)
			}
			slog.Info("console session closed", "remote", remote)
			return

		case line := <-lineCh:
			if !s.processLine(ctx, line, exec, conn) {
				slog.Info("console session closed", "remote", remote)
				return
			}
		}
	}
}

// processLine executes one input line. It returns false when the session
// should end.
func (s *Server) processLine(ctx context.Context, line string, exec *command.Execution, conn net.Conn) bool {
	switch line {
	case "":
		return true
	case "quit", "exit":
		fmt.Fprintln(conn, "Goodbye.")
		return false
	case "help":
		s.printHelp(conn)
		return true
	}

	if err := s.dispatcher.Dispatch(ctx, line, exec); err != nil {
		fmt.Fprintf(conn, "Error: %s\n", consoleError(err))
	}
	return true
}

// printHelp lists registered commands with their usage lines.
func (s *Server) printHelp(conn net.Conn) {
	for _, entry := range s.registry.All() {
		fmt.Fprintf(conn, "%-14s %s\n", entry.Name, entry.Help)
		if entry.Usage != "" {
			for _, u := range strings.Split(strings.TrimSpace(entry.Usage), "\n") {
				fmt.Fprintf(conn, "    %s\n", strings.TrimSpace(u))
			}
		}
	}
}

// consoleError renders a dispatch error for the operator, preferring the
// structured code over the wrapped chain.
func consoleError(err error) string {
	if o, ok := oops.AsOops(err); ok && o.Code() != "" {
		return fmt.Sprintf("%s: %s", o.Code(), err.Error())
	}
	return err.Error()
}
