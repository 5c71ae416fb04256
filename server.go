// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package jscompiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// ServerStatus is the lifecycle state of a compile server.
type ServerStatus int32

const (
	ServerStatusUnstarted ServerStatus = iota
	ServerStatusSpawning
	ServerStatusReady
	ServerStatusBusy
	ServerStatusStopped
	ServerStatusCrashed
)

// String returns a human-readable status name.
func (s ServerStatus) String() string {
	switch s {
	case ServerStatusUnstarted:
		return "unstarted"
	case ServerStatusSpawning:
		return "spawning"
	case ServerStatusReady:
		return "ready"
	case ServerStatusBusy:
		return "busy"
	case ServerStatusStopped:
		return "stopped"
	case ServerStatusCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Server multiplexes concurrent compile calls over a single long-lived
// worker process. Every call gets an id; the worker may answer in any
// order and each reply settles the call with the matching id.
type Server struct {
	mu      sync.Mutex
	pending map[int64]chan *CompileReply
	nextID  atomic.Int64
	status  atomic.Int32

	transport *transport
	cmd       *exec.Cmd
	readDone  chan struct{} // Closed when the read loop returns
	exited    chan struct{} // Closed when the worker process has been reaped

	command     string
	args        []string
	env         []string
	dir         string
	stderr      io.Writer
	stopGrace   time.Duration
	failPending bool
	logger      *slog.Logger

	stopOnce sync.Once
	stopping atomic.Bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWorkerCommand sets the worker executable and its arguments. By
// default the current executable is started with the single argument
// "worker".
func WithWorkerCommand(name string, args ...string) ServerOption {
	return func(s *Server) {
		s.command = name
		s.args = append([]string(nil), args...)
	}
}

// WithWorkerEnv appends KEY=value pairs to the worker environment.
func WithWorkerEnv(env ...string) ServerOption {
	return func(s *Server) {
		s.env = append(s.env, env...)
	}
}

// WithWorkerDir sets the worker's working directory.
func WithWorkerDir(dir string) ServerOption {
	return func(s *Server) {
		s.dir = dir
	}
}

// WithWorkerStderr redirects the worker's stderr (its log output).
func WithWorkerStderr(w io.Writer) ServerOption {
	return func(s *Server) {
		s.stderr = w
	}
}

// WithStopGracePeriod bounds how long Stop waits for the worker to exit
// after disconnecting before killing it.
func WithStopGracePeriod(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.stopGrace = d
		}
	}
}

// WithFailPendingOnExit makes the server reject every pending call when
// the channel dies or Stop is called. Without it such calls stay pending
// until their context ends.
func WithFailPendingOnExit(enable bool) ServerOption {
	return func(s *Server) {
		s.failPending = enable
	}
}

// WithServerLogger sets the server logger. A nil logger discards output.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func newServerConfig(opts []ServerOption) *Server {
	s := &Server{
		pending:   make(map[int64]chan *CompileReply),
		stderr:    os.Stderr,
		stopGrace: 5 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.status.Store(int32(ServerStatusUnstarted))
	return s
}

// NewServer spawns the worker process and returns a server ready to accept
// Compile calls. Cancelling ctx kills the worker.
func NewServer(ctx context.Context, opts ...ServerOption) (*Server, error) {
	s := newServerConfig(opts)
	if s.command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, &ChannelError{Op: "spawn", Err: fmt.Errorf("locate executable: %w", err)}
		}
		s.command = exe
		s.args = []string{"worker"}
	}
	if err := s.spawn(ctx); err != nil {
		s.status.Store(int32(ServerStatusCrashed))
		return nil, err
	}
	return s, nil
}

// newPipeServer attaches a server to an existing channel, without a process.
func newPipeServer(r io.Reader, w io.Writer, c io.Closer, opts ...ServerOption) *Server {
	s := newServerConfig(opts)
	s.attach(r, w, c)
	return s
}

// spawn starts the worker process and binds its stdio as the channel.
func (s *Server) spawn(ctx context.Context) error {
	s.status.Store(int32(ServerStatusSpawning))

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Dir = s.dir
	cmd.Stderr = s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ChannelError{Op: "spawn", Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return &ChannelError{Op: "spawn", Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return &ChannelError{Op: "spawn", Err: fmt.Errorf("start process: %w", err)}
	}

	s.cmd = cmd
	s.exited = make(chan struct{})
	s.attach(stdout, stdin, stdin)
	go s.monitorProcess()

	s.logger.Debug("Compile worker started",
		"command", s.command,
		"args", s.args,
		"pid", cmd.Process.Pid)
	return nil
}

// attach binds the channel and starts the message listener.
func (s *Server) attach(r io.Reader, w io.Writer, c io.Closer) {
	s.transport = newTransport(r, w, c)
	s.readDone = make(chan struct{})
	s.status.Store(int32(ServerStatusReady))
	go s.readLoop()
}

// monitorProcess reaps the worker once its stdout is drained.
func (s *Server) monitorProcess() {
	// Wait closes stdout, so every reply must be read first
	<-s.readDone
	err := s.cmd.Wait()
	close(s.exited)

	if err == nil {
		err = errors.New("worker exited")
	}
	s.channelFailed(&ChannelError{Op: "exit", Err: err})
}

// readLoop is the message listener: it decodes replies and routes them.
func (s *Server) readLoop() {
	defer close(s.readDone)
	for {
		line, err := s.transport.receive()
		if err != nil {
			s.channelFailed(&ChannelError{Op: "receive", Err: err})
			return
		}

		reply, err := decodeReply(line)
		if err != nil {
			s.logger.Error("Dropping malformed worker message", "error", err)
			continue
		}
		s.onMessage(reply)
	}
}

// decodeReply parses a worker message. A message whose id is readable but
// whose body is not still yields a reply, carrying the decode failure, so
// the waiting caller is settled.
func decodeReply(line []byte) (*CompileReply, error) {
	var reply CompileReply
	err := json.Unmarshal(line, &reply)
	if err == nil {
		return &reply, nil
	}

	id := gjson.GetBytes(line, "id")
	if id.Type != gjson.Number {
		return nil, err
	}
	return &CompileReply{
		ID: id.Int(),
		failure: &CompileError{
			Diagnostic: "malformed reply from worker: " + err.Error(),
			Err:        err,
		},
	}, nil
}

// onMessage settles the call waiting on reply.ID. Replies for ids that are
// unknown or already settled are dropped.
func (s *Server) onMessage(reply *CompileReply) {
	s.mu.Lock()
	ch, ok := s.pending[reply.ID]
	if ok {
		delete(s.pending, reply.ID)
		s.updateBusyLocked()
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("Dropping reply for unknown request", "id", reply.ID)
		return
	}
	// The entry was removed under the lock, so this is the only send
	ch <- reply
}

// Compile sends content to the worker and waits for the matching reply or
// for ctx to end.
func (s *Server) Compile(ctx context.Context, content string, options Options) (*Result, error) {
	filename := options.StringValue(OptFilename)
	id := s.nextID.Add(1)

	// An unencodable request only fails this call, the channel is untouched
	data, err := encodeMessage(&CompileRequest{ID: id, Content: content, Options: options})
	if err != nil {
		return nil, &CompileError{Filename: filename, Diagnostic: "encode compile request: " + err.Error(), Err: err}
	}

	ch := make(chan *CompileReply, 1)

	// Checked under the lock so a concurrent crash or Stop either sees
	// this entry or is seen here
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.pending[id] = ch
	s.updateBusyLocked()
	s.mu.Unlock()

	defer s.forget(id)

	if err := s.transport.write(data); err != nil {
		cerr := &ChannelError{Op: "send", Err: err}
		s.channelFailed(cerr)
		return nil, cerr
	}

	select {
	case reply := <-ch:
		return settle(reply, filename)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) acceptingLocked() error {
	switch status := s.Status(); status {
	case ServerStatusStopped:
		return ErrServerStopped
	case ServerStatusCrashed:
		return &ChannelError{Op: "send", Err: ErrWorkerCrashed}
	case ServerStatusUnstarted, ServerStatusSpawning:
		return fmt.Errorf("compile server is %s", status)
	}
	return nil
}

// settle converts a reply into the caller's result.
func settle(reply *CompileReply, filename string) (*Result, error) {
	if reply.failure != nil {
		var cerr *CompileError
		if errors.As(reply.failure, &cerr) && cerr.Filename == "" {
			cerr.Filename = filename
		}
		return nil, reply.failure
	}
	if hasErrorPayload(reply.Error) {
		return nil, decodeErrorPayload(reply.Error, filename)
	}
	if reply.Result == nil {
		return &Result{}, nil
	}
	return reply.Result, nil
}

// forget drops id from the pending table if it is still there.
func (s *Server) forget(id int64) {
	s.mu.Lock()
	if _, ok := s.pending[id]; ok {
		delete(s.pending, id)
		s.updateBusyLocked()
	}
	s.mu.Unlock()
}

// updateBusyLocked flips between ready and busy. Caller holds s.mu.
func (s *Server) updateBusyLocked() {
	want := ServerStatusReady
	if len(s.pending) > 0 {
		want = ServerStatusBusy
	}
	for {
		current := s.status.Load()
		if current != int32(ServerStatusReady) && current != int32(ServerStatusBusy) {
			return
		}
		if s.status.CompareAndSwap(current, int32(want)) {
			return
		}
	}
}

// channelFailed is the error listener. It records the crash once and, if
// configured, rejects everything still pending.
func (s *Server) channelFailed(err error) {
	if s.stopping.Load() {
		return
	}
	for {
		current := s.status.Load()
		if current == int32(ServerStatusStopped) || current == int32(ServerStatusCrashed) {
			return
		}
		if s.status.CompareAndSwap(current, int32(ServerStatusCrashed)) {
			break
		}
	}

	s.logger.Error("Compile worker failed", "error", err, "pending", s.Pending())
	if s.failPending {
		s.rejectPending(ErrWorkerCrashed)
	}
}

// rejectPending settles every pending call with err.
func (s *Server) rejectPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan *CompileReply)
	s.mu.Unlock()

	for id, ch := range pending {
		ch <- &CompileReply{ID: id, failure: err}
	}
}

// Stop disconnects from the worker and waits for it to exit, killing it
// after the grace period. Pending calls are left pending unless the server
// was created with WithFailPendingOnExit(true). Calling Stop again, or
// after a crash, is safe.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		s.status.Store(int32(ServerStatusStopped))

		if s.failPending {
			s.rejectPending(ErrServerStopped)
		}

		if s.transport != nil {
			if cerr := s.transport.close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
				err = &ChannelError{Op: "disconnect", Err: cerr}
			}
		}

		if s.cmd != nil {
			timer := time.NewTimer(s.stopGrace)
			defer timer.Stop()
			select {
			case <-s.exited:
			case <-timer.C:
				s.logger.Warn("Compile worker did not exit, killing it", "pid", s.cmd.Process.Pid)
				_ = s.cmd.Process.Kill()
				<-s.exited
			}
		}

		s.logger.Debug("Compile server stopped", "pending", s.Pending())
	})
	return err
}

// Status returns the current lifecycle state.
func (s *Server) Status() ServerStatus {
	return ServerStatus(s.status.Load())
}

// Pending returns the number of calls waiting for a reply.
func (s *Server) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
