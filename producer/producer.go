package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kaireichart/vor-nav-display/log"
)

// ErrNotRunning is returned by Stop when the process was never started or
// has already exited.
var ErrNotRunning = errors.New("producer is not running")

// stopGrace is how long Stop waits after closing stdin before killing.
const stopGrace = 2 * time.Second

// Observer is told when the process starts and exits.
type Observer interface {
	ProducerStarted(command string)
	ProducerExited(err error)
}

// Program describes the producer pipeline to launch.
type Program struct {
	Path string   `json:"path"`
	Args []string `json:"args"`
}

// ParseCommand splits a configured command line on whitespace.
func ParseCommand(command string) (Program, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return Program{}, errors.New("empty producer command")
	}
	return Program{Path: fields[0], Args: fields[1:]}, nil
}

func (p Program) String() string {
	return strings.Join(append([]string{p.Path}, p.Args...), " ")
}

// State is a point-in-time view of the process.
type State struct {
	Running bool   `json:"running"`
	Pid     int    `json:"pid,omitempty"`
	Exit    string `json:"exit,omitempty"`
}

// Supervisor runs the producer as a child process. Its stdout is the
// display's input channel and its stdin the output channel.
type Supervisor struct {
	program  Program
	observer Observer
	lg       *log.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
	exitErr error
	done    chan struct{}
}

func NewSupervisor(program Program, observer Observer, lg *log.Logger) *Supervisor {
	return &Supervisor{program: program, observer: observer, lg: lg}
}

// Start launches the process. The returned reader yields its stdout and
// reaches EOF when it exits; closing it early discards the rest of the
// output. The writer feeds its stdin.
func (s *Supervisor) Start(ctx context.Context) (io.ReadCloser, io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, nil, fmt.Errorf("producer %s is already running", s.program)
	}

	cmd := exec.CommandContext(ctx, s.program.Path, s.program.Args...)
	cmd.WaitDelay = stopGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open producer stdout: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open producer stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.lg.Errorf("failed to launch %s: %v", s.program, err)
		return nil, nil, fmt.Errorf("failed to start producer: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.running = true
	s.exitErr = nil
	s.done = make(chan struct{})
	s.lg.Info("producer started", "command", s.program.String(), "pid", cmd.Process.Pid)
	if s.observer != nil {
		s.observer.ProducerStarted(s.program.String())
	}

	pr, pw := io.Pipe()
	go s.wait(cmd, stdout, pw, s.done)

	return pr, stdin, nil
}

// wait copies stdout until the process exits so that the reader side only
// sees EOF after Wait has collected the exit status.
func (s *Supervisor) wait(cmd *exec.Cmd, stdout io.Reader, pw *io.PipeWriter, done chan struct{}) {
	_, copyErr := io.Copy(pw, stdout)
	err := cmd.Wait()
	if err == nil && copyErr != nil {
		err = copyErr
	}

	s.mu.Lock()
	s.running = false
	s.exitErr = err
	s.mu.Unlock()

	if err != nil {
		s.lg.Warn("producer exited", "command", s.program.String(), "error", err)
	} else {
		s.lg.Info("producer exited", "command", s.program.String())
	}
	if s.observer != nil {
		s.observer.ProducerExited(err)
	}

	pw.Close()
	close(done)
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Running: s.running}
	if s.running && s.cmd != nil && s.cmd.Process != nil {
		st.Pid = s.cmd.Process.Pid
	}
	if s.exitErr != nil {
		st.Exit = s.exitErr.Error()
	}
	return st
}

// Done is closed once the current process has exited.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Stop closes the producer's stdin and kills it if it has not exited
// within a grace period.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cmd, stdin, done := s.cmd, s.stdin, s.done
	s.mu.Unlock()

	stdin.Close()
	select {
	case <-done:
		return nil
	case <-time.After(stopGrace):
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill producer: %w", err)
	}
	<-done
	return nil
}
