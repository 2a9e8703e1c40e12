package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/martinemde/manus/agentloop"
)

// BashName is the registered name of the shell tool.
const BashName = "bash"

const bashSentinel = "__MANUS_CMD_DONE__"

const bashDescription = `Execute a bash command in the terminal.
* Long running commands: for commands that may run indefinitely, run them in the background and redirect output to a file, e.g. command = ` + "`python3 app.py > server.log 2>&1 &`" + `.
* Interactive commands: the session has no terminal, so avoid commands that wait for input.
* Timeout: if a command times out, the session must be restarted with restart = true before further use.
* State such as the working directory and exported variables persists between calls.`

// Bash runs commands in a persistent bash session inside the workspace.
type Bash struct {
	ws      *Workspace
	timeout time.Duration

	mu      sync.Mutex
	session *bashSession
}

var (
	_ agentloop.Tool    = (*Bash)(nil)
	_ agentloop.Cleaner = (*Bash)(nil)
)

// NewBash creates the shell tool. timeout bounds each command.
func NewBash(ws *Workspace, timeout time.Duration) *Bash {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Bash{ws: ws, timeout: timeout}
}

func (b *Bash) Definition() agentloop.ToolDefinition {
	return agentloop.ToolDefinition{
		Name:        BashName,
		Description: bashDescription,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The bash command to execute.",
				},
				"restart": map[string]any{
					"type":        "boolean",
					"description": "Restart the bash session before running anything.",
				},
			},
		},
	}
}

func (b *Bash) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Command string `json:"command"`
		Restart bool   `json:"restart"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", agentloop.ErrInvalidArguments, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if args.Restart {
		if b.session != nil {
			_ = b.session.stop()
			b.session = nil
		}
		if strings.TrimSpace(args.Command) == "" {
			return "tool has been restarted.", nil
		}
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", errors.New("no command provided")
	}

	if b.session == nil {
		s, err := startBashSession(b.ws.Root())
		if err != nil {
			return "", err
		}
		b.session = s
	}

	out, code, err := b.session.run(ctx, args.Command, b.timeout)
	if err != nil {
		return out, err
	}
	if code != 0 {
		out = strings.TrimRight(out, "\n") + fmt.Sprintf("\n\n[Exit code: %d]", code)
	}
	return out, nil
}

// Cleanup stops the bash session if one is running.
func (b *Bash) Cleanup(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.stop()
	b.session = nil
	return err
}

// bashSession is a long-lived bash process. Stdout and stderr share one
// pipe; a sentinel line carrying $? marks the end of each command.
type bashSession struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	lines    chan string
	timedOut bool

	// done is closed by stop; readerDone is closed when the reader exits.
	done       chan struct{}
	readerDone chan struct{}
}

func startBashSession(dir string) (*bashSession, error) {
	cmd := exec.Command("/bin/bash", "--noprofile", "--norc")
	cmd.Dir = dir
	cmd.Env = filterEnvironment()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("bash: %w", err)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("bash: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("bash: start: %w", err)
	}
	pw.Close()

	s := &bashSession{
		cmd:        cmd,
		stdin:      stdin,
		lines:      make(chan string, 1024),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go s.read(pr)
	return s, nil
}

// read forwards output lines until the pipe closes or the session stops.
func (s *bashSession) read(pr *os.File) {
	defer close(s.readerDone)
	defer close(s.lines)
	defer pr.Close()
	sc := bufio.NewScanner(pr)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-s.done:
			return
		}
	}
}

// run sends command and collects output until the sentinel appears. After a
// timeout or cancellation the session is unusable until restarted.
func (s *bashSession) run(ctx context.Context, command string, timeout time.Duration) (string, int, error) {
	if s.timedOut {
		return "", 0, fmt.Errorf("timed out: bash has not returned in %s and must be restarted", timeout)
	}

	if _, err := fmt.Fprintf(s.stdin, "%s\n__manus_rc=$?; echo; echo %s$__manus_rc\n", command, bashSentinel); err != nil {
		return "", 0, fmt.Errorf("bash: write command: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out []string
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return strings.Join(out, "\n"), 0, errors.New("bash session exited")
			}
			idx := strings.Index(line, bashSentinel)
			if idx < 0 {
				out = append(out, line)
				continue
			}
			if idx > 0 {
				out = append(out, line[:idx])
			}
			code, _ := strconv.Atoi(strings.TrimSpace(line[idx+len(bashSentinel):]))
			return trimSentinelPadding(out), code, nil
		case <-timer.C:
			s.timedOut = true
			return strings.Join(out, "\n"), 0, fmt.Errorf("timed out: bash has not returned in %s and must be restarted", timeout)
		case <-ctx.Done():
			s.timedOut = true
			return strings.Join(out, "\n"), 0, ctx.Err()
		}
	}
}

// trimSentinelPadding drops the blank line echoed before the sentinel.
func trimSentinelPadding(out []string) string {
	if n := len(out); n > 0 && out[n-1] == "" {
		out = out[:n-1]
	}
	return strings.Join(out, "\n")
}

func (s *bashSession) stop() error {
	close(s.done)
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
	}
	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("bash: stop: %w", err)
	}
	return nil
}
