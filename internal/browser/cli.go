package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"podflow/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the CLI driver.
type Option func(*CLIDriver)

// WithBinary overrides the default driver binary name.
func WithBinary(binary string) Option {
	return func(d *CLIDriver) {
		if binary != "" {
			d.binary = binary
		}
	}
}

// CLIDriver talks to an external browser automation helper. The helper owns
// the actual browser; this side speaks newline-delimited JSON commands over
// the helper's stdin and reads one JSON response per command from stdout.
type CLIDriver struct {
	binary string
}

// NewCLIDriver constructs a driver using defaults.
func NewCLIDriver(opts ...Option) *CLIDriver {
	driver := &CLIDriver{binary: "podflow-driver"}
	for _, opt := range opts {
		opt(driver)
	}
	return driver
}

// Open launches the helper process for one session.
func (d *CLIDriver) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	args := []string{"session", "--profile-dir", opts.ProfileDir}
	if opts.Headless {
		args = append(args, "--headless")
	}
	if opts.Language != "" {
		args = append(args, "--lang", opts.Language)
	}
	if opts.PageTimeout > 0 {
		args = append(args, "--timeout", strconv.Itoa(int(opts.PageTimeout/time.Second)))
	}
	if opts.ProxyURL != "" {
		args = append(args, "--proxy", opts.ProxyURL)
	}

	cmd := commandContext(ctx, d.binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "browser", "open",
			fmt.Sprintf("start %s", d.binary), err)
	}

	return &cliSession{
		cmd:     cmd,
		stdin:   stdin,
		scanner: bufio.NewScanner(stdout),
	}, nil
}

var _ Driver = (*CLIDriver)(nil)

type cliSession struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner

	mu     sync.Mutex
	nextID int64
	closed bool
}

type request struct {
	ID   int64          `json:"id"`
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
}

type response struct {
	ID    int64           `json:"id"`
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
	Kind  string          `json:"kind,omitempty"`
}

// call sends one command and waits for its response. Commands run strictly
// one at a time; the helper replies in order, so responses are matched by id
// while skipping any interleaved log lines.
func (s *cliSession) call(ctx context.Context, op string, args map[string]any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, services.Wrap(services.ErrExternalTool, "browser", op, "session already closed", nil)
	}

	s.nextID++
	req := request{ID: s.nextID, Op: op, Args: args}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	if _, err := s.stdin.Write(append(payload, '\n')); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "browser", op, "write to helper", err)
	}

	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var resp response
		if err := json.Unmarshal(s.scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp.ID != req.ID {
			continue
		}
		if !resp.OK {
			return nil, commandError(op, resp)
		}
		return resp.Value, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "browser", op, "read from helper", err)
	}
	return nil, services.Wrap(services.ErrExternalTool, "browser", op, "helper exited mid-command", nil)
}

func commandError(op string, resp response) error {
	switch resp.Kind {
	case "timeout":
		return services.Wrap(services.ErrTimeout, "browser", op, resp.Error, nil)
	case "invalid":
		return services.Wrap(services.ErrValidation, "browser", op, resp.Error, nil)
	default:
		return services.Wrap(services.ErrTransient, "browser", op, resp.Error, nil)
	}
}

func (s *cliSession) Navigate(ctx context.Context, url string) error {
	_, err := s.call(ctx, "navigate", map[string]any{"url": url})
	return err
}

func (s *cliSession) WaitVisible(ctx context.Context, selector string) error {
	_, err := s.call(ctx, "wait_visible", map[string]any{"selector": selector})
	return err
}

func (s *cliSession) Click(ctx context.Context, selector string) error {
	_, err := s.call(ctx, "click", map[string]any{"selector": selector})
	return err
}

func (s *cliSession) SendKeys(ctx context.Context, selector, text string) error {
	_, err := s.call(ctx, "send_keys", map[string]any{"selector": selector, "text": text})
	return err
}

func (s *cliSession) Text(ctx context.Context, selector string) (string, error) {
	value, err := s.call(ctx, "text", map[string]any{"selector": selector})
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return "", fmt.Errorf("decode text response: %w", err)
	}
	return text, nil
}

func (s *cliSession) Upload(ctx context.Context, selector, filePath string) error {
	_, err := s.call(ctx, "upload", map[string]any{"selector": selector, "path": filePath})
	return err
}

func (s *cliSession) Eval(ctx context.Context, expression string) (json.RawMessage, error) {
	return s.call(ctx, "eval", map[string]any{"expression": expression})
}

func (s *cliSession) Cookies(ctx context.Context) ([]Cookie, error) {
	value, err := s.call(ctx, "cookies", nil)
	if err != nil {
		return nil, err
	}
	var cookies []Cookie
	if err := json.Unmarshal(value, &cookies); err != nil {
		return nil, fmt.Errorf("decode cookies response: %w", err)
	}
	return cookies, nil
}

func (s *cliSession) SetCookies(ctx context.Context, cookies []Cookie) error {
	_, err := s.call(ctx, "set_cookies", map[string]any{"cookies": cookies})
	return err
}

// Close asks the helper to shut down and waits for it to exit.
func (s *cliSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_, _ = s.stdin.Write([]byte(`{"op":"quit"}` + "\n"))
	_ = s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "browser", "close", "helper exited with error", err)
	}
	return nil
}

var _ Session = (*cliSession)(nil)
