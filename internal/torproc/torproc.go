package torproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"podflow/internal/logging"
	"podflow/internal/services"
)

var commandContext = exec.CommandContext

const bootstrapTimeout = 2 * time.Minute

// Runner launches short-lived tor processes so anonymous stages get a fresh
// circuit per asset.
type Runner struct {
	binary string
	logger *slog.Logger
}

// NewRunner builds a runner for the given tor binary.
func NewRunner(binary string, logger *slog.Logger) *Runner {
	return &Runner{binary: binary, logger: logging.NewComponentLogger(logger, "torproc")}
}

// Process is one running tor instance.
type Process struct {
	cmd     *exec.Cmd
	port    int
	dataDir string
}

// ProxyURL returns the SOCKS endpoint clients should dial through.
func (p *Process) ProxyURL() string {
	return fmt.Sprintf("socks5://127.0.0.1:%d", p.port)
}

// Stop terminates the tor process and removes its data directory.
func (p *Process) Stop() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	if p.dataDir != "" {
		_ = os.RemoveAll(p.dataDir)
	}
}

// Start launches tor on a free port and waits for the circuit to bootstrap.
func (r *Runner) Start(ctx context.Context) (*Process, error) {
	if strings.TrimSpace(r.binary) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "torproc", "start", "tor binary not configured", nil)
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("pick socks port: %w", err)
	}
	dataDir, err := os.MkdirTemp("", "podflow-tor-*")
	if err != nil {
		return nil, fmt.Errorf("create tor data directory: %w", err)
	}

	cmd := commandContext(ctx, r.binary,
		"--SocksPort", strconv.Itoa(port),
		"--DataDirectory", dataDir,
	) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(dataDir)
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dataDir)
		return nil, services.Wrap(services.ErrExternalTool, "torproc", "start", fmt.Sprintf("start %s", r.binary), err)
	}

	proc := &Process{cmd: cmd, port: port, dataDir: dataDir}
	if err := r.awaitBootstrap(ctx, stdout); err != nil {
		proc.Stop()
		return nil, err
	}
	r.logger.Info("tor circuit ready", logging.Int("socks_port", port))
	return proc, nil
}

// awaitBootstrap scans tor's log output until the circuit reports fully
// bootstrapped, bounded by bootstrapTimeout.
func (r *Runner) awaitBootstrap(ctx context.Context, output io.Reader) error {
	deadline := time.Now().Add(bootstrapTimeout)
	done := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(output)
		for scanner.Scan() {
			line := scanner.Text()
			r.logger.Debug("tor output", logging.String("line", line))
			if strings.Contains(line, "Bootstrapped 100%") {
				done <- nil
				return
			}
		}
		if err := scanner.Err(); err != nil {
			done <- fmt.Errorf("read tor output: %w", err)
			return
		}
		done <- services.Wrap(services.ErrTransient, "torproc", "bootstrap", "tor exited before bootstrapping", nil)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Until(deadline)):
		return services.Wrap(services.ErrTimeout, "torproc", "bootstrap", "tor did not bootstrap in time", nil)
	}
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
