// Package harness runs an external Merkle file server for the lifetime of a
// fetch or a test: start, wait until it answers, and always tear it down.
package harness

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var ErrExited = errors.New("harness: process exited")

type Process struct {
	cfg     Config
	cmd     *exec.Cmd
	logger  log.Logger
	console io.WriteCloser

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// Start launches cfg.Command and blocks until cfg.ReadyURL answers. On any
// failure the process is stopped before Start returns.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("harness: empty command")
	}
	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "harness: stdout pipe")
	}
	cmd.Stderr = cmd.Stdout

	p := &Process{
		cfg:    cfg,
		cmd:    cmd,
		logger: log.New("proc", cfg.Command[0]),
		done:   make(chan struct{}),
	}
	if cfg.ConsoleLog.File != "" {
		p.console = &lumberjack.Logger{
			Filename:   cfg.ConsoleLog.File,
			MaxSize:    cfg.ConsoleLog.MaxSize,
			MaxBackups: cfg.ConsoleLog.MaxBackups,
		}
	}
	if err := cmd.Start(); err != nil {
		p.closeConsole()
		return nil, errors.Wrapf(err, "harness: start %s", cfg.Command[0])
	}
	p.logger.Info("Started external server", "pid", cmd.Process.Pid)

	go p.pump(out)

	if err := p.waitReady(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// pump forwards output lines until EOF, then reaps the process.
func (p *Process) pump(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		p.logger.Debug("Server output", "line", line)
		if p.console != nil {
			_, _ = fmt.Fprintln(p.console, line)
		}
	}
	if err := sc.Err(); err != nil {
		// The rest must still be read or the process blocks on a full pipe.
		p.logger.Warn("Server output unreadable, discarding the rest", "err", err)
		_, _ = io.Copy(io.Discard, r)
	}
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *Process) waitReady(ctx context.Context) error {
	if p.cfg.ReadyURL == "" {
		return nil
	}
	httpc := &http.Client{Timeout: time.Second}
	poll := func() error {
		select {
		case <-p.done:
			return backoff.Permanent(errors.Wrapf(ErrExited, "before ready: %v", p.waitErr))
		default:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ReadyURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("readiness status %d", resp.StatusCode)
		}
		return nil
	}

	interval := p.cfg.ReadyInterval
	if interval <= 0 {
		interval = time.Second
	}
	if p.cfg.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ReadyTimeout)
		defer cancel()
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.Retry(poll, b); err != nil {
		return errors.Wrap(err, "harness: server not ready")
	}
	p.logger.Info("External server ready", "url", p.cfg.ReadyURL)
	return nil
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Close stops the process with SIGTERM, escalating to SIGKILL after
// StopTimeout. It is safe to call more than once.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		select {
		case <-p.done:
		default:
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
			grace := p.cfg.StopTimeout
			if grace <= 0 {
				grace = 5 * time.Second
			}
			select {
			case <-p.done:
			case <-time.After(grace):
				p.logger.Warn("External server ignored SIGTERM, killing")
				_ = p.cmd.Process.Kill()
				<-p.done
			}
		}
		p.logger.Info("External server stopped", "err", p.waitErr)
		p.closeErr = p.closeConsole()
	})
	return p.closeErr
}

func (p *Process) closeConsole() error {
	if p.console == nil {
		return nil
	}
	return p.console.Close()
}
