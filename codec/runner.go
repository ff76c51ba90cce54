package codec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fileflow/logger"
	"fileflow/models"
)

// Runner invokes a collaborator process. Implementations map every failure
// onto an execution error kind.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec under a per-call timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// maximum stderr echoed into a job's error message
const stderrLimit = 512

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children that inherit the pipes must not hold Wait open past cancellation
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	logger.Debugf("exec %s %s took %s", name, strings.Join(args, " "), time.Since(start).Round(time.Millisecond))
	if err == nil {
		return stdout.Bytes(), nil
	}
	return nil, classifyExecError(ctx, name, err, stderr.String())
}

func classifyExecError(ctx context.Context, name string, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.WrapError(models.KindTimeout, err, "%s did not finish in time", name)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return models.WrapError(models.KindInternal, err, "%s was cancelled", name)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return models.WrapError(models.KindInternal, err, "%s is not installed", name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return models.NewError(models.KindResourceExhausted, "%s was killed by %s", name, status.Signal())
		}
		msg := trimStderr(stderr)
		if msg == "" {
			msg = exitErr.Error()
		}
		return models.NewError(models.KindInvalidInput, "%s rejected the input: %s", name, msg)
	}
	return models.WrapError(models.KindInternal, err, "run %s", name)
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrLimit {
		s = s[len(s)-stderrLimit:]
	}
	return s
}

// workspace is a private temp directory for one collaborator call.
type workspace struct {
	dir string
}

func newWorkspace(prefix string) (*workspace, error) {
	dir, err := os.MkdirTemp("", "fileflow-"+prefix+"-")
	if err != nil {
		return nil, models.WrapError(models.KindInternal, err, "create workspace")
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// write stores data as name and returns its path.
func (w *workspace) write(name string, data []byte) (string, error) {
	p := w.path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", models.WrapError(models.KindInternal, err, "stage %s", name)
	}
	return p, nil
}

// read returns the produced file. A missing or empty output means the
// collaborator failed silently.
func (w *workspace) read(name, tool string) ([]byte, error) {
	data, err := os.ReadFile(w.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewError(models.KindInvalidInput, "%s produced no output", tool)
		}
		return nil, models.WrapError(models.KindInternal, err, "read %s output", tool)
	}
	if len(data) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "%s produced an empty output", tool)
	}
	return data, nil
}

func (w *workspace) close() {
	if err := os.RemoveAll(w.dir); err != nil {
		logger.Warnf("Failed to remove workspace %s: %v", w.dir, err)
	}
}

// inputName keeps the extension so collaborators can pick a demuxer.
func inputName(base, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Available reports whether a binary can be found in PATH.
func Available(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}
