package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
)

// killGrace bounds how long output pipes are drained after the routine is killed
const killGrace = time.Second

// ExecClassifier runs an external inference routine once per payload.
// The payload is staged in ScratchDir, its path passed as the only argument,
// and the first line of stdout is the label.
type ExecClassifier struct {
	interpreter string
	script      string
	scratchDir  string
	timeout     time.Duration
}

// NewExecClassifier creates a subprocess classifier
func NewExecClassifier(cfg config.ClassifierConfig) *ExecClassifier {
	return &ExecClassifier{
		interpreter: cfg.Interpreter,
		script:      cfg.Script,
		scratchDir:  cfg.ScratchDir,
		timeout:     cfg.Timeout,
	}
}

// command resolves the argv prefix, ErrInferenceUnavailable if the routine cannot run
func (c *ExecClassifier) command() ([]string, error) {
	if c.script == "" {
		return nil, fmt.Errorf("%w: no script configured", interfaces.ErrInferenceUnavailable)
	}
	if _, err := os.Stat(c.script); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInferenceUnavailable, err)
	}
	if c.interpreter == "" {
		return []string{c.script}, nil
	}
	path, err := exec.LookPath(c.interpreter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInferenceUnavailable, err)
	}
	return []string{path, c.script}, nil
}

// Classify stages payload under name, runs the routine on it and removes the file
func (c *ExecClassifier) Classify(ctx context.Context, name string, payload []byte) (string, error) {
	argv, err := c.command()
	if err != nil {
		return "", err
	}

	localPath, err := c.stage(name, payload)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			logger.WarnCtx(ctx, "failed to clean up %s: %v", localPath, err)
		}
	}()

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], append(argv[1:], localPath)...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	cmd.WaitDelay = killGrace

	err = cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("inference timed out after %s", c.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("inference failed: %w (stderr: %s)", err, strings.TrimSpace(errOut.String()))
	}

	label := firstLine(out.String())
	if label == "" {
		return "", fmt.Errorf("inference produced no label")
	}
	return label, nil
}

func (c *ExecClassifier) stage(name string, payload []byte) (string, error) {
	dir := c.scratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = "payload"
	}
	localPath := filepath.Join(dir, base)
	if err := os.WriteFile(localPath, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}
	return localPath, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
