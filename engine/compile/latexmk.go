package compile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
)

// maxDiagnostic caps how much toolchain output is kept per attempt.
const maxDiagnostic = 16 << 10

// LatexmkBuilder runs a LaTeX build command in the directory of the target.
// The target's base name is appended to the configured arguments.
type LatexmkBuilder struct {
	args    []string
	timeout time.Duration
}

// NewLatexmkBuilder parses command with shell quoting rules.
func NewLatexmkBuilder(command string, timeout time.Duration) (*LatexmkBuilder, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parsing build command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("build command is empty")
	}
	return &LatexmkBuilder{args: args, timeout: timeout}, nil
}

func (b *LatexmkBuilder) Build(ctx context.Context, target string) (string, string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	dir := filepath.Dir(target)
	name := filepath.Base(target)
	args := append(append([]string{}, b.args[1:]...), name)
	cmd := exec.CommandContext(ctx, b.args[0], args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", tail(out.String(), maxDiagnostic), fmt.Errorf("running %s: %w", b.args[0], err)
	}
	artifact := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+".pdf")
	if _, err := os.Stat(artifact); err != nil {
		return "", tail(out.String(), maxDiagnostic), fmt.Errorf("build produced no artifact: %w", err)
	}
	return artifact, "", nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
