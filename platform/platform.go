// Package platform talks to the operating system: it finds the frontmost
// application, window titles, browser URLs and key presses. Everything
// here may fail; callers treat errors as "unknown" and carry on.
package platform

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/xerrors"

	"ulogme/tracker"
)

// Runner runs a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs commands with os/exec.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, xerrors.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// OS identifies which commands are used. Only darwin and linux are
// supported; any other value makes every source unavailable.
type OS string

const (
	Darwin OS = "darwin"
	Linux  OS = "linux"
)

func Current() OS {
	return OS(runtime.GOOS)
}

func osascript(ctx context.Context, run Runner, script string) (string, error) {
	out, err := run(ctx, "osascript", "-e", script)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// quote makes s safe inside an AppleScript string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func unavailable(os OS) error {
	return xerrors.Errorf("%s: %w", os, tracker.ErrUnavailable)
}

func trimLine(out []byte) string {
	return strings.TrimSpace(string(out))
}
