package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"taskweave/internal/core"
)

// Shell runs a command with "sh -c".
//
// The command sees only the variables listed in its env parameter, as
// "NAME=value" strings; nothing is inherited from the host, not even PATH.
// The optional stdin input is fed to the command and its stdout becomes
// the stdout output. A non-zero exit fails the task.
//
// The normalize parameter rewrites stdout before it is recorded: "lines"
// converts CRLF to LF, "stable" also masks timestamps, durations, process
// IDs and addresses.
var Shell = &core.Definition{
	Type: "shell",
	Params: []core.ParamSpec{
		{Name: "command", Kind: core.KindString},
		{Name: "env", Kind: core.KindList, Default: core.MustList()},
		{Name: "dir", Kind: core.KindString, Default: core.String("")},
		{Name: "normalize", Kind: core.KindString, Default: core.String(NormalizeRaw)},
	},
	Inputs:  []core.SlotSpec{{Name: "stdin", Kind: core.KindString, Optional: true}},
	Outputs: []core.SlotSpec{{Name: "stdout", Kind: core.KindString}},
	Run:     runShell,
}

// maxStderr bounds the stderr excerpt carried in a failure.
const maxStderr = 2048

func runShell(ctx context.Context, in core.Inputs, p core.Params) (core.Outputs, error) {
	command := p.Text("command")
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("command is empty")
	}
	env, err := isolatedEnv(p.Strings("env"))
	if err != nil {
		return nil, err
	}
	normalize, err := normalizer(p.Text("normalize"))
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = p.Text("dir")
	cmd.Env = env
	isolateProcess(cmd)
	if s, ok := in["stdin"].Str(); ok {
		cmd.Stdin = strings.NewReader(s)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killProcess(cmd)
		<-done
		return nil, fmt.Errorf("command cancelled: %w", ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command exited with status %d: %s", exitErr.ExitCode(), tail(stderr.String(), maxStderr))
		}
		return nil, fmt.Errorf("run command: %w", err)
	}
	return core.Outputs{"stdout": core.String(normalize(stdout.String()))}, nil
}

// isolatedEnv validates "NAME=value" entries. The result is never nil so
// the command does not inherit the host environment.
func isolatedEnv(entries []string) ([]string, error) {
	env := make([]string, 0, len(entries))
	for _, e := range entries {
		name, _, ok := strings.Cut(e, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("env entry %q is not NAME=value", e)
		}
		env = append(env, e)
	}
	return env, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
