package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// errToolMissing marks a tool binary that could not be started.
var errToolMissing = errors.New("tool not found")

// shellNotFound is the exit status POSIX shells use for unknown commands.
const shellNotFound = 127

type toolOutput struct {
	stdout string
	stderr string
}

// runTool runs argv to completion. stdin may be empty.
// It returns errToolMissing when argv[0] cannot be found.
func runTool(ctx context.Context, argv []string, shell bool, stdin string) (toolOutput, error) {
	var cmd *exec.Cmd
	if shell {
		cmd = exec.CommandContext(ctx, "sh", "-c", shellJoin(argv))
	} else {
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	}
	configureProcess(cmd)
	cmd.WaitDelay = 5 * time.Second

	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	err := cmd.Run()
	res := toolOutput{stdout: out.String(), stderr: errBuf.String()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return res, errToolMissing
	}
	var exitErr *exec.ExitError
	if shell && errors.As(err, &exitErr) && exitErr.ExitCode() == shellNotFound {
		return res, errToolMissing
	}
	return res, err
}

// shellJoin quotes argv for sh -c. The first element is left unquoted so a
// configured command may carry its own shell syntax.
func shellJoin(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if i == 0 {
			parts[i] = a
			continue
		}
		parts[i] = shellQuote(a)
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:@%+,", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func describeOutput(out toolOutput) string {
	return fmt.Sprintf("[stderr]\n%s\n[stdout]\n%s", out.stderr, out.stdout)
}
