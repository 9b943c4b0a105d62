package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rowbound/rowbound/internal/engine"
	"github.com/rowbound/rowbound/internal/value"
)

// EnvPrefix prefixes the environment variables a command body injects,
// one per bound slot.
const EnvPrefix = "ROWBOUND_PARAM_"

// CommandBody adapts an exec spec into a test body. Each plan invocation
// runs the command once with that plan's bindings: "{name}" placeholders
// in argv expand to the binding's text, and unless env is disabled every
// binding is also exported as ROWBOUND_PARAM_<NAME>.
//
// Exit 0 is a success and the trimmed stdout becomes the plan's actual
// result. The configured assumption exit signals "this row does not
// apply" and the driver moves on. Anything else is a hard failure carrying
// the command's stderr.
func CommandBody(spec ExecSpec) engine.Body {
	return func(ctx context.Context, plan *engine.Plan) (string, error) {
		if spec.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
			defer cancel()
		}

		argv := expandArgv(spec.Argv, plan)
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = spec.Dir
		cmd.Env = os.Environ()
		if spec.Env {
			cmd.Env = append(cmd.Env, planEnviron(plan)...)
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil {
			return strings.TrimSpace(stdout.String()), nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", fmt.Errorf("command timed out after %s: %w", spec.Timeout, ctxErr)
			}
			return "", ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code == spec.AssumptionExit {
				return "", engine.Violated("command exited %d%s", code, stderrSuffix(&stderr))
			}
			return "", fmt.Errorf("command exited %d%s", code, stderrSuffix(&stderr))
		}
		return "", fmt.Errorf("run command %s: %w", argv[0], err)
	}
}

// expandArgv substitutes "{name}" placeholders with the plan's bindings.
// Unbound placeholders pass through literally.
func expandArgv(argv []string, plan *engine.Plan) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = arg
		for _, name := range plan.Names() {
			out[i] = strings.ReplaceAll(out[i], "{"+name+"}", plan.Text(name))
		}
	}
	return out
}

// planEnviron renders the plan's bindings as environment entries. Absent
// bindings are left unset so commands can distinguish absent from empty.
func planEnviron(plan *engine.Plan) []string {
	names := plan.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if value.IsAbsent(plan.Value(name)) {
			continue
		}
		out = append(out, EnvPrefix+envName(name)+"="+plan.Text(name))
	}
	return out
}

// envName uppercases a slot name and maps everything outside [A-Z0-9] to
// underscores, the portable shape for an environment variable.
func envName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// stderrSuffix renders captured stderr for an error message, empty when
// the command wrote nothing.
func stderrSuffix(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return ""
	}
	return ": " + s
}
