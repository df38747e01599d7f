package source

import (
	"context"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
)

// runCmd runs an inspection utility and returns its trimmed stdout. A
// launch failure, non-zero exit, deadline or non-UTF-8 output is reported
// as SOURCE_UNAVAILABLE.
func runCmd(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() != nil {
		return "", errors.Unavailable(ctx.Err(), "running %s", name)
	}
	if err != nil {
		return "", errors.Unavailable(err, "running %s", name)
	}
	if !utf8.Valid(out) {
		return "", errors.Unavailable(nil, "%s printed non-UTF-8 output", name)
	}
	return strings.TrimSpace(string(out)), nil
}
