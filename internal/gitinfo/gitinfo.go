// Package gitinfo detects the git context of a working directory by
// shelling out to the git binary. Detection is best effort: outside a
// repository, or without git installed, every field comes back empty.
package gitinfo

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/memtrail/memtrail/internal/recorder"
)

const gitTimeout = 5 * time.Second

// Detect returns the repository toplevel, current branch, and HEAD
// commit for dir. Errors are swallowed; callers get zero values instead.
func Detect(dir string) recorder.GitInfo {
	info := recorder.GitInfo{}
	info.Repo = run(dir, "rev-parse", "--show-toplevel")
	if info.Repo == "" {
		return info
	}
	info.Branch = run(dir, "rev-parse", "--abbrev-ref", "HEAD")
	info.Commit = run(dir, "rev-parse", "--short", "HEAD")
	return info
}

func run(dir string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
