package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits the export to a file in a local clone and pushes
// it. An export whose body matches the committed file is not written, so a
// new header timestamp alone never produces a commit.
type GitDestination struct {
	repo   string
	file   string // relative to repo
	branch string
}

// NewGitDestination returns a destination for the existing clone at repo.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) String() string {
	return "git:" + filepath.Join(d.repo, d.file) + "@" + d.branch
}

func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if prev, err := os.ReadFile(path); err == nil && bytes.Equal(exportBody(prev), exportBody(data)) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if _, err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	if _, err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	if _, err := d.git(ctx, "commit", "-m", commitMessage(data)); err != nil {
		return err
	}
	_, err := d.git(ctx, "push", "origin", d.branch)
	return err
}

// git runs a git subcommand in the clone. Failures carry git's output.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// commitMessage summarizes an export from its header line.
func commitMessage(data []byte) string {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	var h header
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return "specs: update export"
	}
	return fmt.Sprintf("specs: export %d specifications, %d values", h.SpecificationCount, h.ValueCount)
}
