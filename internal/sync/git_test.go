package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newGitClone creates a bare remote with one commit on main and returns the
// path of a working clone that can push to it.
func newGitClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "test@test.com")
	run(t, repoDir, "git", "config", "user.name", "Test")
	run(t, repoDir, "git", "branch", "-m", "main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return repoDir
}

// gitOutput returns the trimmed output of a git command in dir.
func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).Output()
	if err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
	return strings.TrimSpace(string(out))
}

func TestGitDestination(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "specs.jsonl", "main")
	ctx := context.Background()

	first := "{\"type\":\"header\",\"timestamp\":\"2026-01-01T00:00:00Z\",\"specification_count\":1,\"value_count\":0}\n" +
		"{\"type\":\"specification\",\"data\":{\"id\":\"Items\"}}\n"
	if err := dest.Write(ctx, []byte(first)); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "specs.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != first {
		t.Fatalf("file content = %q", got)
	}
	if msg := gitOutput(t, repoDir, "log", "--format=%s", "-1"); msg != "specs: export 1 specifications, 0 values" {
		t.Fatalf("last commit = %q", msg)
	}

	// A new timestamp over the same body is neither written nor committed.
	retimed := strings.Replace(first, "2026-01-01", "2026-02-01", 1)
	if err := dest.Write(ctx, []byte(retimed)); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if n := gitOutput(t, repoDir, "rev-list", "--count", "HEAD"); n != "2" {
		t.Fatalf("commit count = %s, want 2", n)
	}

	second := "{\"type\":\"header\",\"specification_count\":1,\"value_count\":1}\n" +
		"{\"type\":\"specification\",\"data\":{\"id\":\"Items\"}}\n" +
		"{\"type\":\"value\",\"data\":{\"id\":\"val-1\"}}\n"
	if err := dest.Write(ctx, []byte(second)); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if msg := gitOutput(t, repoDir, "log", "--format=%s", "-1"); msg != "specs: export 1 specifications, 1 values" {
		t.Fatalf("last commit = %q", msg)
	}
	// The push reached the remote.
	if local, remote := gitOutput(t, repoDir, "rev-parse", "HEAD"), gitOutput(t, repoDir, "rev-parse", "origin/main"); local != remote {
		t.Fatalf("HEAD %s not pushed (origin/main %s)", local, remote)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "data/specs.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "data", "specs.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content mismatch: got %q", string(got))
	}
}

func TestGitDestination_ErrorIncludesOutput(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "specs.jsonl", "no-such-branch")

	err := dest.Write(context.Background(), []byte(`{"type":"header"}`+"\n"))
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("err = %v, want git checkout failure", err)
	}
}

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"type":"header","specification_count":2,"value_count":5}` + "\n", "specs: export 2 specifications, 5 values"},
		{`{"type":"value"}` + "\n", "specs: update export"},
		{"not json", "specs: update export"},
	}
	for _, tt := range tests {
		if got := commitMessage([]byte(tt.data)); got != tt.want {
			t.Errorf("commitMessage(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v failed: %v\n%s", name, args, err, out)
	}
}
