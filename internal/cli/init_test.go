package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInitCreatesLayout(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	baseDir := filepath.Join(tmpDir, ".storyforge")

	for _, dir := range []string{
		filepath.Join(baseDir, "runs"),
		filepath.Join(baseDir, "daemon", "inbox"),
		filepath.Join(baseDir, "daemon", "outbox"),
		filepath.Join(baseDir, "daemon", "state"),
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	configPath := filepath.Join(baseDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "provider:") {
		t.Error("config.yaml missing provider setting")
	}
	if !strings.Contains(string(data), "max_steps:") {
		t.Error("config.yaml missing max_steps setting")
	}
}

func TestRunInitNoOverwriteWithoutForce(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	baseDir := filepath.Join(tmpDir, ".storyforge")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		t.Fatal(err)
	}

	sentinel := "# sentinel content\n"
	configPath := filepath.Join(baseDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(configPath)
	if string(data) != sentinel {
		t.Error("config.yaml was overwritten without --force")
	}
}

func TestRunInitForceOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	baseDir := filepath.Join(tmpDir, ".storyforge")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		t.Fatal(err)
	}

	sentinel := "# sentinel content\n"
	configPath := filepath.Join(baseDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = true
	defer func() { initForce = false }()

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(configPath)
	if string(data) == sentinel {
		t.Error("config.yaml was NOT overwritten with --force")
	}
}

func TestWriteIfMissing(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.txt")

	initForce = false
	wrote, err := writeIfMissing(path, "hello")
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if !wrote {
		t.Error("first write should return true")
	}

	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if wrote {
		t.Error("second write should return false without force")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Errorf("content changed without force: %q", string(data))
	}

	initForce = true
	defer func() { initForce = false }()

	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("force write failed: %v", err)
	}
	if !wrote {
		t.Error("force write should return true")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "world" {
		t.Errorf("force write didn't overwrite: %q", string(data))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Errorf("unexpected truncation: %q", got)
	}
	long := strings.Repeat("a", 50)
	got := truncate(long, 40)
	if len(got) != 40 {
		t.Errorf("expected length 40, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}
