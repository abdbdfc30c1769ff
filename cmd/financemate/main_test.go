package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}

	buildDir := t.TempDir()
	binaryPath := filepath.Join(buildDir, "financemate")

	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}

	outside := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(outside, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(outside, "data"))

	version := exec.Command(binaryPath, "version")
	version.Dir = outside
	out, err := version.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, string(out))
	}
	if !strings.HasPrefix(string(out), "financemate ") {
		t.Fatalf("unexpected version output: %q", string(out))
	}

	help := exec.Command(binaryPath, "--help")
	help.Dir = outside
	if out, err := help.CombinedOutput(); err != nil {
		t.Fatalf("--help failed: %v\n%s", err, string(out))
	}

	migrate := exec.Command(binaryPath, "migrate")
	migrate.Dir = outside
	if out, err := migrate.CombinedOutput(); err != nil {
		t.Fatalf("migrate failed: %v\n%s", err, string(out))
	}
}
