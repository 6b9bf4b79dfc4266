package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/hosts"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Log directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir: %+v", result)
	}

	result = CheckDirectoryAccess("Log directory", filepath.Join(dir, "missing"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected missing-directory failure: %+v", result)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = CheckDirectoryAccess("Log directory", file)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure: %+v", result)
	}
}

func TestCheckKeyFile(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(key, []byte("fake key"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	result := CheckKeyFile("Key", key)
	if !result.Passed {
		t.Fatalf("expected pass for 0600 key: %+v", result)
	}

	if err := os.Chmod(key, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	result = CheckKeyFile("Key", key)
	if result.Passed || !strings.Contains(result.Detail, "too open") {
		t.Fatalf("expected permissions failure: %+v", result)
	}

	result = CheckKeyFile("Key", filepath.Join(dir, "missing"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected missing-key failure: %+v", result)
	}
}

func TestCheckReachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	host := &hosts.Host{ID: "alpha", Address: addr.IP.String(), Port: addr.Port}
	result := CheckReachable(context.Background(), host)
	if !result.Passed {
		t.Fatalf("expected reachable: %+v", result)
	}

	_ = listener.Close()
	unreachable := &hosts.Host{ID: "beta", Address: addr.IP.String(), Port: addr.Port}
	result = CheckReachable(context.Background(), unreachable)
	if result.Passed {
		t.Fatalf("expected unreachable after close: %+v", result)
	}
}
