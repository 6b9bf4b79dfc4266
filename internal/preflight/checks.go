// Package preflight validates the local environment and host reachability
// before the daemon starts taking work.
package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"shuttle/internal/config"
	"shuttle/internal/hosts"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

const dialTimeout = 5 * time.Second

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config, registry *hosts.Registry) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	for _, host := range registry.All() {
		if host.KeyFile != "" {
			results = append(results, CheckKeyFile(fmt.Sprintf("Key for %s", host.ID), host.KeyFile))
		}
		results = append(results, CheckReachable(ctx, host))
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckKeyFile verifies that a private key exists, is a regular file, and
// is not group or world readable.
func CheckKeyFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: permissions %04o are too open)", path, perm)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (ok)", path)}
}

// CheckReachable verifies the host accepts TCP connections on its SSH
// port. It does not authenticate.
func CheckReachable(ctx context.Context, host *hosts.Host) Result {
	name := fmt.Sprintf("Host %s", host.ID)
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", host.Endpoint())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", host.Endpoint(), err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", host.Endpoint())}
}
