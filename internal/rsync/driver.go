package rsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shuttle/internal/hosts"
	"shuttle/internal/logging"
	"shuttle/internal/remote"
	"shuttle/internal/services"
)

// Streamer runs a command on a remote host and delivers its stdout in
// chunks. remote.Manager satisfies it.
type Streamer interface {
	Stream(ctx context.Context, host *hosts.Host, command string, onData func([]byte)) (int, string, error)
}

// Driver copies one file between two remote hosts.
type Driver interface {
	Copy(ctx context.Context, req CopyRequest) error
}

// CopyRequest describes a single file copy. The transfer runs on the
// source host, pushing to the destination over ssh.
type CopyRequest struct {
	Source      *hosts.Host
	Destination *hosts.Host
	SourcePath  string
	DestPath    string
	OnProgress  func(Progress)
}

// TransferError reports a copy that rsync itself rejected.
type TransferError struct {
	ExitCode int
	Tail     string
}

func (e *TransferError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("rsync exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("rsync exited with code %d: %s", e.ExitCode, e.Tail)
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the rsync binary invoked on the source host.
func WithBinary(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithLogger attaches a logger for per-copy diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner drives rsync over an established remote session.
type Runner struct {
	streamer Streamer
	binary   string
	logger   *slog.Logger
}

// NewRunner constructs a Driver backed by the given command streamer.
func NewRunner(streamer Streamer, opts ...Option) *Runner {
	r := &Runner{
		streamer: streamer,
		binary:   "rsync",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Copy pushes one file from the source host to the destination host,
// reporting progress as rsync emits it. A nonzero rsync exit becomes a
// *TransferError; transport failures pass through from the streamer.
func (r *Runner) Copy(ctx context.Context, req CopyRequest) error {
	command := r.command(req)
	log := r.logger.With(
		logging.String(logging.FieldHost, req.Source.ID),
		logging.String("dest_host", req.Destination.ID),
	)
	log.Debug("starting rsync copy",
		logging.String("source_path", req.SourcePath),
		logging.String("dest_path", req.DestPath))

	p := newParser()
	exitCode, stderr, err := r.streamer.Stream(ctx, req.Source, command, func(chunk []byte) {
		if req.OnProgress == nil {
			return
		}
		for _, update := range p.Feed(string(chunk)) {
			req.OnProgress(update)
		}
	})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		terr := &TransferError{ExitCode: exitCode, Tail: stderrTail(stderr)}
		return services.Wrap(services.ErrRemoteCommand, "rsync", "copy", "transfer failed", terr)
	}
	log.Debug("rsync copy finished",
		logging.String("source_path", req.SourcePath))
	return nil
}

// command builds the rsync invocation run on the source host. The remote
// shell hop to the destination pins the configured port and skips host key
// verification to match the session manager's dial policy.
func (r *Runner) command(req CopyRequest) string {
	transport := fmt.Sprintf("ssh -p %d -o StrictHostKeyChecking=no", req.Destination.Port)
	destSpec := fmt.Sprintf("%s@%s:%s", req.Destination.User, req.Destination.Address, req.DestPath)
	parts := []string{
		r.binary,
		"-az",
		"--partial",
		"--info=progress2",
		"--mkpath",
		"-e", remote.ShellQuote(transport),
		remote.ShellQuote(req.SourcePath),
		remote.ShellQuote(destSpec),
	}
	return strings.Join(parts, " ")
}

// stderrTail trims rsync's stderr to its last few lines for error reports.
func stderrTail(stderr string) string {
	const maxLines = 5
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
