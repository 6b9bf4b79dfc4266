package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"shuttle/internal/hosts"
	"shuttle/internal/services"
)

// Output captures a completed one-shot command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Entry describes one remote directory entry.
type Entry struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// Run executes a one-shot command on the host's session, capturing both
// streams fully before returning. A nonzero exit is reported through
// Output.ExitCode, not as an error; only transport failures error.
func (m *Manager) Run(ctx context.Context, host *hosts.Host, command string) (Output, error) {
	sess, err := m.acquire(host)
	if err != nil {
		return Output{}, err
	}

	channel, err := sess.client.NewSession()
	if err != nil {
		m.evict(sess)
		return Output{}, services.Wrap(services.ErrConnection, "remote", "run", "open channel to "+sess.key, err)
	}
	defer channel.Close()

	var stdout, stderr bytes.Buffer
	channel.Stdout = &stdout
	channel.Stderr = &stderr

	done := watchContext(ctx, channel)
	runErr := channel.Run(command)
	close(done)

	if ctx.Err() != nil {
		return Output{}, services.Wrap(services.ErrConnection, "remote", "run", "command aborted on "+sess.key, ctx.Err())
	}

	exitCode, err := exitStatus(runErr)
	if err != nil {
		m.evict(sess)
		return Output{}, services.Wrap(services.ErrConnection, "remote", "run", "command transport on "+sess.key, err)
	}
	return Output{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}

// Stream executes a long-lived command, invoking onData for every stdout
// chunk as it arrives. Stderr is captured separately and returned with the
// command's exit status.
func (m *Manager) Stream(ctx context.Context, host *hosts.Host, command string, onData func([]byte)) (int, string, error) {
	sess, err := m.acquire(host)
	if err != nil {
		return -1, "", err
	}

	channel, err := sess.client.NewSession()
	if err != nil {
		m.evict(sess)
		return -1, "", services.Wrap(services.ErrConnection, "remote", "stream", "open channel to "+sess.key, err)
	}
	defer channel.Close()

	stdoutPipe, err := channel.StdoutPipe()
	if err != nil {
		return -1, "", services.Wrap(services.ErrConnection, "remote", "stream", "stdout pipe", err)
	}
	var stderr bytes.Buffer
	channel.Stderr = &stderr

	if err := channel.Start(command); err != nil {
		m.evict(sess)
		return -1, "", services.Wrap(services.ErrConnection, "remote", "stream", "start command on "+sess.key, err)
	}

	done := watchContext(ctx, channel)
	readErr := readChunks(stdoutPipe, onData)
	waitErr := channel.Wait()
	close(done)

	if ctx.Err() != nil {
		return -1, stderr.String(), services.Wrap(services.ErrConnection, "remote", "stream", "command aborted on "+sess.key, ctx.Err())
	}
	if readErr != nil {
		m.evict(sess)
		return -1, stderr.String(), services.Wrap(services.ErrConnection, "remote", "stream", "read output from "+sess.key, readErr)
	}

	exitCode, err := exitStatus(waitErr)
	if err != nil {
		m.evict(sess)
		return -1, stderr.String(), services.Wrap(services.ErrConnection, "remote", "stream", "command transport on "+sess.key, err)
	}
	return exitCode, stderr.String(), nil
}

// Exists reports whether path exists on the host. Built on Run so callers
// can filter submissions; the transfer engine itself never calls this.
func (m *Manager) Exists(ctx context.Context, host *hosts.Host, path string) (bool, error) {
	out, err := m.Run(ctx, host, "test -e "+ShellQuote(path))
	if err != nil {
		return false, err
	}
	switch out.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, services.Wrap(services.ErrRemoteCommand, "remote", "exists",
			fmt.Sprintf("test -e exited %d on %s: %s", out.ExitCode, host.ID, strings.TrimSpace(out.Stderr)), nil)
	}
}

// ListDir lists a remote directory over SFTP, sorted by name.
func (m *Manager) ListDir(ctx context.Context, host *hosts.Host, dir string) ([]Entry, error) {
	sess, err := m.acquire(host)
	if err != nil {
		return nil, err
	}

	client, ok := sess.client.(*ssh.Client)
	if !ok {
		return nil, services.Wrap(services.ErrRemoteCommand, "remote", "listdir", "sftp unavailable on this session", nil)
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		m.evict(sess)
		return nil, services.Wrap(services.ErrConnection, "remote", "listdir", "open sftp to "+sess.key, err)
	}
	defer sftpClient.Close()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	infos, err := sftpClient.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrRemoteCommand, "remote", "listdir",
			fmt.Sprintf("read %s on %s", dir, host.ID), err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:    info.Name(),
			Size:    info.Size(),
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// watchContext closes the channel when ctx ends so blocked Run/Wait calls
// unwind. The returned channel must be closed when the command finishes.
func watchContext(ctx context.Context, channel *ssh.Session) chan struct{} {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = channel.Close()
		case <-done:
		}
	}()
	return done
}

func readChunks(r io.Reader, onData func([]byte)) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 && onData != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onData(chunk)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// exitStatus maps a session Wait/Run error to the remote exit code.
// Transport-level failures come back as a non-nil error instead.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, err
}

// ShellQuote wraps s in single quotes for safe interpolation into a remote
// shell command line.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
