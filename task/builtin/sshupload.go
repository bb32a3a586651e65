package builtin

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/task"
)

const sshDialTimeout = 15 * time.Second

var sshUploadSchema = task.Schema{
	{ID: "ssh_host", Name: "Hostname", Type: task.FieldInput},
	{ID: "ssh_user", Name: "User", Type: task.FieldInput},
	{ID: "ssh_password", Name: "Password", Type: task.FieldInput},
	{ID: "remote_path", Name: "Path On Remote Host", Type: task.FieldInput},
	{ID: "known_hosts", Name: "Known Hosts File", Type: task.FieldInput, Optional: true},
}

// SSHUploadTask copies every upstream dataset to remote_path on an SSH
// host. Without known_hosts any host key is accepted.
type SSHUploadTask struct {
	mu  sync.RWMutex
	log *logger.Logger
}

var _ task.Sink = (*SSHUploadTask)(nil)

func (s *SSHUploadTask) Tag() string         { return TagSSHUpload }
func (s *SSHUploadTask) Kind() task.Kind     { return task.KindSink }
func (s *SSHUploadTask) Schema() task.Schema { return sshUploadSchema }

func (s *SSHUploadTask) configure(log *logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log.WithComponent("ssh-upload")
}

func (s *SSHUploadTask) currentLog() *logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.log == nil {
		return logger.Nop()
	}
	return s.log
}

// Push opens one connection and writes each dataset through a remote cat.
func (s *SSHUploadTask) Push(ctx context.Context, t *task.Task, inputs []task.Dataset) error {
	v := t.Values()
	host := v["ssh_host"]
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "22")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if kh := v["known_hosts"]; kh != "" {
		cb, err := knownhosts.New(kh)
		if err != nil {
			return errors.InvalidInput("known_hosts", err.Error())
		}
		hostKey = cb
	}

	client, err := dialSSH(ctx, host, &ssh.ClientConfig{
		User:            v["ssh_user"],
		Auth:            []ssh.AuthMethod{ssh.Password(v["ssh_password"])},
		HostKeyCallback: hostKey,
		Timeout:         sshDialTimeout,
	})
	if err != nil {
		return errors.ConnectionFailed(host).WithCause(err)
	}
	defer func() { _ = client.Close() }()

	log := s.currentLog()
	for _, in := range inputs {
		dest := path.Join(v["remote_path"], in.FileName)
		if err := runCat(client, dest, in.Data); err != nil {
			return fmt.Errorf("ssh upload %s: %w", dest, err)
		}
		log.Info("dataset uploaded", logger.Fields("host", host, "path", dest, "bytes", len(in.Data)))
	}
	return nil
}

func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func runCat(client *ssh.Client, dest string, data []byte) error {
	session, err := client.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	var stderr bytes.Buffer
	session.Stdin = bytes.NewReader(data)
	session.Stderr = &stderr
	if err := session.Run("cat > " + shellQuote(dest)); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
