package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTP stores objects on a remote host; a fresh connection is made per call.
type SFTP struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
	BasePath string
	BaseURL  string
	Timeout  time.Duration

	// HostKeyCallback defaults to accepting any key when nil.
	HostKeyCallback ssh.HostKeyCallback

	dial func(ctx context.Context) (*session, error)
}

// session is an sftp client plus the transport it runs on.
// sftp.Client.Close leaves the SSH connection open, so Close shuts both.
type session struct {
	*sftp.Client
	conn io.Closer
}

func (s *session) Close() error {
	err := s.Client.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *SFTP) client(ctx context.Context) (*session, error) {
	if s.dial != nil {
		return s.dial(ctx)
	}
	return s.connect(ctx)
}

func (s *SFTP) connect(ctx context.Context) (*session, error) {
	type connResult struct {
		client *session
		err    error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		cfg, err := s.clientConfig()
		if err != nil {
			resultChan <- connResult{nil, err}
			return
		}

		addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
		sshConn, err := ssh.Dial("tcp", addr, cfg)
		if err != nil {
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to connect: %w", err)}
			return
		}

		client, err := sftp.NewClient(sshConn)
		if err != nil {
			sshConn.Close()
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to create client: %w", err)}
			return
		}
		resultChan <- connResult{&session{Client: client, conn: sshConn}, nil}
	}()

	select {
	case <-ctx.Done():
		// The dial goroutine may still finish; close whatever it produces.
		go func() {
			if res := <-resultChan; res.client != nil {
				res.client.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.client, res.err
	}
}

func (s *SFTP) clientConfig() (*ssh.ClientConfig, error) {
	hostKey := s.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg := &ssh.ClientConfig{User: s.User, HostKeyCallback: hostKey, Timeout: timeout}

	switch {
	case s.KeyFile != "":
		key, err := os.ReadFile(s.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to parse private key: %w", err)
		}
		cfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case s.Password != "":
		cfg.Auth = []ssh.AuthMethod{ssh.Password(s.Password)}
	default:
		return nil, errors.New("sftp: no authentication method provided")
	}
	return cfg, nil
}

func (s *SFTP) remotePath(key string) string {
	return path.Join(strings.TrimRight(s.BasePath, "/"), key)
}

func (s *SFTP) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	dst := s.remotePath(key)
	if err := client.MkdirAll(path.Dir(dst)); err != nil {
		return fmt.Errorf("sftp: failed to create directory: %w", err)
	}
	f, err := client.Create(dst)
	if err != nil {
		return fmt.Errorf("sftp: failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = client.Remove(dst)
		return fmt.Errorf("sftp: failed to write file: %w", err)
	}
	return f.Close()
}

func (s *SFTP) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Remove(s.remotePath(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("sftp: failed to delete file: %w", err)
	}
	return nil
}

func (s *SFTP) URL(key string) string {
	return publicURL(s.BaseURL, key)
}
