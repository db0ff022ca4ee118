package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig configures the sftp method.
type SFTPConfig struct {
	Host     string
	Port     int
	Username string

	// Password or PrivateKeyFile (with optional Passphrase) authenticates.
	Password       string
	PrivateKeyFile string
	Passphrase     string

	// KnownHostsFile verifies the server key. InsecureIgnoreHostKey must be
	// set explicitly to skip verification.
	KnownHostsFile        string
	InsecureIgnoreHostKey bool

	Directory string
}

// SFTPStrategy uploads the file over SFTP.
type SFTPStrategy struct {
	cfg     SFTPConfig
	timeout time.Duration
}

// NewSFTPStrategy creates an SFTPStrategy.
func NewSFTPStrategy(cfg SFTPConfig, timeout time.Duration) *SFTPStrategy {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &SFTPStrategy{cfg: cfg, timeout: timeout}
}

// Target implements Strategy.
func (s *SFTPStrategy) Target() string { return joinTarget(s.cfg.Host, s.cfg.Port) }

// clientConfig builds the SSH configuration. It fails before any network
// activity when credentials or host key settings are missing or unreadable.
func (s *SFTPStrategy) clientConfig() (*ssh.ClientConfig, error) {
	if s.cfg.Host == "" || s.cfg.Username == "" {
		return nil, fmt.Errorf("%w: sftp host and username are required", ErrNotConfigured)
	}

	var auth []ssh.AuthMethod
	if s.cfg.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read private key: %v", ErrNotConfigured, err)
		}
		var signer ssh.Signer
		if s.cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(s.cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse private key: %v", ErrNotConfigured, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if s.cfg.Password != "" {
		auth = append(auth, ssh.Password(s.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%w: sftp needs a password or a private key", ErrNotConfigured)
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case s.cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(s.cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: known_hosts: %v", ErrNotConfigured, err)
		}
		hostKey = cb
	case s.cfg.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("%w: sftp needs known_hosts_file or insecure_ignore_host_key", ErrNotConfigured)
	}

	return &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         s.timeout,
	}, nil
}

// Perform implements Strategy.
func (s *SFTPStrategy) Perform(ctx context.Context, f File) error {
	cfg, err := s.clientConfig()
	if err != nil {
		return err
	}
	local, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer local.Close()

	addr := s.Target()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp session: %w", err)
	}
	defer client.Close()

	remote := f.Name
	if s.cfg.Directory != "" {
		remote = path.Join(s.cfg.Directory, f.Name)
	}
	return runWithContext(ctx, func() { sshClient.Close() }, func() error {
		dst, err := client.Create(remote)
		if err != nil {
			return fmt.Errorf("create %s: %w", remote, err)
		}
		if _, err := io.Copy(dst, local); err != nil {
			dst.Close()
			return fmt.Errorf("write %s: %w", remote, err)
		}
		return dst.Close()
	})
}
