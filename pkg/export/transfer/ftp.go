package transfer

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPConfig configures the ftp and ftps methods.
type FTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// Directory is the remote directory files are stored in.
	Directory string

	// Passive must stay enabled: the client only supports passive data
	// connections. Default: true
	Passive *bool

	// DisableEPSV falls back to PASV for servers that mishandle EPSV.
	DisableEPSV bool

	// ImplicitTLS connects with TLS from the start (ftps only, port 990).
	// Otherwise ftps uses explicit AUTH TLS.
	ImplicitTLS bool

	// InsecureSkipVerify disables certificate verification (ftps only).
	InsecureSkipVerify bool
}

// FTPStrategy uploads the file over FTP, or FTPS when secure is set.
type FTPStrategy struct {
	cfg     FTPConfig
	secure  bool
	timeout time.Duration
}

// NewFTPStrategy creates an FTPStrategy.
func NewFTPStrategy(cfg FTPConfig, secure bool, timeout time.Duration) *FTPStrategy {
	if cfg.Port == 0 {
		cfg.Port = 21
		if secure && cfg.ImplicitTLS {
			cfg.Port = 990
		}
	}
	return &FTPStrategy{cfg: cfg, secure: secure, timeout: timeout}
}

// Target implements Strategy.
func (s *FTPStrategy) Target() string { return joinTarget(s.cfg.Host, s.cfg.Port) }

func (s *FTPStrategy) method() string {
	if s.secure {
		return "ftps"
	}
	return "ftp"
}

// validate fails fast on settings that can never connect.
func (s *FTPStrategy) validate() error {
	if s.cfg.Host == "" {
		return fmt.Errorf("%w: %s host is empty", ErrNotConfigured, s.method())
	}
	if s.cfg.Username == "" {
		return fmt.Errorf("%w: %s username is empty", ErrNotConfigured, s.method())
	}
	if s.cfg.Passive != nil && !*s.cfg.Passive {
		return fmt.Errorf("%w: active mode is not supported, enable passive mode", ErrNotConfigured)
	}
	if !s.secure && s.cfg.ImplicitTLS {
		return fmt.Errorf("%w: implicit TLS requires the ftps method", ErrNotConfigured)
	}
	return nil
}

func (s *FTPStrategy) dialOptions(ctx context.Context) []ftp.DialOption {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.timeout),
		ftp.DialWithDisabledEPSV(s.cfg.DisableEPSV),
	}
	if s.secure {
		tlsConfig := &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		}
		if s.cfg.ImplicitTLS {
			opts = append(opts, ftp.DialWithTLS(tlsConfig))
		} else {
			opts = append(opts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}
	return opts
}

// Perform implements Strategy.
func (s *FTPStrategy) Perform(ctx context.Context, f File) error {
	if err := s.validate(); err != nil {
		return err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	conn, err := ftp.Dial(s.Target(), s.dialOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	remote := f.Name
	if s.cfg.Directory != "" {
		remote = path.Join(s.cfg.Directory, f.Name)
	}
	return runWithContext(ctx, func() { conn.Quit() }, func() error {
		if err := conn.Stor(remote, file); err != nil {
			return fmt.Errorf("store %s: %w", remote, err)
		}
		return nil
	})
}
