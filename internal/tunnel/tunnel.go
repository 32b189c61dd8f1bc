// Package tunnel forwards a local port to a database behind an SSH bastion.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

const dialTimeout = 15 * time.Second

// Tunnel listens on a loopback port and forwards every accepted connection
// through the SSH client to the remote address.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	logger   *logger.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open connects to the bastion described by cfg and starts forwarding to
// remoteAddr. The caller must Close the tunnel.
func Open(ctx context.Context, cfg config.SSHConfig, remoteAddr string, log *logger.Logger) (*Tunnel, error) {
	clientCfg, err := ClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewLogger(false)
	}

	bastion := net.JoinHostPort(cfg.Host, strconv.Itoa(sshPort(cfg)))
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", bastion)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("unable to reach SSH host %s", bastion), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, bastion, clientCfg)
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("SSH handshake with %s failed", bastion), err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open local tunnel port: %w", err)
	}

	t := &Tunnel{client: client, listener: listener, remote: remoteAddr, logger: log}
	t.wg.Add(1)
	go t.acceptLoop()

	log.WithFields(map[string]interface{}{
		"bastion": bastion,
		"remote":  remoteAddr,
		"local":   listener.Addr().String(),
	}).Debug("SSH tunnel started")
	return t, nil
}

// ClientConfig builds the SSH client configuration. A private key is
// preferred over a password; having neither is a configuration error.
func ClientConfig(cfg config.SSHConfig) (*ssh.ClientConfig, error) {
	var auth ssh.AuthMethod
	switch {
	case cfg.KeyPath != "":
		signer, err := loadSigner(config.ExpandHome(cfg.KeyPath), cfg.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		auth = ssh.PublicKeys(signer)
	case cfg.Password != "":
		auth = ssh.Password(cfg.Password)
	default:
		return nil, errs.New(errs.ErrKindConfiguration, "SSH tunnel requires either a password or a private key path")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(config.ExpandHome(cfg.KnownHostsPath))
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to load known_hosts", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("failed to read SSH key %s", path), err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("failed to parse SSH key %s", path), err)
	}
	return signer, nil
}

func sshPort(cfg config.SSHConfig) int {
	if cfg.Port == 0 {
		return 22
	}
	return cfg.Port
}

// LocalAddr returns the loopback host and port the database is reachable on.
func (t *Tunnel) LocalAddr() (string, int) {
	addr := t.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.logger.Warnf("tunnel accept failed: %v", err)
			}
			return
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		t.logger.Errorf("tunnel could not reach %s: %v", t.remote, err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

// Close stops accepting connections and tears down the SSH session.
func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.listener.Close()
		if cerr := t.client.Close(); cerr != nil && err == nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
		t.wg.Wait()
		t.logger.Debug("SSH tunnel stopped")
	})
	return err
}
