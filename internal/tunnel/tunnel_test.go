package tunnel

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

func TestClientConfigRequiresCredentials(t *testing.T) {
	_, err := ClientConfig(config.SSHConfig{Host: "bastion", User: "ops"})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestClientConfigPrefersKey(t *testing.T) {
	keyPath := writeKey(t)

	cfg, err := ClientConfig(config.SSHConfig{Host: "bastion", User: "ops", Password: "ignored", KeyPath: keyPath})
	require.NoError(t, err)
	require.Len(t, cfg.Auth, 1)
	assert.Equal(t, "ops", cfg.User)

	_, err = ClientConfig(config.SSHConfig{Host: "bastion", User: "ops", KeyPath: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestOpenUnreachableBastion(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = Open(context.Background(), config.SSHConfig{Host: "127.0.0.1", Port: port, User: "ops", Password: "pw"}, "db:5432", logger.NewLogger(false))
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestTunnelForwardsTraffic(t *testing.T) {
	echoAddr := startEcho(t)
	sshHost, sshPort := startSSHServer(t, "ops", "secret")

	tun, err := Open(context.Background(), config.SSHConfig{Host: sshHost, Port: sshPort, User: "ops", Password: "secret"}, echoAddr, logger.NewLogger(false))
	require.NoError(t, err)

	host, port := tun.LocalAddr()
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	require.NoError(t, err)

	_, err = fmt.Fprintln(conn, "select 1")
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "select 1\n", line)
	require.NoError(t, conn.Close())

	require.NoError(t, tun.Close())
	require.NoError(t, tun.Close())
}

func TestOpenRejectsWrongPassword(t *testing.T) {
	sshHost, sshPort := startSSHServer(t, "ops", "secret")

	_, err := Open(context.Background(), config.SSHConfig{Host: sshHost, Port: sshPort, User: "ops", Password: "wrong"}, "db:5432", logger.NewLogger(false))
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func writeKey(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "test")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func startEcho(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
			}()
		}
	}()
	return l.Addr().String()
}

// startSSHServer runs a minimal SSH server that only serves direct-tcpip
// channels.
func startSSHServer(t *testing.T, user, password string) (string, int) {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	serverCfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	serverCfg.AddHostKey(signer)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			go serveSSH(nc, serverCfg)
		}
	}()

	addr := l.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func serveSSH(nc net.Conn, cfg *ssh.ServerConfig) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "direct-tcpip" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only direct-tcpip")
			continue
		}
		var target struct {
			Host       string
			Port       uint32
			OriginHost string
			OriginPort uint32
		}
		if err := ssh.Unmarshal(newCh.ExtraData(), &target); err != nil {
			_ = newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		upstream, err := net.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))))
		if err != nil {
			_ = newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			upstream.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			defer ch.Close()
			defer upstream.Close()
			go func() { _, _ = io.Copy(upstream, ch) }()
			_, _ = io.Copy(ch, upstream)
		}()
	}
}
