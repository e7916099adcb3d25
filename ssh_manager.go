package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/net/proxy"
)

// Transport owns one connection and authenticated SFTP session to one host
type Transport struct {
	cfg      *AppConfig
	log      zerolog.Logger
	username string
	addr     string

	conn      net.Conn
	connUsed  bool // A handshake already ran on conn, successful or not
	sshClient *ssh.Client
	sftp      *sftp.Client
	homeDir   string
	closed    bool

	progress progressFactory
}

// Dial resolves the host and opens the TCP connection. The SSH handshake is
// deferred to AgentAuth and PasswordAuth because x/crypto/ssh runs key
// exchange and user authentication as one step.
func Dial(cfg *AppConfig, log zerolog.Logger, username, host string, port int) (*Transport, error) {
	t := &Transport{
		cfg:      cfg,
		log:      log.With().Str("component", "transport").Str("target", username+"@"+host).Logger(),
		username: username,
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
	}

	conn, err := t.dialTCP()
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return t, nil
}

func (t *Transport) dialTCP() (net.Conn, error) {
	timeout := t.cfg.ConnectTimeout()
	dialer := &net.Dialer{Timeout: timeout}

	if t.cfg.ProxyURL == "" {
		t.log.Debug().Str("addr", t.addr).Msg("Opening TCP connection")
		conn, err := dialer.Dial("tcp", t.addr)
		if err != nil {
			return nil, newConnectionError(err, "failed to connect to %s", t.addr)
		}
		return conn, nil
	}

	proxyURL, err := url.Parse(t.cfg.ProxyURL)
	if err != nil {
		return nil, newConnectionError(err, "invalid proxy URL")
	}
	proxyDialer, err := proxy.FromURL(proxyURL, dialer)
	if err != nil {
		return nil, newConnectionError(err, "unsupported proxy %s", proxyURL.Redacted())
	}

	t.log.Debug().Str("addr", t.addr).Str("proxy", proxyURL.Redacted()).Msg("Opening TCP connection through proxy")

	var conn net.Conn
	if contextDialer, ok := proxyDialer.(proxy.ContextDialer); ok {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conn, err = contextDialer.DialContext(ctx, "tcp", t.addr)
	} else {
		conn, err = proxyDialer.Dial("tcp", t.addr)
	}
	if err != nil {
		return nil, newConnectionError(err, "failed to connect to %s through %s", t.addr, proxyURL.Redacted())
	}
	return conn, nil
}

// AgentAuth authenticates with the identities of the local SSH agent and
// the configured identity files. A rejection by the server is not an error.
func (t *Transport) AgentAuth() (bool, error) {
	var signers []ssh.Signer

	agentConn, agentSigners, err := t.getSSHAgentSigners()
	if err != nil {
		t.log.Debug().Err(err).Msg("SSH agent unavailable")
	} else {
		defer agentConn.Close()
		signers = append(signers, agentSigners...)
	}

	for _, keyPath := range t.identityFiles() {
		key, err := t.loadSSHKey(keyPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				t.log.Warn().Err(err).Str("key", keyPath).Msg("Failed to load SSH key")
			}
			continue
		}
		signers = append(signers, key)
	}

	if len(signers) == 0 {
		t.log.Debug().Msg("No agent identities or keys available")
		return false, nil
	}

	// One publickey method carrying every signer; x/crypto/ssh skips a
	// second method of the same name once the first was rejected.
	return t.authenticate(ssh.PublicKeys(signers...))
}

// PasswordAuth authenticates with a password, answering keyboard-interactive
// prompts with the same password for servers that only offer that method
func (t *Transport) PasswordAuth(password string) (bool, error) {
	answer := func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
	return t.authenticate(ssh.Password(password), ssh.KeyboardInteractive(answer))
}

// HomeDir returns the working directory reported by the server after login
func (t *Transport) HomeDir() string {
	return t.homeDir
}

// authenticate runs the SSH handshake with the given methods. The TCP
// connection is consumed by a failed handshake, so a second attempt dials
// again.
func (t *Transport) authenticate(methods ...ssh.AuthMethod) (bool, error) {
	if t.closed {
		return false, newConnectionError(nil, "transport to %s is closed", t.addr)
	}
	if t.sshClient != nil {
		return true, nil
	}

	if t.connUsed || t.conn == nil {
		conn, err := t.dialTCP()
		if err != nil {
			return false, err
		}
		t.conn = conn
	}
	t.connUsed = true

	hostKeyCallback, err := t.hostKeyCallback()
	if err != nil {
		return false, newConnectionError(err, "failed to load known hosts")
	}

	sshConfig := &ssh.ClientConfig{
		User:            t.username,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         t.cfg.ConnectTimeout(),
	}

	// ClientConfig.Timeout only covers ssh.Dial, so bound the handshake here
	if err := t.conn.SetDeadline(time.Now().Add(t.cfg.ConnectTimeout())); err != nil {
		t.log.Debug().Err(err).Msg("Failed to set handshake deadline")
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(t.conn, t.addr, sshConfig)
	if err != nil {
		t.conn.Close()
		if isAuthRejection(err) {
			t.log.Info().Err(err).Msg("Authentication rejected")
			return false, nil
		}
		return false, newConnectionError(err, "SSH handshake with %s failed", t.addr)
	}
	t.conn.SetDeadline(time.Time{})
	t.sshClient = ssh.NewClient(clientConn, chans, reqs)

	if err := t.initSFTP(); err != nil {
		t.closeSession()
		return false, err
	}

	t.log.Info().Str("home", t.homeDir).Msg("SFTP session established")
	return true, nil
}

// isAuthRejection reports whether a handshake failed only because the server
// refused every offered credential
func isAuthRejection(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}

// initSFTP starts the SFTP subsystem and resolves the home directory
func (t *Transport) initSFTP() error {
	cfg := t.cfg.SFTP

	var opts []sftp.ClientOption
	opts = append(opts, sftp.MaxPacketUnchecked(cfg.MaxPacketSize))
	opts = append(opts, sftp.MaxConcurrentRequestsPerFile(cfg.ConcurrentRequests))
	if cfg.UseConcurrentIO {
		opts = append(opts, sftp.UseConcurrentReads(true))
		opts = append(opts, sftp.UseConcurrentWrites(true))
	}

	client, err := sftp.NewClient(t.sshClient, opts...)
	if err != nil {
		return newConnectionError(err, "failed to start SFTP subsystem")
	}
	t.sftp = client

	home, err := client.Getwd()
	if err != nil {
		return newConnectionError(err, "failed to resolve home directory")
	}
	t.homeDir = home
	return nil
}

// hostKeyCallback verifies against the configured known_hosts file, or
// accepts any key when none is configured
func (t *Transport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	path := t.cfg.KnownHostsFile
	if path == "" {
		t.log.Warn().Msg("No known_hosts_file configured, host key is not verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(expandHome(path))
}

// identityFiles lists the private keys to offer next to the agent identities
func (t *Transport) identityFiles() []string {
	if len(t.cfg.IdentityFiles) > 0 {
		paths := make([]string, 0, len(t.cfg.IdentityFiles))
		for _, p := range t.cfg.IdentityFiles {
			paths = append(paths, expandHome(p))
		}
		return paths
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}

// loadSSHKey loads an SSH private key from file
func (t *Transport) loadSSHKey(keyPath string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", keyPath, err)
	}

	return signer, nil
}

// getSSHAgentSigners connects to the agent at SSH_AUTH_SOCK. The returned
// connection must stay open until the handshake has finished signing.
func (t *Transport) getSSHAgentSigners() (net.Conn, []ssh.Signer, error) {
	authSock := os.Getenv("SSH_AUTH_SOCK")
	if authSock == "" {
		return nil, nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}

	sshAgent, err := net.Dial("unix", authSock)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
	}

	signers, err := agent.NewClient(sshAgent).Signers()
	if err != nil {
		sshAgent.Close()
		return nil, nil, fmt.Errorf("failed to list agent identities: %w", err)
	}
	return sshAgent, signers, nil
}

// expandHome replaces a leading "~/" with the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
