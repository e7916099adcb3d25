package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const (
	ConfigDirName  = "sftpedit"
	ConfigFileName = "config.yaml"
	ConfigDirMode  = 0700
	ConfigFileMode = 0600

	LocalDirMode  = 0700 // Scratch directories holding local copies
	LocalFileMode = 0600
)

const (
	DefaultConnectTimeoutSeconds = 10
	DefaultReconnectDelaySeconds = 5
	DefaultWatchIntervalMs       = 1000

	DefaultSFTPMaxPacketSize      = 32 * 1024
	DefaultSFTPBufferSize         = 32 * 1024
	DefaultSFTPConcurrentRequests = 64

	MinConnectTimeoutSeconds = 1
	MaxConnectTimeoutSeconds = 300
	MinReconnectDelaySeconds = 1
	MaxReconnectDelaySeconds = 3600
	MinWatchIntervalMs       = 100
	MaxWatchIntervalMs       = 60000
	MinSFTPBufferSize        = 512
	MaxSFTPBufferSize        = 4 * 1024 * 1024
	MinSFTPMaxPacketSize     = 1024
	MaxSFTPMaxPacketSize     = 1024 * 1024
)

// SFTPConfig tunes the SFTP client
type SFTPConfig struct {
	MaxPacketSize      int  `yaml:"max_packet_size"`
	BufferSize         int  `yaml:"buffer_size"` // Chunk size for file transfers
	ConcurrentRequests int  `yaml:"concurrent_requests"`
	UseConcurrentIO    bool `yaml:"use_concurrent_io"`
}

// SortConfig holds the initial sort order of directory listings
type SortConfig struct {
	Column     string `yaml:"column"`
	Descending bool   `yaml:"descending"`
}

// AppConfig holds the application configuration
type AppConfig struct {
	Editor         string   `yaml:"editor"`                     // Program started with the local copy as its argument
	ScratchDir     string   `yaml:"scratch_dir,omitempty"`      // Where downloaded files are kept, defaults to the temp dir
	KnownHostsFile string   `yaml:"known_hosts_file,omitempty"` // Host keys are not verified when empty
	IdentityFiles  []string `yaml:"identity_files,omitempty"`   // Private keys tried alongside the agent
	ProxyURL       string   `yaml:"proxy_url,omitempty"`        // socks5://[user:pass@]host:port
	LogFile        string   `yaml:"log_file,omitempty"`

	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	WatchIntervalMs       int `yaml:"watch_interval_ms"`

	SFTP SFTPConfig `yaml:"sftp"`
	Sort SortConfig `yaml:"sort"`
}

// DefaultConfig returns a new AppConfig with default values
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Editor:                "", // Must be set by the user before files can be opened
		ConnectTimeoutSeconds: DefaultConnectTimeoutSeconds,
		ReconnectDelaySeconds: DefaultReconnectDelaySeconds,
		WatchIntervalMs:       DefaultWatchIntervalMs,
		SFTP: SFTPConfig{
			MaxPacketSize:      DefaultSFTPMaxPacketSize,
			BufferSize:         DefaultSFTPBufferSize,
			ConcurrentRequests: DefaultSFTPConcurrentRequests,
			UseConcurrentIO:    true,
		},
		Sort: SortConfig{
			Column: SortByName.String(),
		},
	}
}

// Validate checks the configuration for basic validity.
func (c *AppConfig) Validate() error {
	if c.ConnectTimeoutSeconds < MinConnectTimeoutSeconds || c.ConnectTimeoutSeconds > MaxConnectTimeoutSeconds {
		return fmt.Errorf("connect timeout %d is out of range (%d-%d)", c.ConnectTimeoutSeconds, MinConnectTimeoutSeconds, MaxConnectTimeoutSeconds)
	}
	if c.ReconnectDelaySeconds < MinReconnectDelaySeconds || c.ReconnectDelaySeconds > MaxReconnectDelaySeconds {
		return fmt.Errorf("reconnect delay %d is out of range (%d-%d)", c.ReconnectDelaySeconds, MinReconnectDelaySeconds, MaxReconnectDelaySeconds)
	}
	if c.WatchIntervalMs < MinWatchIntervalMs || c.WatchIntervalMs > MaxWatchIntervalMs {
		return fmt.Errorf("watch interval %d is out of range (%d-%d)", c.WatchIntervalMs, MinWatchIntervalMs, MaxWatchIntervalMs)
	}
	if c.SFTP.BufferSize < MinSFTPBufferSize || c.SFTP.BufferSize > MaxSFTPBufferSize {
		return fmt.Errorf("sftp buffer size %d is out of range (%d-%d)", c.SFTP.BufferSize, MinSFTPBufferSize, MaxSFTPBufferSize)
	}
	if c.SFTP.MaxPacketSize < MinSFTPMaxPacketSize || c.SFTP.MaxPacketSize > MaxSFTPMaxPacketSize {
		return fmt.Errorf("sftp max packet size %d is out of range (%d-%d)", c.SFTP.MaxPacketSize, MinSFTPMaxPacketSize, MaxSFTPMaxPacketSize)
	}
	if c.SFTP.ConcurrentRequests < 1 {
		return fmt.Errorf("sftp concurrent requests must be at least 1, got %d", c.SFTP.ConcurrentRequests)
	}
	if _, err := ParseSortColumn(c.Sort.Column); err != nil {
		return err
	}
	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return fmt.Errorf("unsupported proxy scheme '%s', expected socks5 or socks5h", u.Scheme)
		}
	}
	if len(c.ScratchDir) > 1024 { // Arbitrary length limit for sanity
		return fmt.Errorf("scratch dir is too long (max 1024 characters)")
	}
	return nil
}

// ConnectTimeout returns the TCP connect and handshake timeout
func (c *AppConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the countdown length after a lost connection
func (c *AppConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// WatchInterval returns the period of the local file watch tick
func (c *AppConfig) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMs) * time.Millisecond
}

// ScratchRoot returns the directory holding local copies of remote files
func (c *AppConfig) ScratchRoot() string {
	if c.ScratchDir != "" {
		return c.ScratchDir
	}
	return filepath.Join(os.TempDir(), ConfigDirName)
}
