package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Connection status constants
type ConnectionStatus int

const (
	StatusConnecting ConnectionStatus = iota
	StatusAwaitingPassword
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

// String representation used in log fields
func (cs ConnectionStatus) String() string {
	switch cs {
	case StatusConnecting:
		return "connecting"
	case StatusAwaitingPassword:
		return "awaiting-password"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SortColumn selects the directory listing column used as sort key
type SortColumn int

// Sort column constants, in the order the listing columns are displayed
const (
	SortByName SortColumn = iota
	SortBySize
	SortByModified
	SortByMode
	SortByOwner
	SortByGroup
)

var sortColumnNames = []string{"name", "size", "modified", "mode", "owner", "group"}

func (c SortColumn) String() string {
	if c < 0 || int(c) >= len(sortColumnNames) {
		return "unknown"
	}
	return sortColumnNames[c]
}

// ParseSortColumn converts a column name into a SortColumn
func ParseSortColumn(s string) (SortColumn, error) {
	for i, name := range sortColumnNames {
		if strings.EqualFold(s, name) {
			return SortColumn(i), nil
		}
	}
	return SortByName, fmt.Errorf("unknown sort column '%s', expected one of %v", s, sortColumnNames)
}

// Remote listing constants
const (
	ParentDirName  = ".."
	CurrentDirName = "."
	RootDir        = "/"
	DefaultSSHPort = 22
	ModeStringLen  = 10
)

// DirectoryEntry is one entry of a remote directory listing. Entries are
// created per listing and never modified afterwards.
type DirectoryEntry struct {
	Name       string `json:"name"`
	Size       uint64 `json:"size"`
	Modified   uint64 `json:"modified"` // Epoch seconds, 0 when the server did not report it
	Mode       uint32 `json:"mode"`     // Raw permission bits as reported by the server
	ModeString string `json:"modeString"`
	Owner      string `json:"owner"`
	Group      string `json:"group"`
	IsDir      bool   `json:"isDir"`
}

// ModifiedFormatted renders the modification time in UTC, or "" if unknown
func (e DirectoryEntry) ModifiedFormatted() string {
	if e.Modified == 0 {
		return ""
	}
	return time.Unix(int64(e.Modified), 0).UTC().Format("2006-01-02 15:04:05")
}

// parentDirEntry is the navigation placeholder shown when a listing is empty
func parentDirEntry() DirectoryEntry {
	return DirectoryEntry{Name: ParentDirName, IsDir: true}
}

// OpenedFile tracks a remote file that was downloaded for local editing
type OpenedFile struct {
	RemotePath      string
	LocalPath       string
	Modified        time.Time // Local modification time seen after the last transfer
	UploadRequested bool
}

// Target identifies the remote account a session connects to
type Target struct {
	Username string
	Host     string
	Port     int
}

// String returns user@host:port
func (t Target) String() string {
	return t.Username + "@" + t.Host + ":" + strconv.Itoa(t.Port)
}

// ScratchName is the per-connection directory name used for local copies
func (t Target) ScratchName() string {
	return t.Username + "@" + t.Host + "_" + strconv.Itoa(t.Port)
}

// Cleanup interface for resource management
type Cleanup interface {
	Close() error
}

// cleanupFunc adapts a plain function to the Cleanup interface
type cleanupFunc func() error

func (f cleanupFunc) Close() error {
	return f()
}

// ResourceManager handles overall resource lifecycle
type ResourceManager struct {
	resources []Cleanup
	mutex     sync.Mutex
}

// NewResourceManager creates a new resource manager
func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		resources: make([]Cleanup, 0),
	}
}

// Register adds a resource for lifecycle management
func (rm *ResourceManager) Register(resource Cleanup) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	rm.resources = append(rm.resources, resource)
}

// Cleanup closes all registered resources, most recently registered first
func (rm *ResourceManager) Cleanup() error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	var lastError error
	for i := len(rm.resources) - 1; i >= 0; i-- {
		if err := rm.resources[i].Close(); err != nil {
			lastError = err
		}
	}
	rm.resources = rm.resources[:0]
	return lastError
}

// Close implements the Cleanup interface for ResourceManager
func (rm *ResourceManager) Close() error {
	return rm.Cleanup()
}
