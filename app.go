package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// ErrSessionTerminated is returned by Run after a failure that ends the session
var ErrSessionTerminated = errors.New("session terminated")

// Status texts
const (
	StatusTextConnecting    = "Connecting..."
	StatusTextConnected     = "Connected. Getting directory list..."
	StatusTextListing       = "Retrieving directory list..."
	StatusTextDisconnecting = "Disconnecting..."
	StatusTextNoEditor      = "No text editor configured. Set one in the config file."

	statusTimeFormat = "2006-01-02T15:04:05"
)

// View presents the session to the user. All calls come from the
// controller goroutine.
type View interface {
	SetStatus(text string)
	ShowDirectory(dir string, entries []DirectoryEntry, highlighted string, selected map[string]bool)
	ShowError(message string)
	AskPassword(prompt string) (string, error)
	AskRetry(message string) bool
}

// App is the session controller. It owns the directory cache, the sort and
// selection state, the opened files and the reconnect countdown, and is only
// ever touched from the goroutine running Run (or from tests calling Handle).
type App struct {
	cfg       *AppConfig
	log       zerolog.Logger
	target    Target
	commands  *Channel[Command]
	responses *Channel[Response]
	view      View
	editor    Editor
	watcher   *FileWatcher
	now       func() time.Time

	status       ConnectionStatus
	currentDir   string
	entries      []DirectoryEntry
	sortColumn   SortColumn
	sortDesc     bool
	selected     map[string]bool
	highlighted  string
	latestStatus string
	keepLatest   bool // Next listing keeps latestStatus instead of the refresh notice
	openedFiles  map[string]*OpenedFile
	pendingOpens []string

	reconnectActive    bool
	reconnectCountdown int
	reconnectError     string

	exitAfterListing bool
	finished         bool
	terminated       bool
	closed           bool
	started          bool
	workerExit       chan struct{}
	done             chan struct{}
	resources        *ResourceManager
}

// NewApp creates a controller for target. startDir may be empty, in which
// case the home directory reported on connect is used. editor may be nil.
func NewApp(cfg *AppConfig, log zerolog.Logger, target Target, startDir string, view View, editor Editor) *App {
	column, err := ParseSortColumn(cfg.Sort.Column)
	if err != nil {
		column = SortByName
	}
	if startDir != "" {
		startDir = normalizePath(startDir)
	}

	return &App{
		cfg:         cfg,
		log:         log.With().Str("component", "app").Str("target", target.String()).Logger(),
		target:      target,
		commands:    NewChannel[Command](),
		responses:   NewChannel[Response](),
		view:        view,
		editor:      editor,
		now:         time.Now,
		status:      StatusDisconnected,
		currentDir:  startDir,
		sortColumn:  column,
		sortDesc:    cfg.Sort.Descending,
		selected:    make(map[string]bool),
		openedFiles: make(map[string]*OpenedFile),
		workerExit:  make(chan struct{}),
		done:        make(chan struct{}),
		resources:   NewResourceManager(),
	}
}

// WatchFiles lets fsnotify events trigger the watch check between ticks.
// The watcher is closed with the app.
func (a *App) WatchFiles(fw *FileWatcher) {
	a.watcher = fw
	a.resources.Register(fw)
}

// ExitAfterListing makes Run return after the first directory listing
func (a *App) ExitAfterListing() {
	a.exitAfterListing = true
}

// Start launches the worker goroutine and issues the first Connect
func (a *App) Start(dial dialFunc) {
	worker := NewWorker(a.commands, a.responses, dial, a.log)
	a.started = true
	go func() {
		defer close(a.workerExit)
		worker.Run()
	}()
	a.Connect()
}

// Connect (re)connects with the original credentials
func (a *App) Connect() {
	a.status = StatusConnecting
	a.commands.Put(ConnectCmd{Username: a.target.Username, Host: a.target.Host, Port: a.target.Port})
	a.view.SetStatus(StatusTextConnecting)
}

// Run is the controller event loop. It returns nil when ctx is cancelled or
// a one-shot listing is done, and ErrSessionTerminated after a fatal failure.
func (a *App) Run(ctx context.Context) error {
	responses := make(chan Response)
	go a.pumpResponses(responses)

	watch := time.NewTicker(a.cfg.WatchInterval())
	defer watch.Stop()

	var reconnect *time.Ticker
	var reconnectC <-chan time.Time
	defer func() {
		if reconnect != nil {
			reconnect.Stop()
		}
	}()

	var fsEvents <-chan string
	if a.watcher != nil {
		fsEvents = a.watcher.Events()
	}

	for {
		if a.terminated {
			if err := a.Close(); err != nil {
				a.log.Warn().Err(err).Msg("Error during teardown")
			}
			return ErrSessionTerminated
		}
		if a.finished {
			return a.Close()
		}

		switch {
		case a.reconnectActive && reconnect == nil:
			reconnect = time.NewTicker(time.Second)
			reconnectC = reconnect.C
		case !a.reconnectActive && reconnect != nil:
			reconnect.Stop()
			reconnect, reconnectC = nil, nil
		}

		select {
		case <-ctx.Done():
			return a.Close()
		case resp := <-responses:
			a.Handle(resp)
		case <-reconnectC:
			a.reconnectTick()
		case <-watch.C:
			a.watchTick()
		case path := <-fsEvents:
			a.log.Debug().Str("path", path).Msg("Local file changed")
			a.watchTick()
		}
	}
}

// pumpResponses moves worker responses onto a Go channel for Run's select
func (a *App) pumpResponses(out chan<- Response) {
	for {
		resp := a.responses.Get()
		select {
		case out <- resp:
		case <-a.done:
			return
		}
		if _, ok := resp.(StoppedResp); ok {
			return
		}
	}
}

// Handle applies one worker response to the session state
func (a *App) Handle(resp Response) {
	a.log.Debug().Str("response", fmt.Sprintf("%T", resp)).Msg("Handling response")

	switch r := resp.(type) {
	case ConnectedResp:
		a.onConnected(r)
	case NeedPasswordResp:
		a.onNeedPassword()
	case DirListedResp:
		a.onDirListed(r)
	case DownloadedResp:
		a.onDownloaded(r)
	case UploadedResp:
		a.onUploaded(r)
	case PathFailedResp:
		a.onPathFailed(r)
	case ConnectionLostResp:
		a.onConnectionLost(r)
	case FailedResp:
		a.onFailed(r)
	case StoppedResp:
		a.status = StatusDisconnected
	default:
		a.log.Warn().Str("response", fmt.Sprintf("%T", resp)).Msg("Unknown response")
	}
}

func (a *App) onConnected(r ConnectedResp) {
	a.status = StatusConnected
	a.reconnectActive = false
	a.reconnectError = ""
	a.log.Info().Str("home", r.HomeDir).Msg("Connected")

	if a.currentDir == "" {
		a.currentDir = normalizePath(r.HomeDir)
	}
	// An upload that was in flight when the connection dropped never completes
	for _, f := range a.openedFiles {
		f.UploadRequested = false
	}

	a.listDir(StatusTextConnected)

	pending := a.pendingOpens
	a.pendingOpens = nil
	for _, remotePath := range pending {
		a.downloadFile(remotePath)
	}
}

func (a *App) onNeedPassword() {
	a.status = StatusAwaitingPassword
	password, err := a.view.AskPassword("Enter password for " + a.target.String())
	if err != nil {
		a.log.Warn().Err(err).Msg("No password available")
		a.view.ShowError(prettifySentence(err.Error()))
		a.terminated = true
		return
	}
	a.commands.Put(PasswordCmd{Password: password})
}

func (a *App) onDirListed(r DirListedResp) {
	a.currentDir = r.Path
	a.entries = slices.Clone(r.Entries)
	sortEntries(a.entries, a.sortColumn, a.sortDesc)
	a.reapplySelection()

	if a.keepLatest {
		a.keepLatest = false
	} else {
		a.latestStatus = "Refreshed dir list at " + a.timestamp() + "."
	}

	a.showDirectory()
	a.view.SetStatus(a.idleStatus())

	if a.exitAfterListing {
		a.finished = true
	}
}

// reapplySelection keeps the remembered names that still exist in the listing
func (a *App) reapplySelection() {
	names := make(map[string]bool, len(a.entries))
	for _, e := range a.entries {
		names[e.Name] = true
	}
	for name := range a.selected {
		if !names[name] {
			delete(a.selected, name)
		}
	}
	if !names[a.highlighted] {
		a.highlighted = ""
		if len(a.entries) > 0 {
			a.highlighted = a.entries[0].Name
		}
	}
}

func (a *App) onDownloaded(r DownloadedResp) {
	f, ok := a.openedFiles[r.RemotePath]
	if !ok {
		f = &OpenedFile{RemotePath: r.RemotePath}
		a.openedFiles[r.RemotePath] = f
	}
	f.LocalPath = r.LocalPath
	f.Modified = a.localModTime(r.LocalPath)

	if a.watcher != nil {
		if err := a.watcher.Add(r.LocalPath); err != nil {
			a.log.Warn().Err(err).Msg("Failed to watch local copy")
		}
	}
	if a.editor != nil {
		if err := a.editor.Open(r.LocalPath); err != nil {
			a.log.Warn().Err(err).Str("path", r.LocalPath).Msg("Failed to start editor")
		}
	}

	a.latestStatus = "Downloaded " + r.RemotePath + " at " + a.timestamp() + "."
	a.keepLatest = true
	a.listDir(StatusTextListing)
}

func (a *App) onUploaded(r UploadedResp) {
	if f, ok := a.openedFiles[r.RemotePath]; ok {
		f.Modified = a.localModTime(f.LocalPath)
		f.UploadRequested = false
	}

	a.latestStatus = "Uploaded " + r.RemotePath + " at " + a.timestamp() + "."
	a.keepLatest = true
	a.listDir(StatusTextListing)
}

func (a *App) onPathFailed(r PathFailedResp) {
	msg := prettifySentence(r.Kind.Describe(r.RemotePath))
	a.log.Info().Str("kind", r.Kind.String()).Str("path", r.RemotePath).Msg("Remote operation failed")

	switch {
	case r.Kind.IsDownload():
		if a.view.AskRetry(msg) {
			a.downloadFile(r.RemotePath)
			return
		}
		a.view.SetStatus(msg)

	case r.Kind.IsUpload():
		f, ok := a.openedFiles[r.RemotePath]
		if !ok {
			a.view.SetStatus(msg)
			return
		}
		if a.view.AskRetry(msg) {
			a.commands.Put(UploadCmd{LocalPath: f.LocalPath, RemotePath: f.RemotePath})
			a.view.SetStatus("Uploading " + f.RemotePath + " ...")
			return
		}
		f.UploadRequested = false
		f.Modified = a.localModTime(f.LocalPath)
		a.view.SetStatus(msg)

	default:
		if len(a.entries) == 0 {
			a.entries = []DirectoryEntry{parentDirEntry()}
			a.highlighted = ParentDirName
			a.showDirectory()
		}
		a.view.ShowError(msg)
		a.view.SetStatus(msg)
		if a.exitAfterListing {
			a.terminated = true
		}
	}
}

func (a *App) onConnectionLost(r ConnectionLostResp) {
	a.log.Warn().Str("error", r.Message).Msg("Connection lost")

	if a.exitAfterListing {
		a.status = StatusDisconnected
		a.view.ShowError(prettifySentence(r.Message))
		a.terminated = true
		return
	}

	delay := a.cfg.ReconnectDelaySeconds
	a.status = StatusReconnecting
	a.reconnectError = prettifySentence(r.Message)
	a.reconnectCountdown = delay - 1
	a.reconnectActive = true
	a.view.SetStatus(fmt.Sprintf("%s Reconnecting in %d seconds...", a.reconnectError, delay))
}

func (a *App) onFailed(r FailedResp) {
	a.log.Error().Str("error", r.Message).Msg("Session failed")
	a.status = StatusDisconnected
	a.view.ShowError(prettifySentence(r.Message))
	a.terminated = true
}

// reconnectTick advances the reconnect countdown by one second
func (a *App) reconnectTick() {
	if !a.reconnectActive {
		return
	}
	if a.reconnectCountdown > 0 {
		a.view.SetStatus(fmt.Sprintf("%s Reconnecting in %d seconds...", a.reconnectError, a.reconnectCountdown))
		a.reconnectCountdown--
		return
	}

	a.reconnectActive = false
	a.log.Info().Msg("Reconnecting")
	a.status = StatusConnecting
	a.commands.Put(ConnectCmd{Username: a.target.Username, Host: a.target.Host, Port: a.target.Port})
	a.view.SetStatus(a.reconnectError + " Reconnecting...")
}

// watchTick uploads every opened file that changed locally and has no
// upload in flight
func (a *App) watchTick() {
	if a.status != StatusConnected {
		return
	}
	for _, remotePath := range a.openedPaths() {
		f := a.openedFiles[remotePath]
		if f.UploadRequested {
			continue
		}
		info, err := os.Stat(f.LocalPath)
		if err != nil {
			a.log.Debug().Err(err).Str("path", f.LocalPath).Msg("Cannot stat local copy")
			continue
		}
		if info.ModTime().After(f.Modified) {
			f.UploadRequested = true
			a.commands.Put(UploadCmd{LocalPath: f.LocalPath, RemotePath: f.RemotePath})
			a.view.SetStatus("Uploading " + f.RemotePath + " ...")
		}
	}
}

// Refresh re-lists the current directory. Selection and highlight survive
// unless preserveSelection is false.
func (a *App) Refresh(preserveSelection bool) {
	if !preserveSelection {
		a.clearSelection()
	}
	a.listDir(StatusTextListing)
}

// ChangeDir navigates to path, relative to the current directory unless absolute
func (a *App) ChangeDir(path string) {
	if !isAbsRemotePath(path) && a.currentDir != "" {
		path = joinRemotePath(a.currentDir, path)
	}
	a.currentDir = normalizePath(path)
	a.entries = nil
	a.clearSelection()
	a.listDir(StatusTextListing)
}

// ParentDir navigates one level up
func (a *App) ParentDir() {
	if a.currentDir == "" {
		return
	}
	a.ChangeDir(parentRemotePath(a.currentDir))
}

// Activate navigates into a directory entry or downloads a file entry
func (a *App) Activate(name string) {
	if name == ParentDirName {
		a.ParentDir()
		return
	}
	idx := slices.IndexFunc(a.entries, func(e DirectoryEntry) bool { return e.Name == name })
	if idx < 0 {
		return
	}
	path := joinRemotePath(a.currentDir, name)
	if a.entries[idx].IsDir {
		a.ChangeDir(path)
		return
	}
	a.Open(path)
}

// SortBy sorts on column. The same column again toggles the direction; a new
// column starts ascending.
func (a *App) SortBy(column SortColumn) {
	if column == a.sortColumn {
		a.sortDesc = !a.sortDesc
	} else {
		a.sortColumn = column
		a.sortDesc = false
	}
	sortEntries(a.entries, a.sortColumn, a.sortDesc)
	a.showDirectory()
}

// Select replaces the selection with the named entries that exist
func (a *App) Select(names ...string) {
	clear(a.selected)
	for _, name := range names {
		if a.hasEntry(name) {
			a.selected[name] = true
		}
	}
	a.showDirectory()
}

// Highlight moves the cursor to the named entry
func (a *App) Highlight(name string) {
	if a.hasEntry(name) {
		a.highlighted = name
		a.showDirectory()
	}
}

// Open downloads remotePath for editing, once connected
func (a *App) Open(remotePath string) {
	if a.status != StatusConnected {
		a.pendingOpens = append(a.pendingOpens, remotePath)
		return
	}
	a.downloadFile(remotePath)
}

func (a *App) downloadFile(remotePath string) {
	if a.editor == nil {
		a.view.SetStatus(StatusTextNoEditor)
		return
	}

	remotePath = normalizePath(remotePath)
	localPath := localPathFor(a.cfg.ScratchRoot(), a.target, remotePath)
	if err := os.MkdirAll(filepath.Dir(localPath), LocalDirMode); err != nil {
		a.log.Error().Err(err).Str("path", localPath).Msg("Failed to create local directory")
		a.view.ShowError(prettifySentence(fmt.Sprintf("failed to create local directory for %s: %v", remotePath, err)))
		return
	}

	a.commands.Put(DownloadCmd{LocalPath: localPath, RemotePath: remotePath})
	a.view.SetStatus("Downloading " + remotePath + " ...")
}

// listDir requests a listing of the current directory when connected
func (a *App) listDir(status string) {
	if a.status != StatusConnected || a.currentDir == "" {
		return
	}
	a.commands.Put(ListDirCmd{Path: a.currentDir})
	a.view.SetStatus(status)
}

// Close shuts the worker down and deletes the local copies. Safe to call
// more than once.
func (a *App) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	a.view.SetStatus(StatusTextDisconnecting)
	a.commands.Put(ShutdownCmd{})
	if a.started {
		<-a.workerExit
	}
	close(a.done)

	var lastErr error
	for _, remotePath := range a.openedPaths() {
		f := a.openedFiles[remotePath]
		if err := os.Remove(f.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.log.Warn().Err(err).Str("path", f.LocalPath).Msg("Failed to delete local copy")
			lastErr = err
		}
	}
	clear(a.openedFiles)
	a.status = StatusDisconnected

	if err := a.resources.Cleanup(); err != nil {
		lastErr = err
	}
	return lastErr
}

func (a *App) showDirectory() {
	a.view.ShowDirectory(a.currentDir, a.entries, a.highlighted, a.selected)
}

func (a *App) clearSelection() {
	clear(a.selected)
	a.highlighted = ""
}

func (a *App) hasEntry(name string) bool {
	return slices.ContainsFunc(a.entries, func(e DirectoryEntry) bool { return e.Name == name })
}

// openedPaths returns the opened remote paths in a stable order
func (a *App) openedPaths() []string {
	paths := make([]string, 0, len(a.openedFiles))
	for p := range a.openedFiles {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (a *App) localModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		a.log.Debug().Err(err).Str("path", path).Msg("Cannot stat local copy")
		return time.Time{}
	}
	return info.ModTime()
}

// idleStatus is "<n> items. <latest status>"; the parent entry is not counted
func (a *App) idleStatus() string {
	n := 0
	for _, e := range a.entries {
		if e.Name != ParentDirName {
			n++
		}
	}
	return strings.TrimSpace(fmt.Sprintf("%d items. %s", n, a.latestStatus))
}

func (a *App) timestamp() string {
	return a.now().Format(statusTimeFormat)
}

// prettifySentence capitalizes msg and ends it with a period
func prettifySentence(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") && !strings.HasSuffix(msg, "!") && !strings.HasSuffix(msg, "?") {
		msg += "."
	}
	return msg
}

// isAbsRemotePath reports whether p starts at the root or with a drive letter
func isAbsRemotePath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return true
	}
	return len(p) >= 2 && p[1] == ':'
}

// Accessors used by views and tests

// CurrentDir returns the current remote directory
func (a *App) CurrentDir() string { return a.currentDir }

// Entries returns the sorted cached listing
func (a *App) Entries() []DirectoryEntry { return slices.Clone(a.entries) }

// Highlighted returns the highlighted entry name
func (a *App) Highlighted() string { return a.highlighted }

// Selected returns the selected entry names in sorted order
func (a *App) Selected() []string {
	names := make([]string, 0, len(a.selected))
	for name := range a.selected {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Status returns the connection status
func (a *App) Status() ConnectionStatus { return a.status }

// OpenedFile returns a copy of the record for remotePath
func (a *App) OpenedFile(remotePath string) (OpenedFile, bool) {
	f, ok := a.openedFiles[remotePath]
	if !ok {
		return OpenedFile{}, false
	}
	return *f, true
}
