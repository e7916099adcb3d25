package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// session is the part of Transport the worker drives
type session interface {
	AgentAuth() (bool, error)
	PasswordAuth(password string) (bool, error)
	HomeDir() string
	ListDirectory(path string) ([]DirectoryEntry, error)
	DownloadFile(remotePath, localPath string) error
	UploadFile(localPath, remotePath string) error
	Close() error
}

// dialFunc opens a new, not yet authenticated session
type dialFunc func(username, host string, port int) (session, error)

// transportDialer returns a dialFunc that opens real SSH transports
func transportDialer(cfg *AppConfig, log zerolog.Logger, progress progressFactory) dialFunc {
	return func(username, host string, port int) (session, error) {
		t, err := Dial(cfg, log, username, host, port)
		if err != nil {
			return nil, err
		}
		t.progress = progress
		return t, nil
	}
}

// Worker executes commands one at a time against at most one session and
// reports every outcome as a Response
type Worker struct {
	commands  *Channel[Command]
	responses *Channel[Response]
	dial      dialFunc
	log       zerolog.Logger

	session session
	target  Target
	stopped bool
}

// NewWorker creates a worker reading commands and writing responses
func NewWorker(commands *Channel[Command], responses *Channel[Response], dial dialFunc, log zerolog.Logger) *Worker {
	return &Worker{
		commands:  commands,
		responses: responses,
		dial:      dial,
		log:       log.With().Str("component", "worker").Logger(),
	}
}

// Run processes commands until Shutdown. Calling it after Shutdown returns
// immediately.
func (w *Worker) Run() {
	if w.stopped {
		return
	}

	w.log.Debug().Msg("Worker started")
	for {
		cmd := w.commands.Get()
		if _, ok := cmd.(ShutdownCmd); ok {
			w.shutdown()
			return
		}
		w.dispatch(cmd)
	}
}

func (w *Worker) shutdown() {
	w.closeSession()
	w.stopped = true
	w.log.Debug().Msg("Worker stopped")
	w.responses.Put(StoppedResp{})
}

func (w *Worker) closeSession() {
	if w.session == nil {
		return
	}
	if err := w.session.Close(); err != nil {
		w.log.Debug().Err(err).Msg("Error closing session")
	}
	w.session = nil
}

// dispatch runs one command and converts its outcome into a response
func (w *Worker) dispatch(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Str("command", fmt.Sprintf("%T", cmd)).Msg("Command handler panicked")
			w.responses.Put(FailedResp{Message: fmt.Sprintf("unexpected failure: %v", r)})
		}
	}()

	resp, err := w.handle(cmd)
	if err != nil {
		w.log.Warn().Err(err).Str("command", fmt.Sprintf("%T", cmd)).Msg("Command failed")
		resp = failureResponse(err)
	}
	if resp != nil {
		w.responses.Put(resp)
	}
}

func (w *Worker) handle(cmd Command) (Response, error) {
	switch c := cmd.(type) {
	case ConnectCmd:
		return w.connect(c)
	case PasswordCmd:
		return w.submitPassword(c)
	case ListDirCmd:
		s, err := w.requireSession()
		if err != nil {
			return nil, err
		}
		entries, err := s.ListDirectory(c.Path)
		if err != nil {
			return nil, err
		}
		return DirListedResp{Path: c.Path, Entries: entries}, nil
	case DownloadCmd:
		s, err := w.requireSession()
		if err != nil {
			return nil, err
		}
		if err := s.DownloadFile(c.RemotePath, c.LocalPath); err != nil {
			return nil, err
		}
		return DownloadedResp{LocalPath: c.LocalPath, RemotePath: c.RemotePath}, nil
	case UploadCmd:
		s, err := w.requireSession()
		if err != nil {
			return nil, err
		}
		if err := s.UploadFile(c.LocalPath, c.RemotePath); err != nil {
			return nil, err
		}
		return UploadedResp{RemotePath: c.RemotePath}, nil
	case ShutdownCmd:
		// Handled by Run
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
}

// connect replaces any previous session and tries agent authentication
func (w *Worker) connect(c ConnectCmd) (Response, error) {
	w.closeSession()
	w.target = Target{Username: c.Username, Host: c.Host, Port: c.Port}
	w.log.Info().Str("target", w.target.String()).Msg("Connecting")

	s, err := w.dial(c.Username, c.Host, c.Port)
	if err != nil {
		return nil, err
	}
	w.session = s

	ok, err := s.AgentAuth()
	if err != nil {
		return nil, err
	}
	if !ok {
		return NeedPasswordResp{}, nil
	}
	return ConnectedResp{HomeDir: s.HomeDir()}, nil
}

func (w *Worker) submitPassword(c PasswordCmd) (Response, error) {
	s, err := w.requireSession()
	if err != nil {
		return nil, err
	}

	ok, err := s.PasswordAuth(c.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return FailedResp{Message: "authentication failed for " + w.target.String()}, nil
	}
	return ConnectedResp{HomeDir: s.HomeDir()}, nil
}

func (w *Worker) requireSession() (session, error) {
	if w.session == nil {
		return nil, newConnectionError(nil, "not connected")
	}
	return w.session, nil
}

// failureResponse converts a typed failure into the matching response
func failureResponse(err error) Response {
	var pathErr *PathError
	var connErr *ConnectionError
	switch {
	case errors.As(err, &pathErr):
		return PathFailedResp{Kind: pathErr.Kind, RemotePath: pathErr.Path}
	case errors.As(err, &connErr):
		return ConnectionLostResp{Message: connErr.Error()}
	default:
		return FailedResp{Message: err.Error()}
	}
}
