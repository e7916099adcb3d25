package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/pkg/sftp"
)

// ErrorKind classifies a failed remote operation that concerns one path
type ErrorKind int

const (
	KindDownloadFailed ErrorKind = iota
	KindDownloadFailedPermission
	KindUploadFailed
	KindUploadFailedPermission
	KindUploadFailedSpace
	KindDirListFailedPermission
	KindFileNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindDownloadFailed:
		return "download-failed"
	case KindDownloadFailedPermission:
		return "download-failed-permission"
	case KindUploadFailed:
		return "upload-failed"
	case KindUploadFailedPermission:
		return "upload-failed-permission"
	case KindUploadFailedSpace:
		return "upload-failed-space"
	case KindDirListFailedPermission:
		return "dir-list-failed-permission"
	case KindFileNotFound:
		return "file-not-found"
	default:
		return "unknown"
	}
}

// Describe returns the user-facing sentence for a failure on path
func (k ErrorKind) Describe(path string) string {
	switch k {
	case KindDownloadFailed:
		return "Failed to download " + path
	case KindDownloadFailedPermission:
		return "Permission denied when downloading " + path
	case KindUploadFailed:
		return "Failed to upload " + path
	case KindUploadFailedPermission:
		return "Permission denied when uploading " + path
	case KindUploadFailedSpace:
		return "Insufficient disk space failure while uploading " + path
	case KindDirListFailedPermission:
		return "Permission denied while listing directory " + path
	case KindFileNotFound:
		return "File or directory not found: " + path
	default:
		return "Operation failed on " + path
	}
}

// IsDownload reports whether the kind is a download failure
func (k ErrorKind) IsDownload() bool {
	return k == KindDownloadFailed || k == KindDownloadFailedPermission
}

// IsUpload reports whether the kind is an upload failure
func (k ErrorKind) IsUpload() bool {
	return k == KindUploadFailed || k == KindUploadFailedPermission || k == KindUploadFailedSpace
}

// PathError is a remote failure tied to one remote path
type PathError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind.Describe(e.Path), e.Err)
	}
	return e.Kind.Describe(e.Path)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ConnectionError is a transport, handshake or protocol level fault that
// leaves the session unusable. The controller reconnects on it.
type ConnectionError struct {
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func newConnectionError(err error, format string, args ...interface{}) *ConnectionError {
	return &ConnectionError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// ErrNotConnected is reported for remote commands issued without a session
var ErrNotConnected = errors.New("not connected")

// SFTP status codes from draft-ietf-secsh-filexfer. pkg/sftp only exports the
// version 3 subset as error values.
const (
	fxNoSuchFile          = 2
	fxPermissionDenied    = 3
	fxNoConnection        = 6
	fxConnectionLost      = 7
	fxNoSuchPath          = 10
	fxWriteProtect        = 12
	fxNoMedia             = 13
	fxNoSpaceOnFilesystem = 14
)

// remoteFailure is the coarse class of an error returned by pkg/sftp
type remoteFailure int

const (
	failureConnection remoteFailure = iota
	failureProtocol
	failurePermission
	failureNotFound
	failureNoSpace
)

// classifyRemoteError maps a pkg/sftp error onto a failure class. Only
// errors the server reported through an SFTP status count as protocol
// failures; everything else means the connection itself is in trouble.
func classifyRemoteError(err error) remoteFailure {
	var status *sftp.StatusError
	switch {
	case errors.As(err, &status):
		switch status.Code {
		case fxPermissionDenied, fxWriteProtect:
			return failurePermission
		case fxNoSuchFile, fxNoSuchPath, fxNoMedia:
			return failureNotFound
		case fxNoSpaceOnFilesystem:
			return failureNoSpace
		case fxNoConnection, fxConnectionLost:
			return failureConnection
		default:
			return failureProtocol
		}
	case errors.Is(err, fs.ErrPermission), errors.Is(err, sftp.ErrSSHFxPermissionDenied):
		return failurePermission
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, sftp.ErrSSHFxNoSuchFile):
		return failureNotFound
	case errors.Is(err, sftp.ErrSSHFxFailure),
		errors.Is(err, sftp.ErrSSHFxOpUnsupported),
		errors.Is(err, sftp.ErrSSHFxBadMessage):
		return failureProtocol
	default:
		return failureConnection
	}
}

// classifyListError turns a directory listing failure into a typed error
func classifyListError(path string, err error) error {
	switch classifyRemoteError(err) {
	case failurePermission:
		return &PathError{Kind: KindDirListFailedPermission, Path: path, Err: err}
	case failureNotFound:
		return &PathError{Kind: KindFileNotFound, Path: path, Err: err}
	default:
		return newConnectionError(err, "failed to list directory %s", path)
	}
}

// classifyDownloadError turns a remote read failure into a typed error
func classifyDownloadError(path string, err error) error {
	switch classifyRemoteError(err) {
	case failurePermission:
		return &PathError{Kind: KindDownloadFailedPermission, Path: path, Err: err}
	case failureConnection:
		return newConnectionError(err, "failed to download %s", path)
	default:
		return &PathError{Kind: KindDownloadFailed, Path: path, Err: err}
	}
}

// classifyUploadError turns a remote write failure into a typed error
func classifyUploadError(path string, err error) error {
	switch classifyRemoteError(err) {
	case failurePermission:
		return &PathError{Kind: KindUploadFailedPermission, Path: path, Err: err}
	case failureNoSpace:
		return &PathError{Kind: KindUploadFailedSpace, Path: path, Err: err}
	case failureConnection:
		return newConnectionError(err, "failed to upload %s", path)
	default:
		return &PathError{Kind: KindUploadFailed, Path: path, Err: err}
	}
}
