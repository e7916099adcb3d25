package main

import (
	"errors"
	"io"
	"net"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
)

// newTransportWithClient wraps an already established SFTP client
func newTransportWithClient(client *sftp.Client, cfg *AppConfig, log zerolog.Logger) *Transport {
	t := &Transport{
		cfg:  cfg,
		log:  log.With().Str("component", "transport").Logger(),
		sftp: client,
	}
	if home, err := client.Getwd(); err == nil {
		t.homeDir = home
	}
	return t
}

func (t *Transport) newProgress() ProgressReporter {
	if t.progress == nil {
		return NoOpProgress{}
	}
	return t.progress()
}

func (t *Transport) client() (*sftp.Client, error) {
	if t.sftp == nil {
		return nil, newConnectionError(ErrNotConnected, "no SFTP session to %s", t.addr)
	}
	return t.sftp, nil
}

// ListDirectory lists path in the order the server returned it
func (t *Transport) ListDirectory(path string) ([]DirectoryEntry, error) {
	client, err := t.client()
	if err != nil {
		return nil, err
	}

	t.log.Debug().Str("path", path).Msg("Listing directory")

	fileInfos, err := client.ReadDir(path)
	if err != nil {
		return nil, classifyListError(path, err)
	}

	entries := make([]DirectoryEntry, 0, len(fileInfos)+1)
	hasParent := false
	for _, fileInfo := range fileInfos {
		switch fileInfo.Name() {
		case CurrentDirName:
			continue
		case ParentDirName:
			hasParent = true
		}
		entries = append(entries, entryFromFileInfo(fileInfo))
	}

	// pkg/sftp filters both dot entries out of ReadDir
	if !hasParent && normalizePath(path) != RootDir {
		entries = append(entries, parentDirEntry())
	}

	return entries, nil
}

// DownloadFile copies remotePath into localPath, replacing its content
func (t *Transport) DownloadFile(remotePath, localPath string) error {
	client, err := t.client()
	if err != nil {
		return err
	}

	remoteFile, err := client.Open(remotePath)
	if err != nil {
		return classifyDownloadError(remotePath, err)
	}
	defer remoteFile.Close()

	total := int64(-1)
	if info, err := remoteFile.Stat(); err == nil {
		total = info.Size()
	}

	localFile, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, LocalFileMode)
	if err != nil {
		return &PathError{Kind: KindDownloadFailed, Path: remotePath, Err: err}
	}

	progress := t.newProgress()
	progress.Start(total, "Downloading "+path.Base(remotePath))

	fail := func(err error) error {
		localFile.Close()
		progress.Error(err)
		return err
	}

	var transferred int64
	buffer := make([]byte, t.cfg.SFTP.BufferSize)
	for {
		n, readErr := remoteFile.Read(buffer)
		if n > 0 {
			if _, err := localFile.Write(buffer[:n]); err != nil {
				return fail(&PathError{Kind: KindDownloadFailed, Path: remotePath, Err: err})
			}
			transferred += int64(n)
			progress.Update(transferred)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(classifyDownloadError(remotePath, readErr))
		}
	}

	if err := localFile.Close(); err != nil {
		progress.Error(err)
		return &PathError{Kind: KindDownloadFailed, Path: remotePath, Err: err}
	}
	progress.Finish()

	t.log.Debug().Str("remote", remotePath).Str("local", localPath).Int64("bytes", transferred).Msg("Downloaded file")
	return nil
}

// UploadFile replaces the content of remotePath with localPath. The remote
// file is opened without O_CREATE: only files that were downloaded first are
// ever uploaded.
func (t *Transport) UploadFile(localPath, remotePath string) error {
	client, err := t.client()
	if err != nil {
		return err
	}

	remoteFile, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		return classifyUploadError(remotePath, err)
	}
	defer remoteFile.Close()

	localFile, err := os.Open(localPath)
	if err != nil {
		return &PathError{Kind: KindUploadFailed, Path: remotePath, Err: err}
	}
	defer localFile.Close()

	total := int64(-1)
	if info, err := localFile.Stat(); err == nil {
		total = info.Size()
	}

	progress := t.newProgress()
	progress.Start(total, "Uploading "+path.Base(remotePath))

	var transferred int64
	buffer := make([]byte, t.cfg.SFTP.BufferSize)
	for {
		n, readErr := localFile.Read(buffer)
		if n > 0 {
			if err := writeFull(remoteFile, buffer[:n]); err != nil {
				progress.Error(err)
				return classifyUploadError(remotePath, err)
			}
			transferred += int64(n)
			progress.Update(transferred)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			progress.Error(readErr)
			return &PathError{Kind: KindUploadFailed, Path: remotePath, Err: readErr}
		}
	}

	if err := remoteFile.Close(); err != nil {
		progress.Error(err)
		return classifyUploadError(remotePath, err)
	}
	progress.Finish()

	t.log.Debug().Str("remote", remotePath).Str("local", localPath).Int64("bytes", transferred).Msg("Uploaded file")
	return nil
}

// writeFull writes p completely, retrying after short writes
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Close tears down the SFTP client, the SSH client and the TCP connection,
// in that order. Calling it again is a no-op.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.log.Debug().Msg("Closing transport")
	return t.closeSession()
}

func (t *Transport) closeSession() error {
	resources := NewResourceManager()
	if t.conn != nil {
		conn := t.conn
		resources.Register(cleanupFunc(func() error {
			// Closing the SSH client already closed it
			if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		}))
	}
	if t.sshClient != nil {
		resources.Register(t.sshClient)
	}
	if t.sftp != nil {
		resources.Register(t.sftp)
	}

	t.conn, t.sshClient, t.sftp = nil, nil, nil
	return resources.Cleanup()
}
