package main

// Command is a request from the controller to the worker. The set of
// commands is closed; isCommand keeps other packages from adding variants.
type Command interface {
	isCommand()
}

// ConnectCmd opens a new session, replacing any previous one
type ConnectCmd struct {
	Username string
	Host     string
	Port     int
}

// PasswordCmd answers a NeedPasswordResp
type PasswordCmd struct {
	Password string
}

// ShutdownCmd tears down the session and stops the worker
type ShutdownCmd struct{}

// ListDirCmd requests a listing of Path
type ListDirCmd struct {
	Path string
}

// DownloadCmd copies RemotePath to LocalPath
type DownloadCmd struct {
	LocalPath  string
	RemotePath string
}

// UploadCmd copies LocalPath to RemotePath
type UploadCmd struct {
	LocalPath  string
	RemotePath string
}

func (ConnectCmd) isCommand()  {}
func (PasswordCmd) isCommand() {}
func (ShutdownCmd) isCommand() {}
func (ListDirCmd) isCommand()  {}
func (DownloadCmd) isCommand() {}
func (UploadCmd) isCommand()   {}

// Response is an event from the worker to the controller
type Response interface {
	isResponse()
}

// ConnectedResp reports an authenticated session
type ConnectedResp struct {
	HomeDir string
}

// NeedPasswordResp asks the controller for a password
type NeedPasswordResp struct{}

// DirListedResp carries a directory listing in server order
type DirListedResp struct {
	Path    string
	Entries []DirectoryEntry
}

// DownloadedResp reports a finished download
type DownloadedResp struct {
	LocalPath  string
	RemotePath string
}

// UploadedResp reports a finished upload
type UploadedResp struct {
	RemotePath string
}

// PathFailedResp reports a failure concerning one remote path
type PathFailedResp struct {
	Kind       ErrorKind
	RemotePath string
}

// ConnectionLostResp reports a connection level failure
type ConnectionLostResp struct {
	Message string
}

// FailedResp reports an unclassified failure, including rejected passwords
type FailedResp struct {
	Message string
}

// StoppedResp is the last response of a worker, sent after Shutdown
type StoppedResp struct{}

func (ConnectedResp) isResponse()      {}
func (NeedPasswordResp) isResponse()   {}
func (DirListedResp) isResponse()      {}
func (DownloadedResp) isResponse()     {}
func (UploadedResp) isResponse()       {}
func (PathFailedResp) isResponse()     {}
func (ConnectionLostResp) isResponse() {}
func (FailedResp) isResponse()         {}
func (StoppedResp) isResponse()        {}
