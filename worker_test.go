package main

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

// fakeSession scripts the outcome of every session operation
type fakeSession struct {
	agentOK    bool
	agentErr   error
	password   string
	home       string
	listings   map[string][]DirectoryEntry
	listErr    error
	downloadFn func(remotePath, localPath string) error
	uploadErr  error

	calls  []string
	closed int
}

func (f *fakeSession) AgentAuth() (bool, error) {
	f.calls = append(f.calls, "agent")
	return f.agentOK, f.agentErr
}

func (f *fakeSession) PasswordAuth(password string) (bool, error) {
	f.calls = append(f.calls, "password:"+password)
	return password == f.password, nil
}

func (f *fakeSession) HomeDir() string {
	return f.home
}

func (f *fakeSession) ListDirectory(path string) ([]DirectoryEntry, error) {
	f.calls = append(f.calls, "list:"+path)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[path], nil
}

func (f *fakeSession) DownloadFile(remotePath, localPath string) error {
	f.calls = append(f.calls, "download:"+remotePath)
	if f.downloadFn != nil {
		return f.downloadFn(remotePath, localPath)
	}
	return nil
}

func (f *fakeSession) UploadFile(localPath, remotePath string) error {
	f.calls = append(f.calls, "upload:"+remotePath)
	return f.uploadErr
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

func dialFake(s *fakeSession, dialed *[]Target) dialFunc {
	return func(username, host string, port int) (session, error) {
		if dialed != nil {
			*dialed = append(*dialed, Target{Username: username, Host: host, Port: port})
		}
		return s, nil
	}
}

// runWorker queues cmds plus a Shutdown, runs the worker to completion and
// returns every response it produced
func runWorker(t *testing.T, dial dialFunc, cmds ...Command) []Response {
	t.Helper()
	commands := NewChannel[Command]()
	responses := NewChannel[Response]()
	for _, cmd := range cmds {
		commands.Put(cmd)
	}
	commands.Put(ShutdownCmd{})

	NewWorker(commands, responses, dial, zerolog.Nop()).Run()

	var out []Response
	for responses.Len() > 0 {
		out = append(out, responses.Get())
	}
	return out
}

func TestWorkerConnectWithAgent(t *testing.T) {
	fake := &fakeSession{agentOK: true, home: "/home/alice"}
	var dialed []Target

	got := runWorker(t, dialFake(fake, &dialed), ConnectCmd{Username: "alice", Host: "h", Port: 22})

	want := []Response{ConnectedResp{HomeDir: "/home/alice"}, StoppedResp{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("responses = %#v, want %#v", got, want)
	}
	if len(dialed) != 1 || dialed[0] != (Target{Username: "alice", Host: "h", Port: 22}) {
		t.Errorf("dialed = %v", dialed)
	}
	if fake.closed != 1 {
		t.Errorf("session closed %d times, want 1", fake.closed)
	}
}

func TestWorkerFallsBackToPassword(t *testing.T) {
	fake := &fakeSession{agentOK: false, password: "secret", home: "/home/bob"}

	got := runWorker(t, dialFake(fake, nil),
		ConnectCmd{Username: "bob", Host: "h", Port: 22},
		PasswordCmd{Password: "secret"},
	)

	want := []Response{NeedPasswordResp{}, ConnectedResp{HomeDir: "/home/bob"}, StoppedResp{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("responses = %#v, want %#v", got, want)
	}
}

func TestWorkerWrongPasswordIsGenericFailure(t *testing.T) {
	fake := &fakeSession{agentOK: false, password: "secret"}

	got := runWorker(t, dialFake(fake, nil),
		ConnectCmd{Username: "bob", Host: "h", Port: 2222},
		PasswordCmd{Password: "wrong"},
	)

	if len(got) != 3 {
		t.Fatalf("got %d responses, want 3: %#v", len(got), got)
	}
	failed, ok := got[1].(FailedResp)
	if !ok {
		t.Fatalf("second response = %#v, want FailedResp", got[1])
	}
	if failed.Message != "authentication failed for bob@h:2222" {
		t.Errorf("message = %q", failed.Message)
	}
}

func TestWorkerConvertsFailures(t *testing.T) {
	fake := &fakeSession{
		agentOK: true,
		home:    "/",
		listErr: &PathError{Kind: KindDirListFailedPermission, Path: "/root"},
		downloadFn: func(remotePath, localPath string) error {
			return newConnectionError(nil, "reset by peer")
		},
		uploadErr: errors.New("something odd"),
	}

	got := runWorker(t, dialFake(fake, nil),
		ConnectCmd{Username: "a", Host: "h", Port: 22},
		ListDirCmd{Path: "/root"},
		DownloadCmd{LocalPath: "/tmp/f", RemotePath: "/f"},
		UploadCmd{LocalPath: "/tmp/f", RemotePath: "/f"},
		ListDirCmd{Path: "/root"},
	)

	want := []Response{
		ConnectedResp{HomeDir: "/"},
		PathFailedResp{Kind: KindDirListFailedPermission, RemotePath: "/root"},
		ConnectionLostResp{Message: "reset by peer"},
		FailedResp{Message: "something odd"},
		PathFailedResp{Kind: KindDirListFailedPermission, RemotePath: "/root"},
		StoppedResp{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("responses = %#v, want %#v", got, want)
	}
}

func TestWorkerProcessesCommandsInOrder(t *testing.T) {
	fake := &fakeSession{
		agentOK:  true,
		home:     "/srv",
		listings: map[string][]DirectoryEntry{"/srv": {{Name: "a.txt"}}},
	}

	got := runWorker(t, dialFake(fake, nil),
		ConnectCmd{Username: "a", Host: "h", Port: 22},
		DownloadCmd{LocalPath: "/tmp/a.txt", RemotePath: "/srv/a.txt"},
		UploadCmd{LocalPath: "/tmp/a.txt", RemotePath: "/srv/a.txt"},
		ListDirCmd{Path: "/srv"},
	)

	wantCalls := []string{"agent", "download:/srv/a.txt", "upload:/srv/a.txt", "list:/srv"}
	if !reflect.DeepEqual(fake.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", fake.calls, wantCalls)
	}

	want := []Response{
		ConnectedResp{HomeDir: "/srv"},
		DownloadedResp{LocalPath: "/tmp/a.txt", RemotePath: "/srv/a.txt"},
		UploadedResp{RemotePath: "/srv/a.txt"},
		DirListedResp{Path: "/srv", Entries: []DirectoryEntry{{Name: "a.txt"}}},
		StoppedResp{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("responses = %#v, want %#v", got, want)
	}
}

func TestWorkerRejectsCommandsBeforeConnect(t *testing.T) {
	got := runWorker(t, dialFake(&fakeSession{}, nil), ListDirCmd{Path: "/"}, PasswordCmd{Password: "x"})

	want := []Response{
		ConnectionLostResp{Message: "not connected"},
		ConnectionLostResp{Message: "not connected"},
		StoppedResp{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("responses = %#v, want %#v", got, want)
	}
}

func TestWorkerReconnectReplacesSession(t *testing.T) {
	first := &fakeSession{agentOK: true, home: "/one"}
	second := &fakeSession{agentOK: true, home: "/two"}
	sessions := []*fakeSession{first, second}
	dial := func(username, host string, port int) (session, error) {
		s := sessions[0]
		sessions = sessions[1:]
		return s, nil
	}

	got := runWorker(t, dial,
		ConnectCmd{Username: "a", Host: "h", Port: 22},
		ConnectCmd{Username: "a", Host: "h", Port: 22},
	)

	if first.closed != 1 || second.closed != 1 {
		t.Errorf("closed counts = %d, %d, want 1, 1", first.closed, second.closed)
	}
	if got[1] != (ConnectedResp{HomeDir: "/two"}) {
		t.Errorf("second response = %#v", got[1])
	}
}

func TestWorkerDialFailureIsConnectionLost(t *testing.T) {
	dial := func(username, host string, port int) (session, error) {
		return nil, newConnectionError(errors.New("no route to host"), "failed to connect to %s", "h:22")
	}

	got := runWorker(t, dial, ConnectCmd{Username: "a", Host: "h", Port: 22})

	want := ConnectionLostResp{Message: "failed to connect to h:22: no route to host"}
	if len(got) != 2 || got[0] != want {
		t.Fatalf("responses = %#v, want %#v first", got, want)
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	fake := &fakeSession{
		agentOK: true,
		downloadFn: func(remotePath, localPath string) error {
			panic("boom")
		},
	}

	got := runWorker(t, dialFake(fake, nil),
		ConnectCmd{Username: "a", Host: "h", Port: 22},
		DownloadCmd{LocalPath: "/tmp/x", RemotePath: "/x"},
		UploadCmd{LocalPath: "/tmp/x", RemotePath: "/x"},
	)

	if len(got) != 4 {
		t.Fatalf("got %d responses, want 4: %#v", len(got), got)
	}
	if failed, ok := got[1].(FailedResp); !ok || failed.Message != "unexpected failure: boom" {
		t.Errorf("second response = %#v, want FailedResp", got[1])
	}
	if got[2] != (UploadedResp{RemotePath: "/x"}) {
		t.Errorf("worker did not continue after panic: %#v", got[2])
	}
}

func TestWorkerRepeatedShutdownIsNoop(t *testing.T) {
	fake := &fakeSession{agentOK: true}
	commands := NewChannel[Command]()
	responses := NewChannel[Response]()
	worker := NewWorker(commands, responses, dialFake(fake, nil), zerolog.Nop())

	commands.Put(ConnectCmd{Username: "a", Host: "h", Port: 22})
	commands.Put(ShutdownCmd{})
	worker.Run()

	commands.Put(ShutdownCmd{})
	worker.Run()

	if fake.closed != 1 {
		t.Errorf("session closed %d times, want 1", fake.closed)
	}
	if responses.Len() != 2 {
		t.Errorf("got %d responses, want 2", responses.Len())
	}
}
