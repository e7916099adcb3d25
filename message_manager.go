package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// MessageType selects the symbol and color of a console message
type MessageType int

const (
	MessageInfo MessageType = iota
	MessageSuccess
	MessageWarning
	MessageError
	MessageProgress
)

// errNotInteractive is returned by prompts when stdin is not a terminal
var errNotInteractive = errors.New("cannot prompt for input: stdin is not a terminal")

// MessageManager is the console View: status lines, listings and prompts
type MessageManager struct {
	out          io.Writer
	in           *bufio.Reader
	readPassword func() ([]byte, error)
	interactive  bool
	color        bool
	showListings bool
	lastStatus   string
	mutex        sync.Mutex
	log          zerolog.Logger
}

// NewConsoleMessageManager writes to stdout and prompts on stdin
func NewConsoleMessageManager(showListings bool, log zerolog.Logger) *MessageManager {
	stdinFd := int(os.Stdin.Fd())
	mm := newMessageManager(os.Stdout, os.Stdin, term.IsTerminal(stdinFd), log)
	mm.color = term.IsTerminal(int(os.Stdout.Fd()))
	mm.showListings = showListings
	mm.readPassword = func() ([]byte, error) {
		return term.ReadPassword(stdinFd)
	}
	return mm
}

// newMessageManager creates an uncolored manager. Passwords are read as a
// plain line from in.
func newMessageManager(out io.Writer, in io.Reader, interactive bool, log zerolog.Logger) *MessageManager {
	mm := &MessageManager{
		out:          out,
		in:           bufio.NewReader(in),
		interactive:  interactive,
		showListings: true,
		log:          log.With().Str("component", "console").Logger(),
	}
	mm.readPassword = func() ([]byte, error) {
		line, err := mm.readLine()
		return []byte(line), err
	}
	return mm
}

// EmitMessage writes one formatted message line
func (mm *MessageManager) EmitMessage(message string, msgType MessageType) {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()
	fmt.Fprint(mm.out, mm.formatMessage(message, msgType)+"\n")
}

func (mm *MessageManager) formatMessage(message string, msgType MessageType) string {
	var symbol, color string
	switch msgType {
	case MessageSuccess:
		symbol, color = "✓", "\x1b[32m"
	case MessageWarning:
		symbol, color = "⚠", "\x1b[33m"
	case MessageError:
		symbol, color = "✗", "\x1b[31m"
	case MessageProgress:
		symbol, color = "⏳", "\x1b[90m"
	default:
		symbol, color = "●", "\x1b[36m"
	}

	if !mm.color {
		return symbol + " " + message
	}
	return color + symbol + " " + message + "\x1b[0m"
}

// SetStatus prints the status line unless it repeats the previous one
func (mm *MessageManager) SetStatus(text string) {
	mm.mutex.Lock()
	if text == mm.lastStatus {
		mm.mutex.Unlock()
		return
	}
	mm.lastStatus = text
	mm.mutex.Unlock()

	mm.log.Debug().Str("status", text).Msg("Status")
	mm.EmitMessage(text, statusMessageType(text))
}

// statusMessageType picks a message type from the status wording
func statusMessageType(text string) MessageType {
	switch {
	case strings.Contains(text, "Reconnecting"):
		return MessageWarning
	case strings.HasPrefix(text, "Connected"),
		strings.HasPrefix(text, "Downloaded"),
		strings.HasPrefix(text, "Uploaded"):
		return MessageSuccess
	case strings.HasSuffix(text, "..."):
		return MessageProgress
	case strings.HasPrefix(text, "Permission denied"),
		strings.HasPrefix(text, "Failed"),
		strings.HasPrefix(text, "Insufficient"),
		strings.HasPrefix(text, "File or directory not found"),
		strings.HasPrefix(text, "No text editor"):
		return MessageWarning
	default:
		return MessageInfo
	}
}

// ShowDirectory prints the listing as a table. ">" marks the highlighted
// entry and "*" the selected ones.
func (mm *MessageManager) ShowDirectory(dir string, entries []DirectoryEntry, highlighted string, selected map[string]bool) {
	if !mm.showListings {
		return
	}

	mm.mutex.Lock()
	defer mm.mutex.Unlock()

	fmt.Fprintln(mm.out, dir)
	w := tabwriter.NewWriter(mm.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tMODE\tOWNER\tGROUP\tSIZE\tMODIFIED\tNAME")
	for _, e := range entries {
		marker := " "
		if e.Name == highlighted {
			marker = ">"
		}
		if selected[e.Name] {
			marker += "*"
		}
		name := e.Name
		if e.IsDir && name != ParentDirName {
			name += "/"
		}
		size := ""
		if !e.IsDir {
			size = strconv.FormatUint(e.Size, 10)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, e.ModeString, e.Owner, e.Group, size, e.ModifiedFormatted(), name)
	}
	if err := w.Flush(); err != nil {
		mm.log.Debug().Err(err).Msg("Failed to write listing")
	}
}

// ShowError prints an error message. Errors always print, even when repeated.
func (mm *MessageManager) ShowError(message string) {
	mm.mutex.Lock()
	mm.lastStatus = ""
	mm.mutex.Unlock()
	mm.EmitMessage(message, MessageError)
}

// AskPassword prompts for a password without echo
func (mm *MessageManager) AskPassword(prompt string) (string, error) {
	if !mm.interactive {
		return "", errNotInteractive
	}

	mm.mutex.Lock()
	fmt.Fprint(mm.out, prompt+": ")
	mm.mutex.Unlock()

	password, err := mm.readPassword()
	fmt.Fprintln(mm.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// AskRetry asks whether a failed transfer should be retried. Without a
// terminal the answer is always ignore.
func (mm *MessageManager) AskRetry(message string) bool {
	if !mm.interactive {
		mm.EmitMessage(message, MessageWarning)
		return false
	}

	mm.mutex.Lock()
	fmt.Fprint(mm.out, mm.formatMessage(message, MessageWarning)+" [r]etry/[i]gnore: ")
	mm.mutex.Unlock()

	answer, err := mm.readLine()
	if err != nil {
		mm.log.Debug().Err(err).Msg("Failed to read answer")
		return false
	}
	switch strings.ToLower(answer) {
	case "r", "retry":
		return true
	default:
		return false
	}
}

func (mm *MessageManager) readLine() (string, error) {
	line, err := mm.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
