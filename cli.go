package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"
)

// cliOptions holds the persistent flags shared by all commands
type cliOptions struct {
	configPath string
	verbose    bool
	editor     string
}

// runtimeEnv is what a session command needs after flags are parsed
type runtimeEnv struct {
	cfg        *AppConfig
	configPath string
	log        zerolog.Logger
	closeLog   io.Closer
}

// Execute runs the CLI with a context cancelled on SIGINT or SIGTERM
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, closing session...\n", sig)
				cancel()
			}
		}
	}()

	err := newRootCmd().ExecuteContext(ctx)

	signal.Stop(sigChan)
	close(sigChan)
	return err
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "sftpedit",
		Short: "Browse remote directories over SFTP and edit remote files locally",
		Long: `sftpedit keeps a session to an SFTP server alive, lists remote directories
and downloads files into a local scratch directory for editing. Local changes
are uploaded back automatically while the session is open.

Targets are written as [user@]host[:port]. The user defaults to the local
user name and the port to 22.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().StringVar(&opts.editor, "editor", "", "Editor command (overrides the config file)")

	rootCmd.AddCommand(newLsCmd(opts))
	rootCmd.AddCommand(newEditCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// newLsCmd creates the 'ls' command
func newLsCmd(opts *cliOptions) *cobra.Command {
	var sortColumn string
	var descending bool

	cmd := &cobra.Command{
		Use:   "ls [user@]host[:port] [path]",
		Short: "List a remote directory",
		Long: `Connect, list one remote directory and exit.

Without a path the home directory is listed. Directories come first, then
files, ordered by the --sort column.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], localUsername())
			if err != nil {
				return err
			}
			path := ""
			if len(args) > 1 {
				path = args[1]
			}

			env, err := opts.setup()
			if err != nil {
				return err
			}
			defer env.closeLog.Close()

			if cmd.Flags().Changed("sort") {
				if _, err := ParseSortColumn(sortColumn); err != nil {
					return err
				}
				env.cfg.Sort.Column = sortColumn
			}
			if cmd.Flags().Changed("desc") {
				env.cfg.Sort.Descending = descending
			}

			view := NewConsoleMessageManager(true, env.log)
			app := NewApp(env.cfg, env.log, target, path, view, nil)
			app.ExitAfterListing()
			app.Start(transportDialer(env.cfg, env.log, terminalProgress()))
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&sortColumn, "sort", SortByName.String(), "Sort column: name, size, modified, mode, owner or group")
	cmd.Flags().BoolVar(&descending, "desc", false, "Sort in descending order")
	return cmd
}

// newEditCmd creates the 'edit' command
func newEditCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [user@]host[:port] <remote-path>...",
		Short: "Edit remote files with the configured editor",
		Long: `Download remote files, open each one in the configured editor and upload
every saved change until interrupted with Ctrl+C.

Lost connections are re-established automatically. The local copies are
deleted when the session ends.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], localUsername())
			if err != nil {
				return err
			}

			env, err := opts.setup()
			if err != nil {
				return err
			}
			defer env.closeLog.Close()

			if env.cfg.Editor == "" {
				return fmt.Errorf("no text editor configured, set 'editor' in %s or pass --editor", env.configPath)
			}

			view := NewConsoleMessageManager(false, env.log)
			app := NewApp(env.cfg, env.log, target, "", view, newCommandEditor(env.cfg.Editor, env.log))

			fw, err := NewFileWatcher(env.log)
			if err != nil {
				env.log.Warn().Err(err).Msg("File watcher unavailable, relying on the watch interval")
			} else {
				app.WatchFiles(fw)
			}

			for _, remotePath := range args[1:] {
				app.Open(remotePath)
			}
			app.Start(transportDialer(env.cfg, env.log, terminalProgress()))
			view.EmitMessage("Press Ctrl+C to end the session", MessageInfo)
			return app.Run(cmd.Context())
		},
	}
}

// newConfigCmd creates the 'config' command group
func newConfigCmd(opts *cliOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show sftpedit configuration",
		Long: `Configuration commands for sftpedit.

Commands:
  path  - Show configuration file path
  show  - Display current configuration`,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := getConfigPath(opts.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.setup()
			if err != nil {
				return err
			}
			defer env.closeLog.Close()

			data, err := yaml.Marshal(env.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", env.configPath, data)
			return nil
		},
	})

	return configCmd
}

// newVersionCmd creates the 'version' command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), GetVersionInfo().String())
		},
	}
}

// setup loads the config and builds the logger. Config loading logs to a
// console-only logger since the log file location comes from the config.
func (o *cliOptions) setup() (*runtimeEnv, error) {
	configPath, err := getConfigPath(o.configPath)
	if err != nil {
		return nil, err
	}

	bootLog, _ := newLogger(o.verbose, "")
	cfg := loadConfig(configPath, bootLog)
	if o.editor != "" {
		cfg.Editor = o.editor
	}

	log, closeLog := newLogger(o.verbose, cfg.LogFile)
	log = log.With().Str("session", uuid.NewString()).Logger()

	return &runtimeEnv{
		cfg:        cfg,
		configPath: configPath,
		log:        log,
		closeLog:   closeLog,
	}, nil
}

// terminalProgress returns a progress factory drawing on stderr, or nil
// when stderr is not a terminal
func terminalProgress() progressFactory {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return func() ProgressReporter {
		return NewCLIProgress(os.Stderr)
	}
}

// localUsername returns the current user's login name, without a Windows
// domain prefix
func localUsername() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}
	name := u.Username
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	if runtime.GOOS == "windows" {
		name = strings.ToLower(name)
	}
	return name
}

// parseTarget parses [user@]host[:port]. IPv6 hosts need brackets when a
// port is given.
func parseTarget(s, defaultUser string) (Target, error) {
	target := Target{Username: defaultUser, Host: s, Port: DefaultSSHPort}

	if i := strings.Index(target.Host, "@"); i >= 0 {
		target.Username = target.Host[:i]
		target.Host = target.Host[i+1:]
	}

	hostPart, portPart, hasPort := target.Host, "", false
	switch {
	case strings.HasPrefix(hostPart, "["):
		if strings.HasSuffix(hostPart, "]") {
			hostPart = strings.Trim(hostPart, "[]")
			break
		}
		host, port, err := net.SplitHostPort(hostPart)
		if err != nil {
			return Target{}, fmt.Errorf("invalid target %q: %w", s, err)
		}
		hostPart, portPart, hasPort = host, port, true
	case strings.Count(hostPart, ":") == 1:
		i := strings.Index(hostPart, ":")
		hostPart, portPart, hasPort = hostPart[:i], hostPart[i+1:], true
	}

	if hasPort {
		port, err := parsePort(portPart)
		if err != nil {
			return Target{}, err
		}
		target.Port = port
	}
	target.Host = hostPart

	if target.Host == "" {
		return Target{}, fmt.Errorf("invalid target %q: missing host", s)
	}
	if target.Username == "" {
		return Target{}, fmt.Errorf("invalid target %q: missing user name", s)
	}
	return target, nil
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, errors.New("invalid port number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("non-digit port number")
		}
	}
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port >= 65536 {
		return 0, errors.New("invalid port number")
	}
	return port, nil
}
