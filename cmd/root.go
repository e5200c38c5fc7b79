// Package cmd implements the termscp command-line surface (spec §6):
// a single root command taking an optional connection URL, built on
// github.com/spf13/cobra the way the teacher wires its subcommands.
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/veeso-termscp/termscp-core/fsys"
	"github.com/veeso-termscp/termscp-core/internal/backend/ftp"
	"github.com/veeso-termscp/termscp-core/internal/backend/local"
	"github.com/veeso-termscp/termscp-core/internal/backend/s3"
	"github.com/veeso-termscp/termscp-core/internal/backend/scp"
	"github.com/veeso-termscp/termscp-core/internal/backend/sftp"
	"github.com/veeso-termscp/termscp-core/internal/backend/smb"
	"github.com/veeso-termscp/termscp-core/internal/backend/webdav"
	"github.com/veeso-termscp/termscp-core/internal/bookmarks"
	"github.com/veeso-termscp/termscp-core/internal/config"
	"github.com/veeso-termscp/termscp-core/internal/credential"
)

// Exit codes per spec §6.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConnectFailure = 2
	ExitCancelled      = 255
)

// version is overwritten at release-build time via -ldflags.
var version = "dev"

var log = logrus.WithField("component", "cmd")

type options struct {
	configDir     string
	themePath     string
	passwordStdin bool
	quiet         bool
	update        bool
}

// NewRootCmd builds the termscp root command.
func NewRootCmd() *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:     "termscp [protocol://[user[:password]@]host[:port][/path]]",
		Short:   "A feature rich terminal file transfer and explorer client",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
			}
			return run(context.Background(), opts, target)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.configDir, "config", "c", "", "alternative configuration directory")
	flags.BoolVarP(&opts.passwordStdin, "password", "P", false, "read the connection password from stdin")
	flags.StringVarP(&opts.themePath, "theme", "t", "", "theme file to load instead of the configured one")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")
	flags.BoolVar(&opts.update, "update", false, "install the latest termscp release")

	return root
}

// Execute runs the root command and maps the result onto an exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return ExitOK
}

func exitCodeFor(err error) int {
	switch fsys.KindOf(err) {
	case fsys.KindAborted:
		return ExitCancelled
	case fsys.KindAuthFailed, fsys.KindNetwork, fsys.KindNotConnected:
		return ExitConnectFailure
	}
	fmt.Fprintln(os.Stderr, err)
	return ExitFailure
}

func run(ctx context.Context, opts options, target string) error {
	if opts.quiet {
		logrus.SetLevel(logrus.ErrorLevel)
	}

	configDir, err := resolveConfigDir(opts.configDir)
	if err != nil {
		return fsys.NewError(fsys.KindIo, "run", configDir, err)
	}

	cfg, err := config.Load(filepath.Join(configDir, "config.toml"))
	if err != nil {
		return err
	}
	if opts.themePath != "" {
		var th config.Theme
		if _, err := toml.DecodeFile(opts.themePath, &th); err != nil {
			return fsys.NewError(fsys.KindSyntax, "run", opts.themePath, err)
		}
		cfg.Theme = th
	}

	if opts.update {
		fmt.Println("self-update is not available in this build")
		return nil
	}

	store := credential.NewEncryptedStore(
		credential.Select(
			credential.NewKeyringStore("termscp"),
			credential.NewFileStore(configDir),
		),
		machineID(),
	)

	reg, err := bookmarks.Load(filepath.Join(configDir, "bookmarks.toml"), store)
	if err != nil {
		return err
	}
	_ = reg // populated for the session; consumed by the (out-of-scope) interactive shell

	hostFS, err := local.New()
	if err != nil {
		return err
	}
	if _, err := hostFS.Connect(ctx); err != nil {
		return err
	}
	defer hostFS.Disconnect(ctx)

	if target == "" {
		log.Info("no connection URL given; starting with the local host only")
		return nil
	}

	remoteFS, remoteDir, err := dial(ctx, target, opts, cfg)
	if err != nil {
		return err
	}
	defer remoteFS.Disconnect(ctx)

	if remoteDir != "" {
		if _, err := remoteFS.ChangeDir(ctx, remoteDir); err != nil {
			return err
		}
	}
	entries, err := remoteFS.ListDir(ctx, mustPwd(ctx, remoteFS))
	if err != nil {
		return err
	}
	log.Infof("connected: %d entries in remote working directory", len(entries))
	return nil
}

func mustPwd(ctx context.Context, fs fsys.FS) string {
	wd, err := fs.Pwd(ctx)
	if err != nil {
		return "/"
	}
	return wd
}

func resolveConfigDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "termscp"), nil
}

func machineID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "termscp"
}

// dial parses target and connects the matching protocol adapter.
func dial(ctx context.Context, target string, opts options, cfg config.UserConfig) (fsys.FS, string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, "", fsys.NewError(fsys.KindSyntax, "dial", target, err)
	}

	protocol := strings.ToUpper(u.Scheme)
	host := u.Hostname()
	username := ""
	password := ""
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}
	if password == "" && opts.passwordStdin {
		password, err = readPassword()
		if err != nil {
			return nil, "", fsys.NewError(fsys.KindIo, "dial", "", err)
		}
	}
	port := 0
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, "", fsys.NewError(fsys.KindSyntax, "dial", target, err)
		}
	}

	fs, err := buildFS(bookmarks.Protocol(protocol), host, port, username, password)
	if err != nil {
		return nil, "", err
	}
	if _, err := fs.Connect(ctx); err != nil {
		return nil, "", err
	}
	return fs, u.Path, nil
}

func buildFS(protocol bookmarks.Protocol, host string, port int, username, password string) (fsys.FS, error) {
	switch protocol {
	case bookmarks.ProtocolSFTP:
		return sftp.New(sftp.Params{Host: host, Port: port, Username: username, Password: password})
	case bookmarks.ProtocolSCP:
		return scp.New(scp.Params{Host: host, Port: port, Username: username, Password: password})
	case bookmarks.ProtocolFTP:
		return ftp.New(ftp.Params{Host: host, Port: port, Username: username, Password: password})
	case bookmarks.ProtocolFTPS:
		return ftp.New(ftp.Params{Host: host, Port: port, Username: username, Password: password, Secure: true})
	case bookmarks.ProtocolS3:
		return s3.New(s3.Params{Bucket: host, AccessKeyID: username, SecretAccessKey: password})
	case bookmarks.ProtocolSMB:
		return smb.New(smb.Params{Host: host, Port: port, Username: username, Password: password})
	case bookmarks.ProtocolWebDAV:
		return webdav.New(webdav.Params{Endpoint: host, Username: username, Password: password})
	default:
		return nil, fsys.NewError(fsys.KindSyntax, "buildFS", string(protocol), fmt.Errorf("unknown protocol %q", protocol))
	}
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
