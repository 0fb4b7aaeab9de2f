// Chaussettes manages SSH SOCKS tunnels and points the macOS system proxy
// at the one that is currently up.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hegde-atri/chaussettes/internal/config"
	"github.com/hegde-atri/chaussettes/internal/execx"
	"github.com/hegde-atri/chaussettes/internal/logging"
	"github.com/hegde-atri/chaussettes/internal/netsetup"
	"github.com/hegde-atri/chaussettes/internal/session"
	"github.com/hegde-atri/chaussettes/internal/socks"
	"github.com/hegde-atri/chaussettes/internal/sshtunnel"
	"github.com/hegde-atri/chaussettes/internal/store"
	"github.com/hegde-atri/chaussettes/internal/tui"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=1.1.0"
var version = "1.0.0"

// errHelp stops startup after usage or version output
var errHelp = errors.New("help requested")

// options are the command-line overrides
type options struct {
	configPath  string
	serversFile string
	logLevel    string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stdout)
	if errors.Is(err, errHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "chaussettes: %v\n", err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Chaussettes: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line. It returns errHelp after printing
// usage or the version.
func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("chaussettes", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVarP(&opts.configPath, "config", "c", "", "Config file (default "+config.DefaultPath()+")")
	fs.StringVar(&opts.serversFile, "servers", "", "Saved servers file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: chaussettes [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if showHelp {
		fs.Usage()
		return options{}, errHelp
	}
	if showVersion {
		fmt.Fprintf(out, "chaussettes %s\n", version)
		return options{}, errHelp
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return opts, nil
}

// loadConfig resolves the config file, .env files and flag overrides
func loadConfig(opts options) (config.Config, error) {
	if err := config.LoadDotEnv(filepath.Join(config.Dir(), ".env"), ".env"); err != nil {
		return config.Config{}, err
	}

	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadOrPrompt(opts.configPath)
	} else {
		cfg, err = config.Load(config.DefaultPath())
	}
	if err != nil {
		return config.Config{}, err
	}

	if opts.serversFile != "" {
		cfg.ServersFile = opts.serversFile
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	config.ApplyDefaults(&cfg)
	return cfg, config.Validate(cfg)
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("chaussettes needs an interactive terminal")
	}

	log, closer, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer closer.Close()
	log.Infof("Starting Chaussettes %s", version)

	runner := execx.NewOSRunner()
	locator := netsetup.NewLocator(runner, log, cfg.FallbackService)
	proxy := netsetup.NewController(runner, log)
	tunnel := sshtunnel.NewSupervisor(cfg.TunnelOptions(), log)
	manager := session.New(tunnel, proxy, locator, log)

	app, err := tui.New(version, tui.Deps{
		Session:      manager,
		Registry:     store.New(cfg.ServersFile, log),
		Probe:        socks.Probe,
		ProbeTarget:  cfg.ProbeTarget,
		ProbeTimeout: cfg.ProbeTimeout,
		Log:          log,
	})
	if err != nil {
		return err
	}

	err = app.Run()
	log.Info("Chaussettes stopped")
	return err
}
