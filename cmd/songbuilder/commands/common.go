// Package commands implements the songbuilder command line.
package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/songbuilder/internal/builder"
	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/songbuilder/internal/locale"
	"git.home.luguber.info/inful/songbuilder/internal/version"
)

// Files read into the environment before flags are parsed. Earlier files win
// and the real environment always wins.
var dotEnvFiles = []string{".env.local", ".env"}

// Global is shared state bound into every command.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	// Runner overrides the external command runner used by builder steps.
	Runner builder.CommandRunner
	// Exit is called by kong for --help and --version.
	Exit func(int)
}

// CLI definition & global flags.
type CLI struct {
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" help:"Build a songbook from its descriptor"`
	Watch WatchCmd `cmd:"" help:"Rebuild a songbook whenever its descriptor or songs change"`
	Steps StepsCmd `cmd:"" help:"List the default build steps"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = newLogger(g, c.Verbose)
	slog.SetDefault(g.Logger)
	locale.Check(g.Logger, g.Getenv)
	return nil
}

func newLogger(g *Global, verbose bool) *slog.Logger {
	level := parseLogLevel(verbose, g.Getenv("SONGBUILDER_LOG_LEVEL"))
	return slog.New(slog.NewTextHandler(g.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel honours -v first, then SONGBUILDER_LOG_LEVEL, then defaults to info.
func parseLogLevel(verbose bool, env string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if env != "" && level.UnmarshalText([]byte(strings.TrimSpace(env))) == nil {
		return level
	}
	return slog.LevelInfo
}

// LoadDotEnv reads the dotenv files that exist. Missing files are not an error.
func LoadDotEnv() error {
	for _, name := range dotEnvFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ferrors.ConfigError("invalid dotenv file").
				WithContext("path", name).WithCause(err).Build()
		}
	}
	return nil
}

// NewGlobal returns process-wide defaults.
func NewGlobal() *Global {
	return &Global{
		Logger: slog.Default(),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		Exit:   os.Exit,
	}
}

// Execute parses args, runs the selected command and returns the exit code.
func Execute(args []string, g *Global) int {
	cli := &CLI{}
	adapter := func() *ferrors.CLIErrorAdapter {
		return ferrors.NewCLIErrorAdapter(cli.Verbose, g.Logger).WithOutput(g.Stderr)
	}

	// Replaced in AfterApply once -v is known.
	g.Logger = newLogger(g, false)

	if err := LoadDotEnv(); err != nil {
		return adapter().HandleError(err)
	}

	parser, err := kong.New(cli,
		kong.Name("songbuilder"),
		kong.Description("Build typeset songbooks from .sg descriptors."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
		kong.Writers(g.Stdout, g.Stderr),
		kong.Exit(g.Exit),
	)
	if err != nil {
		return adapter().HandleError(ferrors.InternalError("build command line").WithCause(err).Build())
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return adapter().HandleError(ferrors.ValidationError(err.Error()).WithCause(err).Build())
	}
	if err := kctx.Run(g); err != nil {
		return adapter().HandleError(err)
	}
	return 0
}

// StepsCmd implements the 'steps' command.
type StepsCmd struct{}

func (s *StepsCmd) Run(g *Global) error {
	for i, step := range builder.DefaultSteps {
		if _, err := fmt.Fprintf(g.Stdout, "%d. %s\n", i+1, step); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(g.Stdout, "Any other step is run as a shell command with {basename} substituted.")
	return err
}
