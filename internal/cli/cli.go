// Package cli implements the flames command line: subcommand dispatch,
// help text and output rendering on top of the service.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	service "github.com/okian/flames/internal/app"
	"github.com/okian/flames/pkg/logger"
)

// App runs one flames command against a started service.
type App struct {
	svc    *service.Service
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
	logger logger.Logger

	commands map[string]command
}

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

// Option configures an App.
type Option func(*App)

// WithOutput sets the writer for command output.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		if w != nil {
			a.out = w
		}
	}
}

// WithErrorOutput sets the writer for flag parsing errors and usage text.
func WithErrorOutput(w io.Writer) Option {
	return func(a *App) {
		if w != nil {
			a.errOut = w
		}
	}
}

// WithClock sets the time source used by exercise filters.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an App bound to svc.
func New(svc *service.Service, opts ...Option) *App {
	a := &App{
		svc:    svc,
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.commands = map[string]command{
		"signup":       {"create an account and log in", a.signup},
		"login":        {"log in with email and password", a.login},
		"logout":       {"clear the stored session", a.logout},
		"whoami":       {"show the logged in user", a.whoami},
		"watch":        {"follow session changes made by other flames processes", a.watch},
		"team":         {"create, join or list a team (create|join|members)", a.team},
		"generate":     {"send a prompt to a blind model", a.generate},
		"interactions": {"list recorded interactions", a.interactions},
		"flag":         {"flag the latest interaction", a.flag},
		"exercises":    {"list or select exercises (list|select)", a.exercises},
		"admin":        {"admin dashboard commands", a.admin},
	}
	return a
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.ShowHelp()
		return usage("no command given")
	}
	name := args[0]
	switch name {
	case "help", "-h", "-help", "--help":
		a.ShowHelp()
		return nil
	}
	cmd, ok := a.commands[name]
	if !ok {
		return errors.Mark(errors.Newf("unknown command %q", name), ErrUnknownCommand)
	}
	a.logger.Debug(ctx, "running command", logger.String("command", name))
	if err := cmd.run(ctx, args[1:]); err != nil && !errors.Is(err, errHelp) {
		return err
	}
	return nil
}

// ShowHelp prints the command overview.
func (a *App) ShowHelp() {
	names := make([]string, 0, len(a.commands))
	for n := range a.commands {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(`flames - red-teaming platform client

Usage:
  flames <command> [flags]

Commands:
`)
	for _, n := range names {
		b.WriteString("  " + padRight(n, 14) + a.commands[n].summary + "\n")
	}
	b.WriteString(`  help          show this help

Admin subcommands:
  load, exercise-create, exercise-delete, mapping-create, mapping-delete,
  seed, flags, resolve, analytics, export

Configuration is read from FLAMES_CONFIG (YAML) and FLAMES_* environment
variables, e.g. FLAMES_BASE_URL=http://localhost:8000.

Run "flames <command> -h" for the flags of a command.
`)
	_, _ = io.WriteString(a.out, b.String())
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s + " "
	}
	return s + strings.Repeat(" ", n-len(s))
}

// flags builds a FlagSet that reports errors instead of exiting.
func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("flames "+name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parse parses args into fs. A -h request yields errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return errors.Mark(err, ErrUsage)
	}
	if fs.NArg() > 0 {
		return usage("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

// errHelp signals that usage was already printed.
var errHelp = errors.New("help requested")

// sub dispatches a command group such as "team create".
func (a *App) sub(ctx context.Context, group string, args []string, subs map[string]func(context.Context, []string) error) error {
	names := make([]string, 0, len(subs))
	for n := range subs {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(args) == 0 {
		return usage("flames %s requires a subcommand: %s", group, strings.Join(names, ", "))
	}
	run, ok := subs[args[0]]
	if !ok {
		return errors.Mark(errors.Newf("unknown %s subcommand %q (want %s)", group, args[0], strings.Join(names, ", ")), ErrUnknownCommand)
	}
	return run(ctx, args[1:])
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
