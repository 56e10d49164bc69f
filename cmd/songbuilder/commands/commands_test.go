package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/songbuilder/internal/build"
	"git.home.luguber.info/inful/songbuilder/internal/builder"
)

type recordingRunner struct {
	fail  map[string]error
	calls []builder.Command
}

func (r *recordingRunner) LookPath(string) error { return nil }

func (r *recordingRunner) Run(_ context.Context, c builder.Command) ([]byte, error) {
	r.calls = append(r.calls, c)
	return nil, r.fail[c.Name]
}

func (r *recordingRunner) names() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.String())
	}
	return out
}

type cliEnv struct {
	dir    string
	book   string
	output string
	stdout bytes.Buffer
	stderr bytes.Buffer
	runner *recordingRunner
}

func newCLIEnv(t *testing.T, descriptorJSON string) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir(), runner: &recordingRunner{}}
	env.book = filepath.Join(env.dir, "book.sg")
	env.output = filepath.Join(env.dir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(env.dir, "songs"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "songs", "one.sg"), []byte("song"), 0o600))
	require.NoError(t, os.WriteFile(env.book, []byte(descriptorJSON), 0o600))
	return env
}

func (e *cliEnv) run(args ...string) int {
	g := &Global{
		Logger: slog.New(slog.NewTextHandler(&e.stderr, nil)),
		Stdout: &e.stdout,
		Stderr: &e.stderr,
		Getenv: os.Getenv,
		Runner: e.runner,
		Exit:   func(int) {},
	}
	return Execute(args, g)
}

func TestBuild_DefaultSteps(t *testing.T) {
	env := newCLIEnv(t, `{"title": "Campfire"}`)

	code := env.run("build", env.book, "--output", env.output)

	require.Equal(t, 0, code, env.stderr.String())
	assert.FileExists(t, filepath.Join(env.output, "book.tex"))
	assert.Equal(t, []string{
		"lualatex -interaction=nonstopmode -halt-on-error --shell-escape book.tex",
		"lualatex -interaction=nonstopmode -halt-on-error --shell-escape book.tex",
	}, env.runner.names(), "orchestrated builds run in unsafe mode")
	assert.Contains(t, env.stdout.String(), "book: success")
}

func TestBuild_ExplicitStepsWithCustomCommand(t *testing.T) {
	env := newCLIEnv(t, `{}`)

	code := env.run("build", env.book, "-o", env.output, "--steps", "tex,cp {basename}.tex archive.tex")

	require.Equal(t, 0, code, env.stderr.String())
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, []string{"-c", "cp book.tex archive.tex"}, env.runner.calls[0].Args)
}

func TestBuild_StepsFromEnvironment(t *testing.T) {
	env := newCLIEnv(t, `{}`)
	t.Setenv("SONGBUILDER_STEPS", "tex")
	t.Setenv("SONGBUILDER_OUTPUT", filepath.Join(t.TempDir(), "envout"))

	code := env.run("build", env.book)

	require.Equal(t, 0, code, env.stderr.String())
	assert.Empty(t, env.runner.calls)
	assert.FileExists(t, filepath.Join(os.Getenv("SONGBUILDER_OUTPUT"), "book.tex"))
}

func TestBuild_BaseDataDirComesFirst(t *testing.T) {
	env := newCLIEnv(t, `{}`)
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "songs"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(base, "songs", "one.sg"), []byte("override"), 0o600))

	code := env.run("build", env.book, "-o", env.output, "-s", "tex", "--datadir", base)

	require.Equal(t, 0, code, env.stderr.String())
	tex, err := os.ReadFile(filepath.Join(env.output, "book.tex"))
	require.NoError(t, err)
	assert.Contains(t, string(tex), filepath.Join(base, "songs", "one.sg"))
	assert.NotContains(t, string(tex), filepath.Join(env.dir, "songs", "one.sg"))
}

func TestBuild_ExitCodes(t *testing.T) {
	t.Run("missing descriptor is a config error", func(t *testing.T) {
		env := newCLIEnv(t, `{}`)
		code := env.run("build", filepath.Join(env.dir, "missing.sg"))
		assert.Equal(t, 7, code)
	})

	t.Run("invalid descriptor shape is a validation error", func(t *testing.T) {
		env := newCLIEnv(t, `{"title": 3}`)
		code := env.run("build", env.book, "-o", env.output)
		assert.Equal(t, 2, code)
	})

	t.Run("failing step is a build error", func(t *testing.T) {
		env := newCLIEnv(t, `{}`)
		env.runner.fail = map[string]error{"lualatex": errors.New("exit status 1")}
		code := env.run("build", env.book, "-o", env.output)
		assert.Equal(t, 11, code)
		assert.Len(t, env.runner.calls, 1, "no step runs after the first failure")
		assert.Contains(t, env.stdout.String(), "skipped")
	})

	t.Run("unknown flag is a usage error", func(t *testing.T) {
		env := newCLIEnv(t, `{}`)
		code := env.run("build", env.book, "--no-such-flag")
		assert.Equal(t, 2, code)
	})
}

func TestExecute_UsageErrorsAreLoggedToGlobalStderr(t *testing.T) {
	var stdout, stderr, elsewhere bytes.Buffer
	g := &Global{
		Logger: slog.New(slog.NewTextHandler(&elsewhere, nil)),
		Stdout: &stdout,
		Stderr: &stderr,
		Getenv: os.Getenv,
		Exit:   func(int) {},
	}

	code := Execute([]string{"build", "--no-such-flag"}, g)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Command failed")
	assert.Contains(t, stderr.String(), "category=validation")
	assert.Empty(t, elsewhere.String())
}

func TestBuild_WritesMetricsTextfile(t *testing.T) {
	env := newCLIEnv(t, `{}`)
	textfile := filepath.Join(t.TempDir(), "songbuilder.prom")

	code := env.run("build", filepath.Join(env.dir, "missing.sg"), "--metrics-textfile", textfile)

	require.Equal(t, 7, code)
	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `songbuilder_setup_failures_total{reason="load"} 1`)
}

func TestStepsCommand(t *testing.T) {
	env := newCLIEnv(t, `{}`)

	require.Equal(t, 0, env.run("steps"))

	lines := strings.Split(strings.TrimSpace(env.stdout.String()), "\n")
	require.Len(t, lines, len(builder.DefaultSteps)+1)
	assert.Equal(t, "1. tex", lines[0])
	assert.Equal(t, "5. clean", lines[4])
}

func TestWatch_BuildsUntilCanceled(t *testing.T) {
	env := newCLIEnv(t, `{}`)
	g := &Global{
		Logger: slog.New(slog.NewTextHandler(&env.stderr, nil)),
		Stdout: &env.stdout,
		Stderr: &env.stderr,
		Getenv: os.Getenv,
		Runner: env.runner,
	}
	cmd := &WatchCmd{
		BuildFlags: BuildFlags{Songbook: env.book, Output: env.output, Steps: []string{"tex"}, LaTeX: "lualatex"},
		Debounce:   20 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.run(ctx, g) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(env.output, "book.tex"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true, "error"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(false, "warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel(false, "ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false, ""))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false, "chatty"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv("SONGBUILDER_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("SONGBUILDER_TEST_FROM_FILE"))
	t.Setenv("SONGBUILDER_TEST_REAL", "real")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SONGBUILDER_TEST_FROM_FILE=base\nSONGBUILDER_TEST_REAL=file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"),
		[]byte("SONGBUILDER_TEST_FROM_FILE=local\n"), 0o600))

	require.NoError(t, LoadDotEnv())

	assert.Equal(t, "local", os.Getenv("SONGBUILDER_TEST_FROM_FILE"))
	assert.Equal(t, "real", os.Getenv("SONGBUILDER_TEST_REAL"))
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	testChdir(t, t.TempDir())
	assert.NoError(t, LoadDotEnv())
}

func TestRenderSummary(t *testing.T) {
	report := &build.Report{
		BuildID:  "b-1",
		Basename: "book",
		Start:    time.Now().Add(-time.Second),
		End:      time.Now(),
		Outcome:  build.OutcomeFailed,
		Steps: []build.StepRecord{
			{Index: 0, Name: "tex", Result: build.StepResultSuccess, Duration: 5 * time.Millisecond},
			{Index: 1, Name: "pdf", Result: build.StepResultFailed, Error: "LaTeX run failed"},
			{Index: 2, Name: "clean", Result: build.StepResultSkipped},
		},
	}
	var buf bytes.Buffer

	require.NoError(t, RenderSummary(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "book: failed")
	assert.Contains(t, out, "build b-1")
	assert.Contains(t, out, "LaTeX run failed")
	assert.Contains(t, out, "3.")
	assert.Contains(t, out, "skipped")
	assert.NoError(t, RenderSummary(&buf, nil))
}

// testChdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
