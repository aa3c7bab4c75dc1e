package companion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/platform"
)

type fakeSpawner struct {
	name string
	args []string
	dir  string
	err  error
}

func (f *fakeSpawner) Spawn(name string, args []string, dir string) (*platform.Process, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.name, f.args, f.dir = name, args, dir
	return &platform.Process{PID: 4242, Args: append([]string{name}, args...)}, nil
}

func lookPathOnly(available ...string) platform.LookPathFunc {
	return func(file string) (string, error) {
		for _, a := range available {
			if a == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func writeScript(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0644))
	return path
}

func testPaths(t *testing.T) config.Paths {
	t.Helper()
	return config.Paths{
		ExeDir: filepath.Join(t.TempDir(), "bin"),
		Cwd:    filepath.Join(t.TempDir(), "checkout"),
	}
}

func TestCandidates_Order(t *testing.T) {
	p := testPaths(t)
	l := New(Config{}, WithPaths(p))

	got, err := l.Candidates()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(p.ExeDir, "python", "main.py"),
		filepath.Join(p.ExeDir, "resources", "python", "main.py"),
		filepath.Join(p.ExeDir, "data", "python", "main.py"),
		filepath.Join(p.Cwd, "src-tauri", "python", "main.py"),
	}, got)
}

func TestLocate_FirstExistingWins(t *testing.T) {
	p := testPaths(t)
	writeScript(t, filepath.Join(p.ExeDir, "data", "python"))
	want := writeScript(t, filepath.Join(p.ExeDir, "resources", "python"))

	got, err := New(Config{}, WithPaths(p)).Locate()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLocate_DevelopmentLayout(t *testing.T) {
	p := testPaths(t)
	want := writeScript(t, filepath.Join(p.Cwd, "src-tauri", "python"))

	got, err := New(Config{}, WithPaths(p)).Locate()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLocate_SkipsDirectories(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, os.MkdirAll(filepath.Join(p.ExeDir, "python", "main.py"), 0755))
	want := writeScript(t, filepath.Join(p.ExeDir, "data", "python"))

	got, err := New(Config{}, WithPaths(p)).Locate()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLocate_NotFound(t *testing.T) {
	p := testPaths(t)

	_, err := New(Config{}, WithPaths(p)).Locate()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "companion script not found (searched: "))
	assert.Contains(t, err.Error(), filepath.Join(p.Cwd, "src-tauri", "python", "main.py"))
}

func TestStart_SpawnsDetachedInScriptDir(t *testing.T) {
	p := testPaths(t)
	script := writeScript(t, filepath.Join(p.ExeDir, "python"))
	sp := &fakeSpawner{}

	l := New(Config{}, WithPaths(p), WithSpawner(sp), WithLookPath(lookPathOnly("python3")))
	launch, err := l.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4242, launch.PID)
	assert.Equal(t, script, launch.Script)
	assert.Equal(t, "/usr/bin/python3", launch.Interpreter)
	assert.Equal(t, "companion server started, pid 4242", launch.Message())

	assert.Equal(t, "/usr/bin/python3", sp.name)
	assert.Equal(t, []string{script}, sp.args)
	assert.Equal(t, filepath.Dir(script), sp.dir)
}

func TestStart_PrefersPython(t *testing.T) {
	p := testPaths(t)
	writeScript(t, filepath.Join(p.ExeDir, "python"))
	sp := &fakeSpawner{}

	l := New(Config{}, WithPaths(p), WithSpawner(sp), WithLookPath(lookPathOnly("python", "python3")))
	launch, err := l.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python", launch.Interpreter)
}

func TestStart_ConfiguredInterpreter(t *testing.T) {
	p := testPaths(t)
	writeScript(t, filepath.Join(p.ExeDir, "python"))
	sp := &fakeSpawner{}

	l := New(Config{Interpreter: "py"}, WithPaths(p), WithSpawner(sp), WithLookPath(lookPathOnly("py", "python")))
	launch, err := l.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/py", launch.Interpreter)

	l = New(Config{Interpreter: "pypy"}, WithPaths(p), WithSpawner(sp), WithLookPath(lookPathOnly("python")))
	_, err = l.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start companion server: interpreter 'pypy' not found")
}

func TestStart_Errors(t *testing.T) {
	t.Run("script missing", func(t *testing.T) {
		l := New(Config{}, WithPaths(testPaths(t)), WithSpawner(&fakeSpawner{}), WithLookPath(lookPathOnly("python")))
		_, err := l.Start(context.Background())
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "failed to start companion server: companion script not found"))
	})

	t.Run("no interpreter", func(t *testing.T) {
		p := testPaths(t)
		writeScript(t, filepath.Join(p.ExeDir, "python"))
		l := New(Config{}, WithPaths(p), WithSpawner(&fakeSpawner{}), WithLookPath(lookPathOnly()))
		_, err := l.Start(context.Background())
		assert.EqualError(t, err, "failed to start companion server: no Python interpreter found on PATH (tried: python, python3)")
	})

	t.Run("spawn fails", func(t *testing.T) {
		p := testPaths(t)
		writeScript(t, filepath.Join(p.ExeDir, "python"))
		sp := &fakeSpawner{err: errors.New("permission denied")}
		l := New(Config{}, WithPaths(p), WithSpawner(sp), WithLookPath(lookPathOnly("python")))
		_, err := l.Start(context.Background())
		assert.EqualError(t, err, "failed to start companion server: permission denied")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(Config{}, WithPaths(testPaths(t))).Start(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHealth(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/health", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer srv.Close()

		h := New(Config{HealthURL: srv.URL + "/api/health"}).Health(context.Background())
		assert.True(t, h.Running)
		assert.Equal(t, "ok", h.Status)
		assert.Equal(t, "companion server is running (status: ok)", h.Message)
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		h := New(Config{HealthURL: srv.URL}).Health(context.Background())
		assert.False(t, h.Running)
		assert.Equal(t, "companion server answered with status 503", h.Message)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		h := New(Config{HealthURL: url}).Health(context.Background())
		assert.False(t, h.Running)
		assert.Equal(t, "companion server is not reachable at "+url, h.Message)
	})
}

func TestConfigFromSection(t *testing.T) {
	s := config.NewCompanionSection()
	require.NoError(t, s.SetData(map[string]interface{}{
		"interpreter": "python3.12",
		"script_name": "server.py",
		"candidates":  []interface{}{"{exe}/srv"},
		"health_url":  "http://127.0.0.1:6000/health",
	}))

	cfg := ConfigFromSection(s)
	assert.Equal(t, "python3.12", cfg.Interpreter)
	assert.Equal(t, "server.py", cfg.ScriptName)
	assert.Equal(t, []string{"{exe}/srv"}, cfg.Candidates)
	assert.Equal(t, "http://127.0.0.1:6000/health", cfg.HealthURL)
}
