package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"etfsave.life/web/internal/changelog"
)

const (
	prevRows = `[{"종목코드":"069500","종목명":"KODEX 200","총보수":"0.15","기타비용":"0.01","매매중개수수료":"0.01","실부담비용":"0.17"}]`
	currRows = `[{"종목코드":"069500","종목명":"KODEX 200","총보수":"0.10","기타비용":"0.01","매매중개수수료":"0.01","실부담비용":"0.12"}]`
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestRunBuildAppendsThenReplaces(t *testing.T) {
	dir := t.TempDir()
	data, prev, out := filepath.Join(dir, "data.json"), filepath.Join(dir, "prev.json"), filepath.Join(dir, "changelog.json")
	write(t, data, currRows)
	write(t, prev, prevRows)
	day := time.Date(2025, 2, 11, 10, 0, 0, 0, time.UTC)
	args := []string{"-data", data, "-prev", prev, "-out", out}

	require.NoError(t, runBuild(context.Background(), args, zap.NewNop(), day))
	entries, ok := changelog.ReadFile(out)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "2025-02", entries[0].Month)
	assert.Equal(t, "2025-02-11", entries[0].UpdatedAt)
	require.Len(t, entries[0].Changes, 2)
	assert.Equal(t, "총보수", entries[0].Changes[0].Field)
	assert.Equal(t, "실부담비용", entries[0].Changes[1].Field)

	// rerun on the same day with different data replaces today's entry
	write(t, data, `[{"종목코드":"069500","종목명":"KODEX 200","총보수":"0.15","기타비용":"0.01","매매중개수수료":"0.01","실부담비용":"0.16"}]`)
	require.NoError(t, runBuild(context.Background(), args, zap.NewNop(), day))
	entries, _ = changelog.ReadFile(out)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Changes, 1)
	assert.Equal(t, "실부담비용", entries[0].Changes[0].Field)
}

func TestRunBuildCreatesEmptyChangelog(t *testing.T) {
	dir := t.TempDir()
	data, out := filepath.Join(dir, "data.json"), filepath.Join(dir, "changelog.json")
	write(t, data, currRows)
	args := []string{"-data", data, "-prev", data, "-out", out}
	require.NoError(t, runBuild(context.Background(), args, zap.NewNop(), time.Now()))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))
}

func TestRunSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.json" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"month":"2025-02","updatedAt":"2025-02-11","changes":[]}]`))
	}))
	defer srv.Close()
	t.Setenv("CHANGELOG_REMOTE_URL", "")
	t.Setenv("ALLOW_STALE_CHANGELOG", "")

	out := filepath.Join(t.TempDir(), "changelog.json")
	args := []string{"-url", srv.URL + "/broken.json", "-url", srv.URL + "/changelog.json", "-out", out, "-timeout", "2s"}
	require.NoError(t, runSync(context.Background(), args, zap.NewNop()))
	entries, ok := changelog.ReadFile(out)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "2025-02-11", entries[0].UpdatedAt)
}

func TestRunSyncFailureTolerance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	err := syncFrom(context.Background(), []string{srv.URL}, time.Second, filepath.Join(t.TempDir(), "c.json"), false, zap.NewNop())
	assert.Error(t, err)

	t.Setenv("ALLOW_STALE_CHANGELOG", "1")
	// defaults are unreachable from tests, so only the failure path is exercised
	t.Setenv("CHANGELOG_REMOTE_URL", srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runSync(ctx, []string{"-out", filepath.Join(t.TempDir(), "c.json")}, zap.NewNop()))
}
