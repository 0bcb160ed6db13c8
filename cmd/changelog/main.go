// Command changelog maintains the published fee changelog.
//
//	changelog build [-data data.json] [-out changelog.json] [-prev file]
//	changelog sync  [-url URL]... [-timeout 15s] [-out changelog.json] [-stage] [-allow-fail]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"etfsave.life/web/internal/changelog"
	"etfsave.life/web/internal/config"
	"etfsave.life/web/internal/observability"
	"etfsave.life/web/internal/record"
)

const usage = "usage: changelog <build|sync> [flags]"

func main() {
	if len(os.Args) < 2 {
		config.Exitf(usage)
	}
	logger, err := observability.NewLogger()
	if err != nil {
		config.Exitf("changelog: init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "build":
		err = runBuild(ctx, os.Args[2:], logger, time.Now())
	case "sync":
		err = runSync(ctx, os.Args[2:], logger)
	default:
		err = errors.New(usage)
	}
	if err != nil {
		_ = logger.Sync()
		config.Exitf("changelog %s: %v", os.Args[1], err)
	}
}

// runBuild diffs the data file against its previous release and records the changes.
func runBuild(ctx context.Context, args []string, logger *zap.Logger, now time.Time) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	dataPath := fs.String("data", "data.json", "current data file")
	outPath := fs.String("out", "changelog.json", "changelog file")
	prevPath := fs.String("prev", "", "previous data file (default: the data file at git HEAD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	current, err := readRows(*dataPath)
	if err != nil {
		logger.Warn("current data unreadable", zap.String("path", *dataPath), zap.Error(err))
		current = nil
	}
	previous, err := previousRows(ctx, *prevPath, *dataPath)
	if err != nil {
		logger.Warn("previous data unavailable", zap.Error(err))
		previous = nil
	}

	changes := changelog.Diff(previous, current)
	entries, _ := changelog.ReadFile(*outPath)
	if len(changes) == 0 {
		if _, err := os.Stat(*outPath); errors.Is(err, os.ErrNotExist) {
			if _, err := changelog.WriteIfChanged(*outPath, []changelog.Entry{}); err != nil {
				return err
			}
			logger.Info("created empty changelog", zap.String("path", *outPath))
			return nil
		}
		logger.Info("no changes detected", zap.String("path", *outPath))
		return nil
	}

	updated, outcome := changelog.Append(entries, changes, now)
	if outcome == changelog.Unchanged {
		logger.Info("today's entry already recorded", zap.String("path", *outPath))
		return nil
	}
	if _, err := changelog.WriteIfChanged(*outPath, updated); err != nil {
		return err
	}
	logger.Info("changelog updated",
		zap.String("path", *outPath),
		zap.Stringer("outcome", outcome),
		zap.Int("changes", len(changes)),
	)
	return nil
}

func readRows(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return record.DecodeArray(f)
}

// previousRows reads prevPath, or the committed copy of dataPath when prevPath is empty.
func previousRows(ctx context.Context, prevPath, dataPath string) ([]record.Record, error) {
	if prevPath != "" {
		return readRows(prevPath)
	}
	out, err := exec.CommandContext(ctx, "git", "show", "HEAD:"+dataPath).Output()
	if err != nil {
		return nil, fmt.Errorf("git show HEAD:%s: %w", dataPath, err)
	}
	return record.DecodeArray(strings.NewReader(string(out)))
}

type urlList []string

func (u *urlList) String() string     { return strings.Join(*u, ",") }
func (u *urlList) Set(v string) error { *u = append(*u, v); return nil }

// runSync downloads the published changelog and writes it locally.
func runSync(ctx context.Context, args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	var urls urlList
	fs.Var(&urls, "url", "remote changelog URL (repeatable)")
	timeout := fs.Duration("timeout", 15*time.Second, "HTTP timeout per URL")
	outPath := fs.String("out", "changelog.json", "changelog file")
	stage := fs.Bool("stage", false, "git add the changelog file after syncing")
	allowFail := fs.Bool("allow-fail", false, "exit successfully when the download fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tolerate := *allowFail || os.Getenv("ALLOW_STALE_CHANGELOG") == "1"

	candidates := changelog.CandidateURLs(urls, os.Getenv("CHANGELOG_REMOTE_URL"))
	err := syncFrom(ctx, candidates, *timeout, *outPath, *stage, logger)
	if err != nil && tolerate {
		logger.Warn("changelog sync failed (ignored)", zap.Error(err))
		return nil
	}
	return err
}

func syncFrom(ctx context.Context, urls []string, timeout time.Duration, outPath string, stage bool, logger *zap.Logger) error {
	if len(urls) == 0 {
		return errors.New("no candidate URL configured")
	}
	entries, source, err := changelog.Fetcher{Timeout: timeout}.FetchFirst(ctx, urls)
	if err != nil {
		return err
	}
	changed, err := changelog.WriteIfChanged(outPath, entries)
	if err != nil {
		return err
	}
	if stage {
		if out, err := exec.CommandContext(ctx, "git", "add", outPath).CombinedOutput(); err != nil {
			return fmt.Errorf("git add %s: %w: %s", outPath, err, strings.TrimSpace(string(out)))
		}
	}
	if changed {
		logger.Info("changelog updated", zap.String("source", source), zap.String("path", outPath))
	} else {
		logger.Info("changelog already up to date", zap.String("source", source))
	}
	return nil
}
