// Package ingest walks configured highlight sources and reconciles
// their contents with the scheduler, file by file.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jfenske/recollect/internal/gitsource"
	"github.com/jfenske/recollect/internal/parser"
	"github.com/jfenske/recollect/internal/scheduler"
)

// Report summarizes one ingest run.
type Report struct {
	FilesScanned int
	CardsCreated int
	CardsDeleted int
	Errors       []error
}

// Run synchronizes every source into the scheduler. Git URLs are
// mirrored under reposDir before being walked; local paths are walked
// directly. Per-file parse failures are collected in the report rather
// than aborting the run.
func Run(ctx context.Context, sched *scheduler.Scheduler, sources []string, reposDir string) (*Report, error) {
	report := &Report{}

	for _, source := range sources {
		root := source
		sourceID := filepath.ToSlash(filepath.Clean(source))

		if gitsource.IsGitURL(source) {
			localPath, err := gitsource.LocalPath(reposDir, source)
			if err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
			if err := gitsource.Sync(ctx, source, localPath); err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
			root = localPath
			// host/owner/repo, independent of where reposDir lives.
			if rel, err := filepath.Rel(reposDir, localPath); err == nil {
				sourceID = filepath.ToSlash(rel)
			}
		}

		if err := walkSource(sched, root, sourceID, report); err != nil {
			return report, fmt.Errorf("walk source %s: %w", root, err)
		}
	}

	slog.Info("ingest complete",
		"sources", len(sources),
		"files", report.FilesScanned,
		"created", report.CardsCreated,
		"deleted", report.CardsDeleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

func walkSource(sched *scheduler.Scheduler, root, sourceID string, report *Report) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		pairs, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parse %s: %w", path, parseErr))
			return nil
		}

		report.FilesScanned++
		created, deleted := sched.SyncFileCards(cardPath(sourceID, root, path), pairs)
		report.CardsCreated += created
		report.CardsDeleted += deleted
		return nil
	})
}

// cardPath is the identity cards carry for their origin: the source
// identifier plus the path under it. Prefixing with the source keeps
// two sources that both hold a notes.md from reconciling each other's
// cards away, and keeps the identity stable when a checkout moves.
// A single-file source walks only itself, so its identity is the
// source id alone.
func cardPath(sourceID, root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return sourceID
	}
	return sourceID + "/" + filepath.ToSlash(rel)
}
