// Package convert prepares source documents for ingestion: conversion to markdown and duplicate cleanup.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/fsutil"
)

// Report summarizes a conversion run.
type Report struct {
	Converted []string
	Skipped   []string
	Failed    []string
}

// Service converts a directory of sources into the docs directory.
type Service struct {
	converter Converter
	logger    *zap.Logger
}

// New creates a conversion service.
func New(c Converter, logger *zap.Logger) *Service {
	return &Service{converter: c, logger: logger}
}

// Convert writes <docsDir>/<stem>.md for every regular file in srcDir, in name order.
// Existing targets are skipped. Per-file failures are logged and reported, not returned.
func (s *Service) Convert(ctx context.Context, srcDir, docsDir string) (Report, error) {
	var rep Report

	names, err := listFiles(srcDir)
	if err != nil {
		return rep, err
	}
	if err := os.MkdirAll(docsDir, 0o750); err != nil {
		return rep, fmt.Errorf("create docs dir: %w", err)
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("convert: %w", err)
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		target := filepath.Join(docsDir, stem+".md")

		if _, err := os.Stat(target); err == nil {
			s.logger.Debug("Target exists, skipping", zap.String("source", name))
			rep.Skipped = append(rep.Skipped, name)
			continue
		}

		md, err := s.converter.Convert(ctx, filepath.Join(srcDir, name))
		if err != nil {
			s.logger.Warn("Conversion failed", zap.String("source", name), zap.Error(err))
			rep.Failed = append(rep.Failed, name)
			continue
		}
		if err := fsutil.WriteFile(target, []byte(md)); err != nil {
			s.logger.Warn("Failed to write markdown", zap.String("target", target), zap.Error(err))
			rep.Failed = append(rep.Failed, name)
			continue
		}

		s.logger.Info("Converted", zap.String("source", name), zap.String("target", target))
		rep.Converted = append(rep.Converted, name)
	}

	s.logger.Info("Conversion finished",
		zap.Int("converted", len(rep.Converted)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("failed", len(rep.Failed)),
	)
	return rep, nil
}

// duplicatePattern matches markdown produced from a pdf, e.g. "lei.pdf (1).md".
var duplicatePattern = regexp.MustCompile(`(?i)^(.*\.pdf)(.+)\.md$`)

// Dedupe removes markdown duplicates in dir: among files sharing a ".pdf" prefix the
// first by name is kept. With dryRun nothing is removed. Returns the names chosen for removal.
func Dedupe(dir string, dryRun bool, logger *zap.Logger) ([]string, error) {
	names, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	var removed []string
	for _, name := range names {
		m := duplicatePattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		kept, dup := seen[m[1]]
		if !dup {
			seen[m[1]] = name
			continue
		}

		removed = append(removed, name)
		if dryRun {
			logger.Info("Would remove duplicate", zap.String("file", name), zap.String("kept", kept))
			continue
		}
		if err := fsutil.RemoveIfExists(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		logger.Info("Removed duplicate", zap.String("file", name), zap.String("kept", kept))
	}
	return removed, nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
