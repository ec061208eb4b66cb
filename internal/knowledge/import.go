package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/extract"
	"github.com/hyperjump/campusbot/internal/fileid"
	"github.com/hyperjump/campusbot/internal/models"
)

// ImportResult summarizes the import of one or more seed files.
type ImportResult struct {
	Files       int      `json:"files"`
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	Deactivated int      `json:"deactivated"`
	Errors      []string `json:"errors,omitempty"`
}

func (r *ImportResult) add(o ImportResult) {
	r.Files += o.Files
	r.Created += o.Created
	r.Updated += o.Updated
	r.Skipped += o.Skipped
	r.Deactivated += o.Deactivated
	r.Errors = append(r.Errors, o.Errors...)
}

// ImportFile loads the seed file at path. Rows without an id get a stable id
// from their position so re-imports update in place. Entries previously
// imported from path that are no longer in the file are deactivated.
// Invalid rows are reported in the result and do not stop the import.
func (s *Service) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	const op = "knowledge.ImportFile"
	res := ImportResult{Files: 1}
	if !extract.Supported(filepath.Ext(path)) {
		return ImportResult{}, errs.Validation(op, fmt.Sprintf("unsupported seed format %q", filepath.Ext(path)))
	}
	rows, err := s.extractor.Extract(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("extract %s: %w", path, err)
	}
	ref := fileid.SourceRef(path)

	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if row.ID == "" {
			row.ID = fileid.SeedEntryID(ref, i)
		}
		row.SourceRef = ref
		row.Provenance = models.ProvenanceManual
		id, outcome, err := s.upsert(ctx, row)
		if err != nil {
			if errs.IsKind(err, errs.KindValidation) {
				res.Skipped++
				res.Errors = append(res.Errors, fmt.Sprintf("%s row %d: %v", filepath.Base(path), i+1, err))
				continue
			}
			return res, err
		}
		switch outcome {
		case OutcomeCreated:
			res.Created++
		case OutcomeUpdated:
			res.Updated++
		default:
			res.Skipped++
		}
		if id != "" {
			seen[id] = true
		}
	}

	n, err := s.deactivate(ctx, ref, seen)
	res.Deactivated = n
	if err != nil {
		return res, err
	}
	s.logger.Info("Seed file imported",
		zap.String("path", ref),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("deactivated", res.Deactivated),
	)
	return res, nil
}

// ImportDirectory imports every supported seed file under dir. When recursive
// is false only the top level is read. Files are imported concurrently; the
// first hard error is returned along with the partial result.
func (s *Service) ImportDirectory(ctx context.Context, dir string, recursive bool, exts []string) (ImportResult, error) {
	files, err := SeedFiles(dir, recursive, exts)
	if err != nil {
		return ImportResult{}, err
	}

	var (
		mu    sync.Mutex
		total ImportResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range files {
		g.Go(func() error {
			res, err := s.ImportFile(gctx, path)
			mu.Lock()
			total.add(res)
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()
	return total, err
}

// SeedFiles lists seed files under dir in lexical order. exts defaults to
// extract.SupportedExtensions.
func SeedFiles(dir string, recursive bool, exts []string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	if len(exts) == 0 {
		exts = extract.SupportedExtensions
	}
	var files []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		ext := filepath.Ext(path)
		if !ExtensionAllowed(ext, exts) || !extract.Supported(ext) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// DeactivateSource deactivates every entry imported from path and returns how
// many changed.
func (s *Service) DeactivateSource(ctx context.Context, path string) (int, error) {
	return s.deactivate(ctx, fileid.SourceRef(path), nil)
}

// deactivate turns off active entries from ref whose id is not in keep.
func (s *Service) deactivate(ctx context.Context, ref string, keep map[string]bool) (int, error) {
	const op = "knowledge.DeactivateSource"
	active := true
	entries, err := s.store.ListKnowledge(ctx, models.KnowledgeFilter{Active: &active, SourceRef: ref})
	if err != nil {
		return 0, errs.Store(op, err)
	}
	inactive := false
	n := 0
	for _, e := range entries {
		if keep[e.ID] {
			continue
		}
		if err := s.store.UpdateKnowledge(ctx, e.ID, models.KnowledgeUpdate{Active: &inactive}); err != nil {
			return n, errs.Store(op, err)
		}
		e.Active = false
		s.reindex(ctx, e)
		n++
	}
	if n > 0 {
		s.logger.Info("Deactivated seed entries", zap.String("source", ref), zap.Int("count", n))
	}
	return n, nil
}
