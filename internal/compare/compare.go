package compare

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reportharness/internal/results"
	"reportharness/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Ledger entry names written by Run.
const (
	ErrFileLoad   = "File Load Error"
	RecordPrefix  = "Compare Result Test - "
	OutputDirName = "output"
)

// LoadError is returned when the files of one directory cannot be loaded.
type LoadError struct {
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load files from %s: %v", e.Dir, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Comparator checks the fresh output of a test case against the baseline
// files kept next to its job descriptions.
type Comparator struct {
	testCaseDir string
	ledger      *results.Ledger
	log         logging.Logger
}

// New creates a Comparator for the test case in testCaseDir.
func New(testCaseDir string, ledger *results.Ledger, log logging.Logger) *Comparator {
	return &Comparator{testCaseDir: testCaseDir, ledger: ledger, log: log}
}

// Run compares every baseline file with extension ext against the file of
// the same name in output/ and records one result. Nothing is recorded when
// there is no baseline.
func (c *Comparator) Run(ctx context.Context, ext string) {
	var baseline, output map[string][]byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		baseline = c.load(gctx, c.testCaseDir, ext)
		return nil
	})
	g.Go(func() error {
		output = c.load(gctx, filepath.Join(c.testCaseDir, OutputDirName), ext)
		return nil
	})
	_ = g.Wait()

	if len(baseline) == 0 {
		c.log.Debug("No %s baseline in %s, skipping comparison", ext, c.testCaseDir)
		return
	}

	matches := 0
	for name, want := range baseline {
		if got, ok := output[name]; ok && bytes.Equal(want, got) {
			matches++
		} else {
			c.log.Debug("%s differs from baseline", name)
		}
	}

	c.ledger.AddResult(results.Record{
		Name:     RecordPrefix + ext,
		Expected: len(baseline),
		Received: matches,
	})
}

// load reads the files ending in ext. A failure is recorded in the ledger
// and yields no files.
func (c *Comparator) load(ctx context.Context, dir, ext string) map[string][]byte {
	files, err := LoadFiles(ctx, dir, ext)
	if err != nil {
		c.log.Warn("%v", err)
		c.ledger.AddError(ErrFileLoad, "compare "+ext, err)
		return nil
	}
	return files
}

// LoadFiles reads every regular file in dir whose extension is ext,
// concurrently, keyed by file name.
func LoadFiles(ctx context.Context, dir, ext string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Dir: dir, Err: err}
	}

	suffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			names = append(names, e.Name())
		}
	}

	contents := make([][]byte, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &LoadError{Dir: dir, Err: err}
	}

	files := make(map[string][]byte, len(names))
	for i, name := range names {
		files[name] = contents[i]
	}
	return files, nil
}
