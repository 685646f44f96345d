package compare

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reportharness/internal/results"
	"reportharness/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCase(t *testing.T, baseline, output map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, OutputDirName), 0755))
	for name, content := range baseline {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	for name, content := range output {
		require.NoError(t, os.WriteFile(filepath.Join(dir, OutputDirName, name), []byte(content), 0644))
	}
	return dir
}

func TestComparator_Run(t *testing.T) {
	dir := setupCase(t,
		map[string]string{"a.csv": "1,2", "b.csv": "3,4", "job.json": "{}"},
		map[string]string{"a.csv": "1,2", "b.csv": "9,9", "0_Sales.xlsx": "x"},
	)
	ledger := results.NewLedger("case")

	New(dir, ledger, logging.Discard()).Run(context.Background(), "csv")

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Compare Result Test - csv", records[0].Name)
	assert.Equal(t, 2, records[0].Expected)
	assert.Equal(t, 1, records[0].Received)
	assert.Equal(t, results.StatusFailed, records[0].Status())
	assert.Empty(t, ledger.Errors())
}

func TestComparator_AllMatch(t *testing.T) {
	dir := setupCase(t,
		map[string]string{"a.csv": "1,2"},
		map[string]string{"a.csv": "1,2"},
	)
	ledger := results.NewLedger("case")

	New(dir, ledger, logging.Discard()).Run(context.Background(), "csv")

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Passed())
}

func TestComparator_EmptyBaseline(t *testing.T) {
	dir := setupCase(t, map[string]string{"job.json": "{}"}, map[string]string{"a.csv": "1,2"})
	ledger := results.NewLedger("case")

	New(dir, ledger, logging.Discard()).Run(context.Background(), "csv")

	assert.Empty(t, ledger.Records())
	assert.Empty(t, ledger.Errors())
}

func TestComparator_MissingOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("1"), 0644))
	ledger := results.NewLedger("case")

	New(dir, ledger, logging.Discard()).Run(context.Background(), "csv")

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Received)

	errs := ledger.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], ErrFileLoad)
}

func TestLoadFiles(t *testing.T) {
	dir := setupCase(t, map[string]string{"a.csv": "a", "B.CSV": "b", "c.csv.bak": "c", "d.txt": "d"}, nil)

	files, err := LoadFiles(context.Background(), dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a.csv": []byte("a"), "B.CSV": []byte("b")}, files)

	_, err = LoadFiles(context.Background(), filepath.Join(dir, "missing"), "csv")
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}
