package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"reportharness/internal/scheduler"
	"reportharness/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listOutput string

// testCaseInfo describes one discovered test case.
type testCaseInfo struct {
	Name string `json:"name"`
	Jobs int    `json:"jobs"`
	Apps int    `json:"apps"`
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the test cases under the configured test path",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	cmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format: table or json")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	names, err := scheduler.New(cfg, scheduler.Deps{Logger: logging.For("Scheduler")}).Discover()
	if err != nil {
		return err
	}

	infos := make([]testCaseInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, describeTestCase(filepath.Join(cfg.TestPath, name), name))
	}
	return printTestCases(cmd.OutOrStdout(), infos, listOutput)
}

func describeTestCase(dir, name string) testCaseInfo {
	info := testCaseInfo{Name: name}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return info
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json":
			info.Jobs++
		case ".qvf":
			info.Apps++
		}
	}
	return info
}

func printTestCases(w io.Writer, infos []testCaseInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "table", "":
		if len(infos) == 0 {
			fmt.Fprintln(w, "No test cases found")
			return nil
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"TEST CASE", "JOBS", "APPS"})
		for _, info := range infos {
			t.AppendRow(table.Row{info.Name, info.Jobs, info.Apps})
		}
		t.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
