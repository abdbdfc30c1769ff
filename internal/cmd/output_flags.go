package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/appid"
	"github.com/mou514/FinanceMate-sub000/internal/output"
)

// addOutputFlags registers --output-format, --out and --out-dir.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|markdown|json")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output to <dir>/<command>.<ext>")
}

// outputTarget is where and how a command writes its result. An empty path
// means stdout.
type outputTarget struct {
	format output.Format
	path   string
}

// resolveOutput reads the output flags. name is the file stem used with
// --out-dir.
func resolveOutput(cmd *cobra.Command, name string) (outputTarget, error) {
	flags := cmd.Flags()
	rawFormat, _ := flags.GetString("output-format")
	format, err := output.ParseFormat(rawFormat)
	if err != nil {
		return outputTarget{}, err
	}

	out, _ := flags.GetString("out")
	dir, _ := flags.GetString("out-dir")
	out, dir = strings.TrimSpace(out), strings.TrimSpace(dir)
	switch {
	case out != "" && dir != "":
		return outputTarget{}, errors.New("--out and --out-dir are mutually exclusive")
	case dir != "":
		abs, err := prepareOutDir(dir)
		if err != nil {
			return outputTarget{}, err
		}
		out = filepath.Join(abs, name+"."+extensionFor(format))
	case out == "-":
		out = ""
	}
	return outputTarget{format: format, path: out}, nil
}

func extensionFor(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	}
	return "txt"
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (t outputTarget) open() (io.WriteCloser, error) {
	if t.path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	// #nosec G301 -- report directories are user-chosen
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return os.Create(t.path)
}

// writeReport renders report per the command's output flags.
func writeReport(cmd *cobra.Command, name string, report output.Report) error {
	target, err := resolveOutput(cmd, name)
	if err != nil {
		return err
	}
	rendered, err := output.Render(target.format, report)
	if err != nil {
		return err
	}

	w, err := target.open()
	if err != nil {
		return err
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	if _, err := io.WriteString(w, rendered); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// prepareOutDir creates dir, checks that files can be written into it and
// returns its absolute path.
func prepareOutDir(dir string) (string, error) {
	// #nosec G301 -- report directories are user-chosen
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	probe, err := os.CreateTemp(abs, "."+appid.Get().BinaryName+"-write-test-*")
	if err != nil {
		return "", fmt.Errorf("output directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return abs, nil
}
