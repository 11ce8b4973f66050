package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/l3aro/restruct/internal/config"
	"github.com/l3aro/restruct/internal/log"
	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cfg"
	"github.com/l3aro/restruct/pkg/structure"
)

var (
	blockStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stmtStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// painter applies lipgloss styles only when writing to a terminal.
type painter struct {
	enabled bool
}

func newPainter(w io.Writer) painter {
	return painter{enabled: log.IsTerminal(w)}
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return s.Render(text)
}

// outputFormat returns the --format flag, falling back to the configured
// default.
func outputFormat(flag string) (string, error) {
	if flag == "" {
		flag = appConfig.OutputFormat
	}
	switch flag {
	case config.FormatText, config.FormatJSON, config.FormatYAML, config.FormatMsgpack:
		return flag, nil
	}
	return "", fmt.Errorf("unknown format %q (use text, json, yaml or msgpack)", flag)
}

// renderNode writes n in the given output format.
func renderNode(w io.Writer, n ast.Node, format string) error {
	if format == config.FormatText {
		renderText(w, n)
		return nil
	}
	return renderData(w, ast.ToTree(n), format)
}

// renderData encodes v with the cfg codecs, ending text formats with a newline.
func renderData(w io.Writer, v interface{}, format string) error {
	f, err := cfg.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal(v, f)
	if err != nil {
		return fmt.Errorf("encoding %s output: %w", format, err)
	}
	if f != cfg.FormatMsgpack && !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return err
}

// renderText writes the indented outline of n.
func renderText(w io.Writer, n ast.Node) {
	p := newPainter(w)
	for _, line := range ast.Lines(n) {
		indent := strings.Repeat("  ", line.Depth)
		var text string
		switch line.Kind {
		case ast.LineBlock:
			text = p.paint(blockStyle, line.Text)
		case ast.LineKeyword:
			text = p.paint(keywordStyle, line.Text)
		default:
			text = p.paint(stmtStyle, line.Text)
		}
		fmt.Fprintln(w, indent+text)
	}
}

// renderCollapse writes one trace line for a region rewrite.
func renderCollapse(w io.Writer, name string, c structure.Collapse) {
	p := newPainter(w)
	prefix := ""
	if name != "" {
		prefix = name + " "
	}
	fmt.Fprintf(w, "%s%s %s removed=%d %s\n",
		p.paint(dimStyle, fmt.Sprintf("%spass=%d", prefix, c.Pass)),
		p.paint(keywordStyle, fmt.Sprintf("%-8s", c.Kind)),
		c.Header,
		c.Removed,
		ast.Format(c.Result))
}
