package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/stage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// StepLabels names the four steps of the progress widget.
var StepLabels = [stage.NumSteps]string{
	"Upload",
	"Analyze",
	"Commentary",
	"Render",
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RenderSteps renders the step widget on one line, e.g.
// "[x] Upload  [>] Analyze  [ ] Commentary  [ ] Render".
func RenderSteps(steps [stage.NumSteps]stage.StepState, colorize bool) string {
	parts := make([]string, 0, stage.NumSteps)
	for i, st := range steps {
		var marker string
		var colors text.Colors
		switch st {
		case stage.StepCompleted:
			marker, colors = "[x]", text.Colors{text.FgGreen}
		case stage.StepActive:
			marker, colors = "[>]", text.Colors{text.FgYellow, text.Bold}
		default:
			marker, colors = "[ ]", text.Colors{text.FgHiBlack}
		}
		item := marker + " " + StepLabels[i]
		if colorize {
			item = colors.Sprint(item)
		}
		parts = append(parts, item)
	}
	return strings.Join(parts, "  ")
}

// ProgressLine renders one status line: percentage, status text and steps.
func ProgressLine(p stage.Phase, colorize bool) string {
	return fmt.Sprintf("%4s  %-28s %s", FormatProgress(p.Progress), p.StatusText, RenderSteps(p.Steps, colorize))
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// RenderTable renders rows under headers in a rounded box.
func RenderTable(headers []string, rows [][]string, rightAligned ...int) string {
	aligns := make([]columnAlignment, len(headers))
	for _, col := range rightAligned {
		if col >= 0 && col < len(aligns) {
			aligns[col] = alignRight
		}
	}
	return renderTable(headers, rows, aligns)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    72,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// InsightTable renders insights in server order.
func InsightTable(insights []coachapi.Insight) string {
	if len(insights) == 0 {
		return "No coaching insights were returned."
	}
	rows := make([][]string, 0, len(insights))
	for _, in := range insights {
		rows = append(rows, []string{FormatTimestamp(in.TimestampSeconds), in.Action, in.Feedback})
	}
	return RenderTable([]string{"Time", "Action", "Feedback"}, rows, 0)
}

// VideoInfoLine summarises the analyzed video, or returns "" when unknown.
func VideoInfoLine(info *coachapi.VideoInfo) string {
	if info == nil {
		return ""
	}
	return fmt.Sprintf("%dx%d, %.2f fps, %d frames, %s",
		info.Width, info.Height, info.FPS, info.TotalFrames, FormatTimestamp(info.Duration))
}
