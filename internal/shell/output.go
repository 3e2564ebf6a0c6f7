package shell

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultWidth   = 80
	listIndent     = 5
	promptMixWidth = 30
)

// nowPlaying is the data available to the now_playing_format template
type nowPlaying struct {
	Name     string
	Artist   string
	Album    string
	Mix      string
	Duration string
}

func newNowPlaying(mix catalog.Mix, track catalog.Track) nowPlaying {
	return nowPlaying{
		Name:     track.Name,
		Artist:   track.Artist,
		Album:    track.Album,
		Mix:      mix.Name,
		Duration: formatClock(track.Duration),
	}
}

// formatNowPlaying applies the template to the track data
func formatNowPlaying(np nowPlaying, templateStr string) (string, error) {
	tmpl, err := template.New("now_playing").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, np); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

// truncate shortens text to width display columns and appends "..."
// when anything was cut
func truncate(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "") + "..."
}

// prompt returns the prompt for the browse or play mode
func prompt(mixName string, playing bool) string {
	if !playing {
		return "(8tracks)> "
	}
	return fmt.Sprintf("(8tracks:%s)> ", truncate(mixName, promptMixWidth))
}

// wrapText breaks text into lines on word boundaries. The first line may use
// first columns, every following line rest columns. Words wider than a
// line are split.
func wrapText(text string, first, rest int) []string {
	if first < 1 {
		first = 1
	}
	if rest < 1 {
		rest = 1
	}

	var lines []string
	var cur strings.Builder
	curWidth := 0
	limit := first

	flush := func() {
		lines = append(lines, cur.String())
		cur.Reset()
		curWidth = 0
		limit = rest
	}

	for _, word := range strings.Fields(text) {
		w := runewidth.StringWidth(word)

		if curWidth > 0 && curWidth+1+w > limit {
			flush()
		}
		for w > limit {
			// Word does not fit on an empty line either
			head := runewidth.Truncate(word, limit, "")
			if head == "" {
				break
			}
			cur.WriteString(head)
			flush()
			word = strings.TrimPrefix(word, head)
			w = runewidth.StringWidth(word)
		}
		if word == "" {
			continue
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += w
	}
	if curWidth > 0 || len(lines) == 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// writeResults prints one numbered, wrapped row per mix
func writeResults(w io.Writer, mixes []catalog.Mix, width int) {
	for i, mix := range mixes {
		prefix := fmt.Sprintf("%-*s", listIndent, fmt.Sprintf(" %d)", i+1))
		info := fmt.Sprintf("%s (%d tracks, %s)", mix.Name, mix.TrackCount, formatHours(mix.Duration))

		lines := wrapText(info, width-listIndent, width-2*listIndent)
		fmt.Fprintln(w, prefix+lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintln(w, strings.Repeat(" ", listIndent)+line)
		}
	}
}

// formatHours formats a mix length as "1h 5m"
func formatHours(d time.Duration) string {
	total := int(d.Minutes())
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// formatClock formats a position as "3:07" or "1:02:03"
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds())
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// terminalWidth returns the width of the terminal behind w, or a default
// when w is not a terminal
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// setTitle sets the terminal window title with an xterm escape sequence
func setTitle(w io.Writer, title string) {
	fmt.Fprintf(w, "\x1b]2;%s\x07", title)
}
