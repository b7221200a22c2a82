package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/minhyannv/prompt-tester/pkg/thinking"
)

// clearLine erases the current terminal line and returns to its first column.
const clearLine = ansi.EraseEntireLine + "\r"

// streamRenderer prints streamed fragments. With hideThinking set, the
// thinking region is replaced by an in-place "Thinking..." animation.
type streamRenderer struct {
	w            io.Writer
	hideThinking bool
	now          func() time.Time
	style        lipgloss.Style

	raw        strings.Builder
	filter     thinking.Filter
	frame      int
	thinkStart time.Time
}

func newStreamRenderer(w io.Writer, hideThinking bool, now func() time.Time) *streamRenderer {
	return &streamRenderer{
		w:            w,
		hideThinking: hideThinking,
		now:          now,
		style:        lipgloss.NewRenderer(w).NewStyle().Faint(true),
	}
}

func (s *streamRenderer) write(fragment string) {
	if !s.hideThinking {
		s.raw.WriteString(fragment)
		s.print(fragment)
		return
	}

	u := s.filter.Write(fragment)
	s.print(u.Leading)
	if u.Entered {
		s.thinkStart = s.now()
		s.frame = 0
	}
	if u.Inside {
		dots := strings.Repeat(".", s.frame)
		s.print(clearLine + s.style.Render("Thinking"+dots))
		s.frame = (s.frame + 1) % 4
	}
	if u.Exited {
		elapsed := s.now().Sub(s.thinkStart)
		s.print(clearLine + s.style.Render(fmt.Sprintf("Thought for %.2f seconds (%.2f minutes).", elapsed.Seconds(), elapsed.Minutes())) + "\n")
	}
	s.print(u.Trailing)
}

// finish releases held-back text, or clears the indicator if the stream
// ended inside the thinking region.
func (s *streamRenderer) finish() {
	if !s.hideThinking {
		return
	}
	if s.filter.Inside() {
		s.print(clearLine)
		return
	}
	s.print(s.filter.Flush())
}

// text returns the raw accumulated response, markers included.
func (s *streamRenderer) text() string {
	if s.hideThinking {
		return s.filter.Text()
	}
	return s.raw.String()
}

func (s *streamRenderer) print(text string) {
	if text == "" {
		return
	}
	_, _ = io.WriteString(s.w, text)
}
