package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanqa/internal/scoring"
)

// ProgressCallback receives batch progress. The pipeline serializes calls.
type ProgressCallback interface {
	// OnStart is called once with the number of items after PDF expansion.
	OnStart(total int)

	// OnItem is called as each item finishes. index is the item's position in the result
	// slice; completed counts finished items so far.
	OnItem(index, completed, total int, item BatchItemResult)

	// OnComplete is called when every item has finished.
	OnComplete()
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)                           {}
func (NoOpProgressCallback) OnItem(int, int, int, BatchItemResult) {}
func (NoOpProgressCallback) OnComplete()                           {}

var tallyOrder = []scoring.Category{scoring.Excellent, scoring.Moderate, scoring.Poor, scoring.Failed}

// Tally counts finished batch items by outcome.
type Tally struct {
	Documents  int
	Empty      int // items in which no document was found
	Errors     int
	Categories map[scoring.Category]int
}

// Add counts item.
func (t *Tally) Add(item BatchItemResult) {
	switch {
	case item.Err != nil:
		t.Errors++
	case len(item.Records) == 0:
		t.Empty++
	default:
		if t.Categories == nil {
			t.Categories = make(map[scoring.Category]int)
		}
		for _, r := range item.Records {
			t.Documents++
			t.Categories[r.Category]++
		}
	}
}

// String renders e.g. "3 documents (2 Excellent, 1 Poor), 1 without document, 1 error".
func (t Tally) String() string {
	var cats []string
	for _, c := range tallyOrder {
		if n := t.Categories[c]; n > 0 {
			cats = append(cats, fmt.Sprintf("%d %s", n, c))
		}
	}
	s := plural(t.Documents, "document", "documents")
	if len(cats) > 0 {
		s += " (" + strings.Join(cats, ", ") + ")"
	}
	if t.Empty > 0 {
		s += fmt.Sprintf(", %d without document", t.Empty)
	}
	if t.Errors > 0 {
		s += ", " + plural(t.Errors, "error", "errors")
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// ConsoleProgressCallback draws a progress bar with a running verdict count.
type ConsoleProgressCallback struct {
	mu             sync.Mutex
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	lastUpdate     time.Time
	startTime      time.Time
	tally          Tally
}

// NewConsoleProgressCallback creates a console reporter writing to writer (stderr if nil).
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          30,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = max(width, 1)
	return c
}

// WithUpdateInterval sets the minimum time between redraws.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	c.tally = Tally{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnItem(_, completed, total int, item BatchItemResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tally.Add(item)
	if item.Err != nil {
		_, _ = fmt.Fprintf(c.writer, "\n%s%s: %v\n", c.prefix, item.Filename, item.Err)
	}

	now := time.Now()
	if item.Err == nil && completed < total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now
	c.draw(completed, total)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%s%s in %v\n", c.prefix, c.tally, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) draw(completed, total int) {
	if total == 0 {
		return
	}
	filled := c.width * completed / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d  %s", c.prefix, bar, completed, total, c.tally)
}

// LogProgressCallback reports progress through slog every interval items.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	prefix    string
	interval  int
	lastLog   int
	startTime time.Time
	tally     Tally
}

// NewLogProgressCallback creates a log reporter. A nil logger uses slog.Default.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, prefix string) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, prefix: prefix, interval: 10}
}

// WithInterval sets how many items pass between progress lines.
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = max(interval, 1)
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.lastLog = 0
	l.tally = Tally{}
	l.logger.Log(context.Background(), l.level, l.prefix+"assessment started", "items", total)
}

func (l *LogProgressCallback) OnItem(_, completed, total int, item BatchItemResult) {
	l.tally.Add(item)
	if item.Err != nil {
		l.logger.Log(context.Background(), slog.LevelWarn, l.prefix+"item failed",
			"file", item.Filename, "error", item.Err)
	}
	if completed-l.lastLog < l.interval && completed != total {
		return
	}
	l.lastLog = completed
	l.logger.Log(context.Background(), l.level, l.prefix+"assessment progress",
		"completed", completed,
		"total", total,
		"documents", l.tally.Documents,
		"errors", l.tally.Errors,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, l.prefix+"assessment completed",
		"summary", l.tally.String(),
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}
