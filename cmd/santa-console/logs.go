package main

import (
	"fmt"

	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/unklstewy/santa-scope/internal/logging"
)

// LogView shows the records collected by a logging.Panel.
type LogView struct {
	textView *tview.TextView
}

// NewLogView creates the log panel.
func NewLogView(maxLines int) *LogView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxLines)
	textView.SetBorder(true).SetTitle(" Logs ")
	return &LogView{textView: textView}
}

// GetView returns the tview component
func (lv *LogView) GetView() tview.Primitive {
	return lv.textView
}

// Append writes one record and scrolls to it. Must run on the UI goroutine.
func (lv *LogView) Append(e logging.Entry) {
	fmt.Fprint(lv.textView, formatEntry(e))
	lv.textView.ScrollToEnd()
}

// formatEntry renders a record as a colour-tagged line.
func formatEntry(e logging.Entry) string {
	line := fmt.Sprintf("[gray]%s[-] [%s]%-5s[-] ", e.Time.Format("15:04:05"), levelColor(e.Level), levelName(e.Level))
	if e.Component != "" {
		line += fmt.Sprintf("[blue]%s[-] ", e.Component)
	}
	line += tview.Escape(e.Message)
	if e.Error != "" {
		line += " [red]" + tview.Escape(e.Error) + "[-]"
	}
	return line + "\n"
}

func levelName(l zerolog.Level) string {
	switch l {
	case zerolog.DebugLevel:
		return "DEBUG"
	case zerolog.WarnLevel:
		return "WARN"
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return "ERROR"
	}
	return "INFO"
}

// levelColor returns the tview color tag for a log level
func levelColor(l zerolog.Level) string {
	switch l {
	case zerolog.DebugLevel:
		return "gray"
	case zerolog.WarnLevel:
		return "yellow"
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return "red"
	}
	return "white"
}
