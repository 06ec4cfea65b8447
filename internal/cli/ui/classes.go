package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// ClassRow is one line of a class listing
type ClassRow struct {
	Class      string
	Attributes int
	Kind       string // abstract, relation or class
	Deprecated bool
}

func (r ClassRow) kind() string {
	if r.Deprecated {
		return r.Kind + ", deprecated"
	}
	return r.Kind
}

// WriteClasses prints rows under a CLASS / ATTRIBUTES / KIND header. Attribute counts are
// right aligned and deprecated classes are dimmed.
func WriteClasses(w io.Writer, rows []ClassRow, noColor bool) {
	classWidth, countWidth := len("CLASS"), len("ATTRIBUTES")
	for _, r := range rows {
		classWidth = max(classWidth, utf8.RuneCountInString(r.Class))
		countWidth = max(countWidth, len(strconv.Itoa(r.Attributes)))
	}

	header := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.Faint)
	if noColor {
		header.DisableColor()
		dim.DisableColor()
	}

	header.Fprintln(w, padRight("CLASS", classWidth)+"  ATTRIBUTES  KIND")
	for _, r := range rows {
		line := fmt.Sprintf("%s  %*d  %s", padRight(r.Class, classWidth), countWidth, r.Attributes, r.kind())
		if r.Deprecated {
			dim.Fprintln(w, line)
			continue
		}
		fmt.Fprintln(w, line)
	}
}

// Summary collects labelled values printed after a run
type Summary struct {
	labels []string
	values []string
}

// Add appends a line to the summary
func (s *Summary) Add(label, value string) *Summary {
	s.labels = append(s.labels, label)
	s.values = append(s.values, value)
	return s
}

// Write prints the summary with the values aligned after the longest label
func (s *Summary) Write(w io.Writer, noColor bool) {
	width := 0
	for _, l := range s.labels {
		width = max(width, utf8.RuneCountInString(l)+1)
	}
	label := color.New(color.FgCyan)
	if noColor {
		label.DisableColor()
	}
	for i, l := range s.labels {
		label.Fprint(w, padRight(l+":", width))
		fmt.Fprintln(w, " "+s.values[i])
	}
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
