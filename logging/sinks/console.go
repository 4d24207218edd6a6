package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/jarvis394/snapshot-interpolation/logging"
)

type ConsoleSink struct {
	logger   *log.Logger
	severity map[logging.Severity]func(a ...any) string
}

// NewConsoleSink writes one line per event. Severities are colourised when
// cfg.UseColor is set, regardless of whether w is a terminal.
func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	sink := &ConsoleSink{logger: log.New(w, "", log.LstdFlags)}
	if cfg.UseColor {
		sink.severity = map[logging.Severity]func(a ...any) string{
			logging.SeverityDebug: colorFunc(color.FgHiBlack),
			logging.SeverityInfo:  colorFunc(color.FgCyan),
			logging.SeverityWarn:  colorFunc(color.FgYellow),
			logging.SeverityError: colorFunc(color.FgRed, color.Bold),
		}
	}
	return sink
}

func colorFunc(attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintFunc()
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] frame=%d subject=%s severity=%s%s%s", event.Type, event.Frame, formatSubject(event.Subject), s.formatSeverity(event.Severity), formatPayload(event.Payload), formatExtra(event.Extra))
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func (s *ConsoleSink) formatSeverity(sev logging.Severity) string {
	if paint, ok := s.severity[sev]; ok {
		return paint(sev.String())
	}
	return sev.String()
}

func formatSubject(ref logging.SubjectRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatExtra(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, extra[k]))
	}
	return " " + strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
