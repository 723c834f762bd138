package model

import (
	"log/slog"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is one schema violation of a config file.
type CueErrorDetail struct {
	Path    string // jobs.0.command
	Code    string // unknown_field | missing_required | conflicting_values | invalid_value | validation_error
	Message string
	Pos     CueErrorPosition
	Raw     string
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

// enums are the string disjunctions of config.cue, default first
var enums = map[string][]string{
	"service.mode":       {ServiceModeManual, ServiceModeTimer},
	"service.log_format": {LogFormatJSON, LogFormatText},
}

// CueErrDetails turns an error returned by LoadConfig into a list of
// human friendly details. Errors not coming from CUE are ignored.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	var out []CueErrorDetail
	seen := make(map[CueErrorPosition]bool)
	for _, e := range cueerrors.Errors(err) {
		pos := position(e)
		if pos.Filename != "" && seen[pos] {
			continue
		}
		seen[pos] = true

		raw, _ := e.Msg()
		path := strings.Join(trimDefinition(e.Path()), ".")
		d := CueErrorDetail{
			Path: path,
			Pos:  pos,
			Raw:  e.Error(),
		}
		d.Code, d.Message = describe(raw, path)
		if values, ok := enums[path]; ok {
			d.Message += ": possible values (" + strings.Join(values, ",") + ") (default " + values[0] + ")"
		}
		out = append(out, d)
	}
	return out
}

func position(err cueerrors.Error) CueErrorPosition {
	for _, p := range cueerrors.Positions(err) {
		if p.Filename() != "" {
			return CueErrorPosition{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}
		}
	}
	return CueErrorPosition{}
}

// trimDefinition drops the leading #Config of schema paths
func trimDefinition(p []string) []string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		return p[1:]
	}
	return p
}

func describe(raw, path string) (code, msg string) {
	field := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		field = path[i+1:]
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "not allowed"):
		return "unknown_field", "Field " + field + " is not allowed"
	case strings.Contains(lower, "incomplete value"):
		return "missing_required", "Field " + field + " is required"
	case strings.Contains(lower, "conflicting values"), strings.Contains(lower, "empty disjunction"):
		return "conflicting_values", "Conflicting values for " + field
	case strings.Contains(lower, "out of bound"), strings.Contains(lower, "invalid value"):
		return "invalid_value", "Field " + field + " is out of allowed range"
	default:
		return "validation_error", raw
	}
}
