package builtin

import (
	"fmt"
	"regexp"
	"strings"
)

// Output normalization modes of the shell task.
const (
	NormalizeRaw    = "raw"
	NormalizeLines  = "lines"
	NormalizeStable = "stable"
)

type mask struct {
	re   *regexp.Regexp
	with string
}

// volatile matches run-dependent text that would otherwise make two runs
// of the same command produce different outputs.
var volatile = []mask{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?`), "<TIMESTAMP>"},
	{regexp.MustCompile(`\d{4}[-/]\d{2}[-/]\d{2}\s+\d{2}:\d{2}:\d{2}(\.\d+)?`), "<TIMESTAMP>"},
	{regexp.MustCompile(`\b1[0-9]{9,12}\b`), "<UNIX_TS>"},
	{regexp.MustCompile(`\b\d+(\.\d+)?\s*(ms|s|seconds?|minutes?|hours?)\b`), "<DURATION>"},
	{regexp.MustCompile(`\b[Pp][Ii][Dd][:\s]*\d+\b`), "pid <PID>"},
	{regexp.MustCompile(`0x[0-9a-fA-F]{8,16}`), "<ADDR>"},
}

// normalizer returns the function applied to command output for mode.
func normalizer(mode string) (func(string) string, error) {
	switch mode {
	case NormalizeRaw, "":
		return func(s string) string { return s }, nil
	case NormalizeLines:
		return normalizeLines, nil
	case NormalizeStable:
		return func(s string) string {
			s = normalizeLines(s)
			for _, m := range volatile {
				s = m.re.ReplaceAllString(s, m.with)
			}
			return s
		}, nil
	}
	return nil, fmt.Errorf("unknown normalize mode %q (want %s, %s or %s)", mode, NormalizeRaw, NormalizeLines, NormalizeStable)
}

// normalizeLines converts CRLF line endings to LF.
func normalizeLines(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") }
