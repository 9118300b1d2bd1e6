// Package parsing implements the line-oriented input file formats of §6.1:
// orders, blockages, preventive maintenance, and the breakdown catalogue.
// Grounded on the teacher's environment/setup.go scanning style
// (bufio.Scanner + regexp, one diagnostic per bad line, continue on
// error) — that file is unrelated RL-harness scaffolding, not domain code,
// so only its scanning texture is reused here, not its content.
package parsing

import "fmt"

// Diagnostic reports one malformed line. Parsers never fail outright on a
// bad line (§6.1, §7 "Invalid input record"): they collect diagnostics and
// keep going.
type Diagnostic struct {
	Line   int
	Raw    string
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %q: %s", d.Line, d.Raw, d.Reason)
}

func diag(lineNo int, raw, reason string) Diagnostic {
	return Diagnostic{Line: lineNo, Raw: raw, Reason: reason}
}
