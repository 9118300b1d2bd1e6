package parsing

import (
	"bufio"
	"io"
	"regexp"
	"strconv"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// breakdownLineRe matches "Tk_TTNN_TIm", e.g. "T2_TA01_TI3": shift k,
// vehicle id, incident severity m (§6.1).
var breakdownLineRe = regexp.MustCompile(`^T([123])_([A-Z]{2}\d{2})_TI([123])$`)

// CatalogEntry schedules a candidate breakdown: vehicle vehicleID may
// suffer a Type incident during Shift on any simulated day.
type CatalogEntry struct {
	Shift     domain.Shift
	VehicleID string
	Type      domain.IncidentType
}

// ParseBreakdownCatalog reads `averias.txt` (§6.1).
func ParseBreakdownCatalog(r io.Reader) ([]CatalogEntry, []Diagnostic) {
	var entries []CatalogEntry
	var diags []Diagnostic

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := breakdownLineRe.FindStringSubmatch(line)
		if m == nil {
			diags = append(diags, diag(lineNo, line, "does not match Tk_TTNN_TIm format"))
			continue
		}
		k, _ := strconv.Atoi(m[1])
		severity := m[3]

		var incidentType domain.IncidentType
		switch severity {
		case "1":
			incidentType = domain.TI1
		case "2":
			incidentType = domain.TI2
		case "3":
			incidentType = domain.TI3
		}

		entries = append(entries, CatalogEntry{
			Shift:     domain.Shift(k - 1),
			VehicleID: m[2],
			Type:      incidentType,
		})
	}
	return entries, diags
}
