package parsing

import (
	"bufio"
	"io"
	"regexp"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// maintenanceLineRe matches "YYYYMMDD:TTNN".
var maintenanceLineRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2}):([A-Z]{2}\d{2})$`)

// ParseMaintenance reads one `mantpreventivo` file (§6.1).
func ParseMaintenance(r io.Reader) ([]domain.MaintenanceTask, []Diagnostic) {
	var tasks []domain.MaintenanceTask
	var diags []Diagnostic

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := maintenanceLineRe.FindStringSubmatch(line)
		if m == nil {
			diags = append(diags, diag(lineNo, line, "does not match YYYYMMDD:TTNN format"))
			continue
		}
		day, err := time.Parse("20060102", m[1]+m[2]+m[3])
		if err != nil {
			diags = append(diags, diag(lineNo, line, "invalid calendar date"))
			continue
		}
		tasks = append(tasks, domain.MaintenanceTask{VehicleID: m[4], Day: day})
	}
	return tasks, diags
}
