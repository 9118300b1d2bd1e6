package parsing

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// orderLineRe matches "##d##h##m:posX,posY,c-<clientId>,<m3>m3,<hours>h",
// e.g. "11d13h31m:45,43,c-167,9m3,36h".
var orderLineRe = regexp.MustCompile(`^(\d+)d(\d+)h(\d+)m:(-?\d+),(-?\d+),c-(\w+),(\d+)m3,(\d+)h$`)

// ParseOrders reads one `ventas<YYYY><MM>` file. base is midnight of the
// month the file covers; every record's day/hour/minute offset is relative
// to it (§6.1).
func ParseOrders(r io.Reader, base time.Time) ([]*domain.Order, []Diagnostic) {
	var orders []*domain.Order
	var diags []Diagnostic

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := orderLineRe.FindStringSubmatch(line)
		if m == nil {
			diags = append(diags, diag(lineNo, line, "does not match orders line format"))
			continue
		}

		day, _ := strconv.Atoi(m[1])
		hour, _ := strconv.Atoi(m[2])
		minute, _ := strconv.Atoi(m[3])
		x, _ := strconv.Atoi(m[4])
		y, _ := strconv.Atoi(m[5])
		clientID := m[6]
		m3, _ := strconv.Atoi(m[7])
		limitHours, _ := strconv.Atoi(m[8])

		arrival := base.AddDate(0, 0, day-1).
			Add(time.Duration(hour) * time.Hour).
			Add(time.Duration(minute) * time.Minute)

		orders = append(orders, domain.NewOrder("c-"+clientID+"-"+strconv.Itoa(lineNo), domain.Position{X: x, Y: y}, arrival, limitHours, m3))
	}
	return orders, diags
}
