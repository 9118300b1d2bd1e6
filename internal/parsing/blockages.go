package parsing

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fleetops/lpgdispatch/internal/domain"
)

// blockageHeaderRe matches "##d##h##m-##d##h##m:" leaving the comma-joined
// coordinate list as the remainder.
var blockageHeaderRe = regexp.MustCompile(`^(\d+)d(\d+)h(\d+)m-(\d+)d(\d+)h(\d+)m:(.+)$`)

// ParseBlockages reads one `<YYYY><MM>.bloqueos` file. base is midnight of
// the month the file covers (§6.1).
func ParseBlockages(r io.Reader, base time.Time) ([]*domain.Blockage, []Diagnostic) {
	var blockages []*domain.Blockage
	var diags []Diagnostic

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := blockageHeaderRe.FindStringSubmatch(line)
		if m == nil {
			diags = append(diags, diag(lineNo, line, "does not match blockage header format"))
			continue
		}

		start := offsetTime(base, m[1], m[2], m[3])
		end := offsetTime(base, m[4], m[5], m[6])

		coords := strings.Split(m[7], ",")
		if len(coords)%2 != 0 || len(coords) < 4 {
			diags = append(diags, diag(lineNo, line, "odd or insufficient coordinate count, need >= 2 points"))
			continue
		}

		points := make([]domain.Position, 0, len(coords)/2)
		malformed := false
		for i := 0; i+1 < len(coords); i += 2 {
			x, errX := strconv.Atoi(coords[i])
			y, errY := strconv.Atoi(coords[i+1])
			if errX != nil || errY != nil {
				diags = append(diags, diag(lineNo, line, "non-integer coordinate"))
				malformed = true
				break
			}
			points = append(points, domain.Position{X: x, Y: y})
		}
		if malformed {
			continue
		}

		blockages = append(blockages, &domain.Blockage{
			ID:        "blk-" + strconv.Itoa(lineNo),
			StartTime: start,
			EndTime:   end,
			Points:    points,
		})
	}
	return blockages, diags
}

func offsetTime(base time.Time, dayStr, hourStr, minuteStr string) time.Time {
	day, _ := strconv.Atoi(dayStr)
	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minuteStr)
	return base.AddDate(0, 0, day-1).
		Add(time.Duration(hour) * time.Hour).
		Add(time.Duration(minute) * time.Minute)
}
