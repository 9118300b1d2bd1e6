package domain

import "time"

// IncidentType is the breakdown severity catalogue (§3).
type IncidentType string

const (
	TI1 IncidentType = "TI1" // 2h on-site
	TI2 IncidentType = "TI2" // 2h on-site + 1 shift workshop
	TI3 IncidentType = "TI3" // 4h on-site + full day workshop
)

// Shift is one of the three 8-hour windows used to describe incident
// timing and workshop-release rules.
type Shift int

const (
	ShiftT1 Shift = iota // [00:00,08:00)
	ShiftT2              // [08:00,16:00)
	ShiftT3              // [16:00,24:00)
)

// ShiftOf returns which shift t falls within, on its own calendar day.
func ShiftOf(t time.Time) Shift {
	switch h := t.Hour(); {
	case h < 8:
		return ShiftT1
	case h < 16:
		return ShiftT2
	default:
		return ShiftT3
	}
}

// Incident is a stochastic breakdown affecting one vehicle.
type Incident struct {
	ID          string
	VehicleID   string
	OccurredAt  time.Time
	Type        IncidentType
	ResolvedAt  *time.Time
}

// IsActive reports whether the incident still holds the vehicle at t.
func (i *Incident) IsActive(t time.Time) bool {
	if i.ResolvedAt != nil {
		return false
	}
	return t.Before(i.AvailableAt())
}

// OnSiteDuration is the time the vehicle is held at its current position
// before either becoming available again (TI1) or heading to workshop.
func (i *Incident) OnSiteDuration() time.Duration {
	switch i.Type {
	case TI1:
		return 2 * time.Hour
	case TI2:
		return 2 * time.Hour
	case TI3:
		return 4 * time.Hour
	default:
		return 0
	}
}

// AvailableAt computes when the vehicle becomes available again, applying
// the availability-after-workshop rules of §3:
//   - TI1: on-site only, available after the 2h on-site window.
//   - TI2 in shift Tk on day D: available in shift T(k+2 mod 3), day D or
//     D+1 depending on whether the wrap carries into the next day.
//   - TI3 in any shift, day D: available shift T1, day D+3.
func (i *Incident) AvailableAt() time.Time {
	switch i.Type {
	case TI1:
		return i.OccurredAt.Add(i.OnSiteDuration())
	case TI2:
		k := int(ShiftOf(i.OccurredAt))
		day := startOfDay(i.OccurredAt)
		nextShift := (k + 2) % 3
		dayOffset := 0
		if k+2 >= 3 {
			dayOffset = 1
		}
		return shiftStart(day.AddDate(0, 0, dayOffset), Shift(nextShift))
	case TI3:
		day := startOfDay(i.OccurredAt)
		return shiftStart(day.AddDate(0, 0, 3), ShiftT1)
	default:
		return i.OccurredAt
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func shiftStart(day time.Time, s Shift) time.Time {
	switch s {
	case ShiftT1:
		return day
	case ShiftT2:
		return day.Add(8 * time.Hour)
	case ShiftT3:
		return day.Add(16 * time.Hour)
	default:
		return day
	}
}

// Resolve marks the incident as manually resolved at t (the
// POST /vehicle/repair control operation), overriding AvailableAt.
func (i *Incident) Resolve(t time.Time) {
	i.ResolvedAt = &t
}

// InferIncidentType maps an estimated repair duration in hours onto the
// breakdown catalogue, per §6.2's POST /vehicle/breakdown contract:
// <=2h => TI1, 3-24h => TI2, >24h => TI3.
func InferIncidentType(estimatedRepairHours float64) IncidentType {
	switch {
	case estimatedRepairHours <= 2:
		return TI1
	case estimatedRepairHours <= 24:
		return TI2
	default:
		return TI3
	}
}
