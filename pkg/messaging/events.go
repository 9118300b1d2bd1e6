package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subject names for every control-API intent the gateway publishes and the
// orchestrator subscribes to (§4.12).
const (
	SubjectOrderSubmit     = "sim.order.submit"
	SubjectBlockageToggle  = "sim.blockage.toggle"
	SubjectVehicleBreakdown = "sim.vehicle.breakdown"
	SubjectVehicleRepair   = "sim.vehicle.repair"
	SubjectSpeedSet        = "sim.speed.set"
	SubjectControlPause    = "sim.control.pause"
	SubjectControlResume   = "sim.control.resume"
	SubjectControlReset    = "sim.control.reset"
)

// Envelope wraps every intent published on the bus with identity and
// tracing metadata, matching the teacher's Event envelope shape minus the
// event-sourcing fields (AggregateID/Version) this domain has no use for —
// the orchestrator folds intents straight into its event queue rather than
// replaying a log.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Subject       string          `json:"subject"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// OrderSubmitIntent is the payload of SubjectOrderSubmit.
type OrderSubmitIntent struct {
	OrderID     string  `json:"order_id"`
	CustomerX   int     `json:"customer_x"`
	CustomerY   int     `json:"customer_y"`
	RequestedM3 int     `json:"requested_m3"`
	LimitHours  int     `json:"limit_hours"`
}

// BlockageToggleIntent is the payload of SubjectBlockageToggle.
type BlockageToggleIntent struct {
	BlockageID string `json:"blockage_id"`
	Active     bool   `json:"active"`
}

// VehicleBreakdownIntent is the payload of SubjectVehicleBreakdown.
type VehicleBreakdownIntent struct {
	VehicleID string `json:"vehicle_id"`
	Reason    string `json:"reason"`
}

// VehicleRepairIntent is the payload of SubjectVehicleRepair.
type VehicleRepairIntent struct {
	VehicleID string `json:"vehicle_id"`
}

// SpeedSetIntent is the payload of SubjectSpeedSet.
type SpeedSetIntent struct {
	TickMillis int `json:"tick_millis"`
}

// NewEnvelope marshals data and stamps a fresh ID/timestamp.
func NewEnvelope(subject, correlationID string, data interface{}) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:            uuid.New(),
		Subject:       subject,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		Data:          payload,
	}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}
