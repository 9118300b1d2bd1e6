// Package gateway implements the HTTP/JSON control API and WebSocket
// snapshot broadcast (C11, §6.2). Grounded on the teacher's
// internal/gateway/gateway.go: gin router, correlation-ID middleware, an
// in-memory sliding-window rate limiter, and a gorilla/websocket upgrade
// path — repurposed here from per-user trade broadcast to a single
// all-subscribers snapshot feed, since the map UI has no user accounts.
// The JWT auth middleware the teacher wires on every route is dropped
// (auth is an explicit Non-goal); the rate limiter and correlation-ID
// middleware are kept since they are ambient, not features.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fleetops/lpgdispatch/internal/domain"
	"github.com/fleetops/lpgdispatch/internal/environment"
	"github.com/fleetops/lpgdispatch/internal/orchestrator"
	"github.com/fleetops/lpgdispatch/pkg/messaging"
)

// minSpeedMillis/maxSpeedMillis mirror the orchestrator's clamp so the
// gateway can reject out-of-range values with 400 before even publishing.
const (
	minSpeedMillis = 50
	maxSpeedMillis = 10000
)

// Gateway is the control API surface.
type Gateway struct {
	router *gin.Engine
	sim    *orchestrator.Orchestrator
	bus    messaging.Bus

	wsMu      sync.RWMutex
	wsClients map[uuid.UUID]*wsClient

	rateLimiter *rateLimiter
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Config holds gateway tunables.
type Config struct {
	RateLimitWindow time.Duration
	RateLimitMax    int
	BroadcastPeriod time.Duration
}

// DefaultConfig returns the reference rate limit (120 req/min) and a
// 1-second snapshot broadcast period.
func DefaultConfig() Config {
	return Config{RateLimitWindow: time.Minute, RateLimitMax: 120, BroadcastPeriod: time.Second}
}

// New builds a Gateway wired to sim and bus.
func New(cfg Config, sim *orchestrator.Orchestrator, bus messaging.Bus) *Gateway {
	g := &Gateway{
		router:    gin.Default(),
		sim:       sim,
		bus:       bus,
		wsClients: make(map[uuid.UUID]*wsClient),
		rateLimiter: &rateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
	}
	g.setupRoutes()
	go g.broadcastLoop(cfg.BroadcastPeriod)
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })

	sim := g.router.Group("/simulation")
	{
		sim.GET("/status", g.getStatus)
		sim.POST("/start", g.postStart)
		sim.POST("/pause", g.postPause)
		sim.POST("/reset", g.postReset)
		sim.GET("/speed", g.getSpeed)
		sim.POST("/speed", g.postSpeed)
	}

	g.router.GET("/environment", g.getEnvironment)
	g.router.POST("/vehicle/breakdown", g.postBreakdown)
	g.router.POST("/vehicle/repair", g.postRepair)
	g.router.POST("/order", g.postOrder)
	g.router.GET("/ws", g.handleWebSocket)
}

// Handler returns the underlying gin engine, for embedding in a test
// server or the CLI's http.Server.
func (g *Gateway) Handler() http.Handler { return g.router }

// --- middleware ---

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.rateLimiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

func (g *Gateway) correlationID(c *gin.Context) string {
	if v, ok := c.Get("correlation_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// --- simulation control handlers ---

func (g *Gateway) getStatus(c *gin.Context) {
	st := g.sim.Status()
	c.JSON(http.StatusOK, gin.H{
		"running":    st.Running,
		"now":        st.Now.Format(timeLayout),
		"tickMillis": st.TickMillis,
		"tickCount":  st.TickCount,
	})
}

func (g *Gateway) postStart(c *gin.Context) {
	g.publish(c, messaging.SubjectControlResume, struct{}{})
	g.sim.Resume()
	c.JSON(http.StatusOK, gin.H{"message": "started"})
}

func (g *Gateway) postPause(c *gin.Context) {
	g.publish(c, messaging.SubjectControlPause, struct{}{})
	g.sim.Pause()
	c.JSON(http.StatusOK, gin.H{"message": "paused"})
}

func (g *Gateway) postReset(c *gin.Context) {
	g.publish(c, messaging.SubjectControlReset, struct{}{})
	g.sim.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "reset"})
}

func (g *Gateway) getSpeed(c *gin.Context) {
	st := g.sim.Status()
	c.JSON(http.StatusOK, gin.H{"currentSpeed": st.TickMillis, "unit": "milliseconds", "simulationRunning": st.Running})
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (g *Gateway) postSpeed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Speed < minSpeedMillis || req.Speed > maxSpeedMillis {
		c.JSON(http.StatusBadRequest, gin.H{"error": "speed out of range [50,10000]"})
		return
	}
	applied := g.sim.SetSpeed(req.Speed)
	g.publish(c, messaging.SubjectSpeedSet, messaging.SpeedSetIntent{TickMillis: applied})
	c.JSON(http.StatusOK, gin.H{"currentSpeed": applied})
}

// --- environment/order/vehicle handlers ---

const timeLayout = "2006-01-02 15:04:05"

func (g *Gateway) getEnvironment(c *gin.Context) {
	snap := g.sim.Snapshot()
	c.JSON(http.StatusOK, environmentView(snap))
}

type orderRequest struct {
	OrderID     string `json:"orderId" binding:"required"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	RequestedM3 int    `json:"requestedM3" binding:"required"`
	LimitHours  int    `json:"limitHours" binding:"required"`
}

func (g *Gateway) postOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	intent := messaging.OrderSubmitIntent{
		OrderID:     req.OrderID,
		CustomerX:   req.X,
		CustomerY:   req.Y,
		RequestedM3: req.RequestedM3,
		LimitHours:  req.LimitHours,
	}
	g.publish(c, messaging.SubjectOrderSubmit, intent)
	c.JSON(http.StatusAccepted, gin.H{"message": "order submitted"})
}

type breakdownRequest struct {
	VehicleID            string  `json:"vehicleId" binding:"required"`
	Reason               string  `json:"reason"`
	EstimatedRepairHours float64 `json:"estimatedRepairHours"`
}

func (g *Gateway) postBreakdown(c *gin.Context) {
	var req breakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	incidentType := domain.InferIncidentType(req.EstimatedRepairHours)
	g.publish(c, messaging.SubjectVehicleBreakdown, messaging.VehicleBreakdownIntent{VehicleID: req.VehicleID, Reason: req.Reason})
	c.JSON(http.StatusAccepted, gin.H{"message": "breakdown recorded", "incidentType": incidentType})
}

type repairRequest struct {
	VehicleID string `json:"vehicleId" binding:"required"`
}

func (g *Gateway) postRepair(c *gin.Context) {
	var req repairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	g.publish(c, messaging.SubjectVehicleRepair, messaging.VehicleRepairIntent{VehicleID: req.VehicleID})
	c.JSON(http.StatusAccepted, gin.H{"message": "repair recorded"})
}

func (g *Gateway) publish(c *gin.Context, subject string, data interface{}) {
	env, err := messaging.NewEnvelope(subject, g.correlationID(c), data)
	if err != nil {
		return
	}
	_ = g.bus.Publish(c.Request.Context(), env)
}

// environmentView projects a Snapshot into the GET /environment shape
// (§6.2): vehicles, pending orders, active blockages, depots.
func environmentView(snap environment.Snapshot) gin.H {
	vehicles := make([]gin.H, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		entry := gin.H{
			"id":           v.ID,
			"type":         v.Type.Code,
			"status":       v.Status,
			"position":     gin.H{"x": v.Position.X, "y": v.Position.Y},
			"fuel":         gin.H{"current": v.FuelGal, "capacity": domain.FuelTankGallons, "percent": v.FuelGal / domain.FuelTankGallons * 100},
			"lpg":          gin.H{"current": v.LpgM3, "capacity": v.Type.CapacityM3, "percent": v.LpgM3 / float64(v.Type.CapacityM3) * 100},
		}
		if v.Plan != nil {
			if action, ok := v.Plan.CurrentAction(); ok && action.Kind == domain.ActionDrive {
				progress := 0.0
				if d := action.Duration(); d > 0 {
					progress = float64(snap.Now.Sub(action.Start)) / float64(d)
				}
				entry["remainingPath"] = action.RemainingPath(progress)
				entry["driveStart"] = action.Start.Format(timeLayout)
				entry["driveEnd"] = action.End.Format(timeLayout)
			}
		}
		vehicles = append(vehicles, entry)
	}

	orders := make([]gin.H, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		if o.IsServed() {
			continue
		}
		orders = append(orders, gin.H{
			"id":          o.ID,
			"position":    gin.H{"x": o.CustomerPos.X, "y": o.CustomerPos.Y},
			"arrival":     o.ArrivalTime.Format(timeLayout),
			"due":         o.DueTime.Format(timeLayout),
			"overdue":     o.IsOverdue(snap.Now),
			"requestedM3": o.RequestedM3,
			"remainingM3": o.RemainingM3,
		})
	}

	blockages := make([]gin.H, 0)
	for _, b := range snap.Blockages {
		if !b.IsActive(snap.Now) {
			continue
		}
		blockages = append(blockages, gin.H{
			"id":     b.ID,
			"start":  b.StartTime.Format(timeLayout),
			"end":    b.EndTime.Format(timeLayout),
			"points": b.Points,
		})
	}

	depots := make([]gin.H, 0)
	if snap.MainDepot != nil {
		depots = append(depots, depotView(snap.MainDepot))
	}
	for _, d := range snap.AuxDepots {
		depots = append(depots, depotView(d))
	}

	return gin.H{
		"now":       snap.Now.Format(timeLayout),
		"vehicles":  vehicles,
		"orders":    orders,
		"blockages": blockages,
		"depots":    depots,
	}
}

func depotView(d *domain.Depot) gin.H {
	return gin.H{
		"id":         d.ID,
		"position":   gin.H{"x": d.Position.X, "y": d.Position.Y},
		"main":       d.Kind == domain.DepotMain,
		"canRefuel":  d.CanRefuel,
		"currentM3":  d.CurrentLpgM3,
		"capacityM3": d.CapacityM3,
	}
}

// --- websocket snapshot broadcast ---

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (g *Gateway) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{id: uuid.New(), conn: conn, send: make(chan []byte, 8), done: make(chan struct{})}

	g.wsMu.Lock()
	g.wsClients[client.id] = client
	g.wsMu.Unlock()

	go g.wsWritePump(client)
	go g.wsReadPump(client)
}

func (g *Gateway) wsReadPump(client *wsClient) {
	defer func() {
		g.wsMu.Lock()
		delete(g.wsClients, client.id)
		g.wsMu.Unlock()
		close(client.done)
		client.conn.Close()
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) wsWritePump(client *wsClient) {
	for {
		select {
		case message := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

// broadcastLoop pushes the latest snapshot to every connected WebSocket
// client at most once per period (§4.11), mirroring the same snapshot the
// Redis channel of C13 receives.
func (g *Gateway) broadcastLoop(period time.Duration) {
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for range ticker.C {
		g.wsMu.RLock()
		n := len(g.wsClients)
		g.wsMu.RUnlock()
		if n == 0 {
			continue
		}
		snap := g.sim.Snapshot()
		payload, err := json.Marshal(environmentView(snap))
		if err != nil {
			continue
		}
		g.wsMu.RLock()
		for _, client := range g.wsClients {
			select {
			case client.send <- payload:
			default:
			}
		}
		g.wsMu.RUnlock()
	}
}

// --- rate limiter ---

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := make([]time.Time, 0, len(rl.requests[key]))
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.limit {
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}
