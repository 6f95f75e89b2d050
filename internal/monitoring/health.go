package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu              sync.RWMutex
	lastExecution   time.Time
	brokerConnected bool
	storeConnected  bool
	errors          []string
}

type HealthStatus struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	LastExecution   time.Time `json:"last_execution"`
	BrokerConnected bool      `json:"broker_connected"`
	StoreConnected  bool      `json:"store_connected"`
	Uptime          string    `json:"uptime"`
	Errors          []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		brokerConnected: true,
		storeConnected:  true,
		errors:          make([]string, 0),
	}
}

// MarkExecution records that an execution just finished.
func (h *HealthChecker) MarkExecution() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastExecution = time.Now()
}

// SetBrokerConnected updates broker reachability.
func (h *HealthChecker) SetBrokerConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.brokerConnected = connected
}

// SetStoreConnected updates storage reachability.
func (h *HealthChecker) SetStoreConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storeConnected = connected
}

// RecordFault appends a fault message to the health report.
func (h *HealthChecker) RecordFault(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.brokerConnected || !h.storeConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:          status,
		Timestamp:       time.Now(),
		LastExecution:   h.lastExecution,
		BrokerConnected: h.brokerConnected,
		StoreConnected:  h.storeConnected,
		Uptime:          time.Since(startTime).String(),
		Errors:          h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
