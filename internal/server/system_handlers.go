package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/stockerhq/stocker/internal/database"
)

// SystemHandlers serves operational status endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	ledgerDB    *database.DB
	portfolioDB *database.DB
	startTime   time.Time
}

// SystemStatusResponse is the payload for GET /api/system/status
type SystemStatusResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Goroutines    int               `json:"goroutines"`
	CPUPercent    float64           `json:"cpu_percent"`
	RAMPercent    float64           `json:"ram_percent"`
	DataDirMB     float64           `json:"data_dir_mb"`
	Databases     map[string]string `json:"databases"`
}

// NewSystemHandlers creates system handlers. The database handles may be nil
// when the memory backend is active.
func NewSystemHandlers(log zerolog.Logger, dataDir string, ledgerDB, portfolioDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		ledgerDB:    ledgerDB,
		portfolioDB: portfolioDB,
		startTime:   time.Now(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	databases := make(map[string]string)
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, db := range h.databaseHandles() {
		if err := db.HealthCheck(ctx); err != nil {
			databases[name] = "unreachable"
		} else {
			databases[name] = "ok"
		}
	}

	status := "ok"
	for _, state := range databases {
		if state != "ok" {
			status = "degraded"
		}
	}

	response := SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		DataDirMB:     h.getDirSize(h.dataDir),
		Databases:     databases,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode status response")
	}
}

// checkDatabases pings every configured database
func (h *SystemHandlers) checkDatabases(ctx context.Context) error {
	for name, db := range h.databaseHandles() {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s database unreachable: %w", name, err)
		}
	}
	return nil
}

func (h *SystemHandlers) databaseHandles() map[string]*database.DB {
	handles := make(map[string]*database.DB)
	if h.ledgerDB != nil {
		handles["ledger"] = h.ledgerDB
	}
	if h.portfolioDB != nil {
		handles["portfolio"] = h.portfolioDB
	}
	return handles
}

// getSystemStats calculates CPU and RAM usage percentages. A short sampling
// interval keeps the endpoint responsive for pollers.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}
