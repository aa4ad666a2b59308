package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"sacco-backend/internal/domain"
	"sacco-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const probeTimeout = 3 * time.Second

// CollectResult is the body of /health/json.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
	Backlog      *Backlog             `json:"backlog,omitempty"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	AllocMB  int `json:"allocMb"`
	HeapInMB int `json:"heapInUseMb"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// Backlog counts work waiting on an operator or the scheduler.
type Backlog struct {
	PendingTransfers  int64 `json:"pendingTransfers"`
	UndistributedDivs int64 `json:"undistributedDividends"`
	DueDividends      int64 `json:"dueDividends"`
}

// Service probes the database and Redis for the health endpoints.
type Service struct {
	Rdb *redis.Client
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Collect runs the probes concurrently. A failed probe is reported, never returned.
func (s *Service) Collect(ctx context.Context) CollectResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var (
		dbDep, redisDep DepStatus
		traffic         = TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
		startMs         = s.now().UnixMilli()
		backlog         *Backlog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dbDep = s.pingDB(gctx)
		if dbDep.Status == "connected" {
			backlog = s.backlog(gctx)
		}
		return nil
	})
	g.Go(func() error {
		redisDep = s.pingRedis(gctx)
		if redisDep.Status == "connected" {
			traffic, startMs = s.traffic(gctx, startMs)
		}
		return nil
	})
	_ = g.Wait()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (s.now().UnixMilli() - startMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	result := CollectResult{
		Runtime: RuntimeInfo{
			UptimeSeconds: uptime,
			Memory:        MemoryInfo{AllocMB: int(m.Alloc / 1024 / 1024), HeapInMB: int(m.HeapInuse / 1024 / 1024)},
			Goroutines:    runtime.NumGoroutine(),
			Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
			GoVersion:     runtime.Version(),
		},
		Traffic:      traffic,
		Dependencies: map[string]DepStatus{"database": dbDep, "redis": redisDep},
		Backlog:      backlog,
		Status:       "issue",
	}
	if dbDep.Status == "connected" && redisDep.Status == "connected" {
		result.Status = "ok"
	}
	return result
}

func (s *Service) pingDB(ctx context.Context) DepStatus {
	if s.DB == nil {
		return DepStatus{Status: "disconnected"}
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return DepStatus{Status: "error"}
	}
	start := time.Now()
	if err := sqlDB.PingContext(ctx); err != nil {
		return DepStatus{Status: "error"}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: "connected", PingMs: &ms}
}

func (s *Service) pingRedis(ctx context.Context) DepStatus {
	if s.Rdb == nil {
		return DepStatus{Status: "disconnected"}
	}
	start := time.Now()
	if err := s.Rdb.Ping(ctx).Err(); err != nil {
		return DepStatus{Status: "error"}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: "connected", PingMs: &ms}
}

// traffic reads the counters written by middleware.HealthMarker.
func (s *Service) traffic(ctx context.Context, startMs int64) (TrafficInfo, int64) {
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	vals, err := s.Rdb.MGet(ctx,
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq,
	).Result()
	if err != nil {
		return stats, startMs
	}
	str := func(i int) string {
		v, _ := vals[i].(string)
		return v
	}

	if t, err := strconv.ParseInt(str(4), 10, 64); err == nil {
		startMs = t
	} else {
		s.Rdb.SetNX(ctx, middleware.KeyStartTime, startMs, 0)
	}
	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	count, _ := strconv.Atoi(str(3))
	if count > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(count), 'f', 2, 64)
	}
	if raw := str(5); raw != "" {
		var last map[string]interface{}
		if json.Unmarshal([]byte(raw), &last) == nil {
			stats.LastRequest = last
		}
	}
	return stats, startMs
}

func (s *Service) backlog(ctx context.Context) *Backlog {
	db := s.DB.WithContext(ctx)
	var b Backlog
	if err := db.Model(&domain.ShareTransfer{}).Where("status = ?", domain.TransferPending).Count(&b.PendingTransfers).Error; err != nil {
		return nil
	}
	undistributed := []string{domain.DividendPending, domain.DividendApproved}
	if err := db.Model(&domain.Dividend{}).Where("status IN ?", undistributed).Count(&b.UndistributedDivs).Error; err != nil {
		return nil
	}
	if err := db.Model(&domain.Dividend{}).
		Where("status = ? AND distribution_date <= ?", domain.DividendApproved, s.now()).
		Count(&b.DueDividends).Error; err != nil {
		return nil
	}
	return &b
}

// ResetKeys lists the counters cleared by Reset.
var ResetKeys = []string{
	middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount,
	middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog,
}

// Reset clears the request counters and restarts the uptime clock.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.Rdb.Del(ctx, ResetKeys...).Err(); err != nil {
		return err
	}
	return s.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(s.now().UnixMilli(), 10), 0).Err()
}

// Errors returns the most recent 5xx entries, newest first.
func (s *Service) Errors(ctx context.Context) ([]map[string]interface{}, error) {
	entries, err := s.Rdb.LRange(ctx, middleware.KeyErrorLog, 0, middleware.ErrorLogSize-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, raw := range entries {
		var m map[string]interface{}
		if json.Unmarshal([]byte(raw), &m) == nil {
			out = append(out, m)
		}
	}
	return out, nil
}
