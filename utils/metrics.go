package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики операций леджера
	Operations       map[string]int64
	FailedOperations map[string]int64
	LastOperation    time.Time

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

func newMetrics() *Metrics {
	return &Metrics{
		Operations:       make(map[string]int64),
		FailedOperations: make(map[string]int64),
		ErrorTypes:       make(map[string]int64),
	}
}

// RecordRequest записывает метрики HTTP запроса
func (m *Metrics) RecordRequest(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if err != nil {
		m.FailedRequests++
		m.recordErrorLocked(err)
	}
}

// RecordOperation записывает метрики операции леджера (piggy.transfer, p2p.instant, ...)
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Operations[operation]++
	m.LastOperation = time.Now()
	if err != nil {
		m.FailedOperations[operation]++
		m.recordErrorLocked(err)
	}
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

// recordErrorLocked вызывается с уже захваченным m.mu
func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":    m.TotalRequests,
		"failed_requests":   m.FailedRequests,
		"average_latency":   m.AverageLatency.String(),
		"last_request_time": m.LastRequestTime,
		"operations":        copyCounts(m.Operations),
		"failed_operations": copyCounts(m.FailedOperations),
		"last_operation":    m.LastOperation,
		"error_count":       m.ErrorCount,
		"last_error_time":   m.LastErrorTime,
		"error_types":       copyCounts(m.ErrorTypes),
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := newMetrics()
	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.LastRequestTime = time.Time{}
	m.Operations = fresh.Operations
	m.FailedOperations = fresh.FailedOperations
	m.LastOperation = time.Time{}
	m.ErrorCount = 0
	m.LastErrorTime = time.Time{}
	m.ErrorTypes = fresh.ErrorTypes
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
