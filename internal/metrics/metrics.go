// Package metrics 提供Prometheus格式的监控指标
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// MetricsRegistry 指标注册表
type MetricsRegistry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *MetricsRegistry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *MetricsRegistry {
	once.Do(func() {
		registry = &MetricsRegistry{
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
		initDefaultMetrics()
	})
	return registry
}

// initDefaultMetrics 初始化默认指标
func initDefaultMetrics() {
	// 请求计数器
	registry.NewCounter("zhipai_http_requests_total", "HTTP请求总数", []string{"method", "path", "status"})

	// 请求延迟直方图
	registry.NewHistogram("zhipai_http_request_duration_seconds", "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0})

	// 派发计数器：按求解端和结果
	registry.NewCounter("zhipai_dispatch_total", "派发次数", []string{"solver", "outcome"})

	// 本地端失败回退远程端的次数
	registry.NewCounter("zhipai_dispatch_fallback_total", "本地端回退远程端次数", []string{})

	// 归一化失败退回原始案例的次数
	registry.NewCounter("zhipai_normalize_fallback_total", "归一化退回原始案例次数", []string{})

	// 本地端探活延迟
	registry.NewHistogram("zhipai_probe_duration_seconds", "求解端探活延迟",
		[]string{"available"},
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0})

	// 当前派发状态（ready=0 connecting=1 running=2 finished=3 error=4）
	registry.NewGauge("zhipai_dispatch_state", "当前派发状态", []string{})
}

// NewCounter 创建计数器
func (r *MetricsRegistry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *MetricsRegistry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *MetricsRegistry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *MetricsRegistry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *MetricsRegistry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *MetricsRegistry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := labelKey(labelValues)
	c.values[key] += value
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := labelKey(labelValues)
	g.values[key] = value
}

// Inc 增加
func (g *Gauge) Inc(labelValues ...string) {
	g.Add(1, labelValues...)
}

// Dec 减少
func (g *Gauge) Dec(labelValues ...string) {
	g.Add(-1, labelValues...)
}

// Add 增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := labelKey(labelValues)
	g.values[key] += value
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)

	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}

	// 找到对应的bucket（导出时再做累积）
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
			break
		}
	}
	h.counts[key][len(h.Buckets)]++ // 总观测数，同时兜底 +Inf

	h.sums[key] += value
}

// labelKey 生成标签键
func labelKey(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	key := ""
	for i, l := range labels {
		if i > 0 {
			key += ","
		}
		key += l
	}
	return key
}

// Handler 返回Prometheus格式的指标HTTP处理器
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		reg := GetRegistry()
		reg.mu.RLock()
		defer reg.mu.RUnlock()

		for _, name := range sortedKeys(reg.counters) {
			c := reg.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.Name, c.Help, c.Name)
			c.mu.RLock()
			for key, value := range c.values {
				fmt.Fprintf(w, "%s%s %g\n", c.Name, formatLabels(c.Labels, key), value)
			}
			c.mu.RUnlock()
		}

		for _, name := range sortedKeys(reg.gauges) {
			g := reg.gauges[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n", g.Name, g.Help, g.Name)
			g.mu.RLock()
			for key, value := range g.values {
				fmt.Fprintf(w, "%s%s %g\n", g.Name, formatLabels(g.Labels, key), value)
			}
			g.mu.RUnlock()
		}

		for _, name := range sortedKeys(reg.histograms) {
			h := reg.histograms[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.Name, h.Help, h.Name)
			h.mu.RLock()
			for key, counts := range h.counts {
				cumulative := 0
				for i, bucket := range h.Buckets {
					cumulative += counts[i]
					fmt.Fprintf(w, "%s_bucket%s %d\n", h.Name, formatBucketLabels(h.Labels, key, fmt.Sprintf("%g", bucket)), cumulative)
				}
				fmt.Fprintf(w, "%s_bucket%s %d\n", h.Name, formatBucketLabels(h.Labels, key, "+Inf"), counts[len(h.Buckets)])
				fmt.Fprintf(w, "%s_sum%s %g\n", h.Name, formatLabels(h.Labels, key), h.sums[key])
				fmt.Fprintf(w, "%s_count%s %d\n", h.Name, formatLabels(h.Labels, key), counts[len(h.Buckets)])
			}
			h.mu.RUnlock()
		}
	})
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatLabels(names []string, key string) string {
	if len(names) == 0 || key == "" {
		return ""
	}
	values := splitLabelKey(key)
	out := "{"
	for i, n := range names {
		if i >= len(values) {
			break
		}
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%q", n, values[i])
	}
	return out + "}"
}

func formatBucketLabels(names []string, key, le string) string {
	base := formatLabels(names, key)
	if base == "" {
		return fmt.Sprintf("{le=%q}", le)
	}
	return base[:len(base)-1] + fmt.Sprintf(",le=%q}", le)
}

func splitLabelKey(key string) []string {
	var out []string
	cur := ""
	for _, r := range key {
		if r == ',' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	return append(out, cur)
}
