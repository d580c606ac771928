package diag

import (
	"sort"
	"sync"
)

// 进程内计数器：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）
// 运行结束时由 CLI 以 Snapshot 写入日志。

var (
	metricsMu sync.Mutex
	ops       = map[string]int64{}
	errs      = map[string]int64{}
	durs      = map[string]int64{}
)

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	metricsMu.Lock()
	ops[comp+"/"+stage+"/"+result]++
	metricsMu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metricsMu.Lock()
	errs[comp+"/"+code]++
	metricsMu.Unlock()
}

// ObserveDuration 累加阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metricsMu.Lock()
	durs[comp+"/"+stage] += durMS
	metricsMu.Unlock()
}

// Metric 为快照中的一项。
type Metric struct {
	Name  string // op_total|error_total|op_duration_ms
	Key   string // 以 '/' 连接的标签值
	Value int64
}

// Snapshot 返回当前计数的拷贝，按 Name、Key 排序。
func Snapshot() []Metric {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make([]Metric, 0, len(ops)+len(errs)+len(durs))
	for k, v := range ops {
		out = append(out, Metric{Name: "op_total", Key: k, Value: v})
	}
	for k, v := range errs {
		out = append(out, Metric{Name: "error_total", Key: k, Value: v})
	}
	for k, v := range durs {
		out = append(out, Metric{Name: "op_duration_ms", Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ResetMetrics 清空全部计数。
func ResetMetrics() {
	metricsMu.Lock()
	ops, errs, durs = map[string]int64{}, map[string]int64{}, map[string]int64{}
	metricsMu.Unlock()
}
