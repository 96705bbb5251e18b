package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，录制队列、解码器与回放驱动在此注册
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RecordsWritten, QueueDepth, SinkErrors,
		RecordsDecoded,
		ReplayQuanta, ReplayDuration,
		ArchiveRequests, ArchiveRecords,
	)
}

// RecordsWritten 已写入 Sink 的记录数（按 kind）
var RecordsWritten = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tracelog_records_written_total",
		Help: "已写入 Sink 的记录数",
	},
	[]string{"kind"}, // state | action | dependency
)

// QueueDepth 已提交但尚未写入的记录数（所有会话合计）
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tracelog_queue_depth",
		Help: "已提交但尚未写入 Sink 的记录数",
	},
)

// SinkErrors Sink 写入/关闭失败次数
var SinkErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tracelog_sink_errors_total",
		Help: "Sink 写入或关闭失败次数",
	},
)

// RecordsDecoded 解码器读出的记录数（按 kind）
var RecordsDecoded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tracelog_records_decoded_total",
		Help: "解码器读出的记录数",
	},
	[]string{"kind"},
)

// ReplayQuanta 回放的 Quantum 数（按结果）
var ReplayQuanta = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "replay_quanta_total",
		Help: "回放的 Quantum 数",
	},
	[]string{"result"}, // match | mismatch | error
)

// ReplayDuration 单次回放耗时（秒）
var ReplayDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "replay_duration_seconds",
		Help:    "单次回放耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// ArchiveRequests 归档服务请求数（按操作与状态码）
var ArchiveRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archive_requests_total",
		Help: "归档服务请求数",
	},
	[]string{"op", "code"},
)

// ArchiveRecords 归档服务导入/导出的记录数
var ArchiveRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archive_records_total",
		Help: "归档服务导入或导出的记录数",
	},
	[]string{"direction"}, // import | export
)

// WritePrometheus 将 Prometheus 文本格式写入 w
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
