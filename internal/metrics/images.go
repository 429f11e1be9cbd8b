package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var imageReleaseFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "recipehub",
		Subsystem: "images",
		Name:      "release_failed_total",
		Help:      "尽力释放图片资源失败的次数。",
	},
	[]string{"reason"},
)

// ImageReleaseFailed 记录一次图片释放失败；reason 为触发释放的操作，如 "replace"、"delete"。
func ImageReleaseFailed(reason string) {
	imageReleaseFailedTotal.WithLabelValues(reason).Inc()
}
