package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PrometheusHook implements logrus.Hook and counts log lines per level.
type PrometheusHook struct {
	counters map[logrus.Level]prometheus.Counter
}

// NewPrometheusHook creates the per-level counters and registers them with reg.
func NewPrometheusHook(reg prometheus.Registerer) (*PrometheusHook, error) {
	counters := make(map[logrus.Level]prometheus.Counter)

	for _, level := range []logrus.Level{
		logrus.DebugLevel,
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
	} {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crankdb",
			Name:      "log_messages_total",
			Help:      "Total number of log lines logged by level",
			ConstLabels: prometheus.Labels{
				"level": level.String(),
			},
		})
		if err := reg.Register(counter); err != nil {
			return nil, err
		}
		counters[level] = counter
	}
	return &PrometheusHook{counters: counters}, nil
}

func (h *PrometheusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *PrometheusHook) Fire(entry *logrus.Entry) error {
	if counter, ok := h.counters[entry.Level]; ok {
		counter.Inc()
	}
	return nil
}
