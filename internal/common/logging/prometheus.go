package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// PrometheusHook implements log.Hook
type PrometheusHook struct {
	counters map[log.Level]prometheus.Counter
}

// NewPrometheusHook creates counters for each log level and registers them with reg.
func NewPrometheusHook(reg prometheus.Registerer) *PrometheusHook {
	counters := make(map[log.Level]prometheus.Counter)
	for _, level := range []log.Level{
		log.DebugLevel,
		log.InfoLevel,
		log.WarnLevel,
		log.ErrorLevel,
	} {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_log_messages_total",
			Help: "Total number of log lines logged by level",
			ConstLabels: prometheus.Labels{
				"level": level.String(),
			},
		})
		reg.MustRegister(counter)
		counters[level] = counter
	}
	return &PrometheusHook{counters: counters}
}

func (h *PrometheusHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *PrometheusHook) Fire(entry *log.Entry) error {
	if counter, ok := h.counters[entry.Level]; ok {
		counter.Inc()
	}
	return nil
}

// WithHook returns an entry carrying the fields of entry that logs through a copy of its logger with hook added.
// The standard logger is left untouched.
func WithHook(entry *log.Entry, hook log.Hook) *log.Entry {
	parent := entry.Logger
	logger := log.New()
	logger.SetOutput(parent.Out)
	logger.SetFormatter(parent.Formatter)
	logger.SetLevel(parent.GetLevel())
	logger.ReportCaller = parent.ReportCaller
	for level, hooks := range parent.Hooks {
		logger.Hooks[level] = append([]log.Hook(nil), hooks...)
	}
	logger.AddHook(hook)
	return logger.WithFields(entry.Data)
}
