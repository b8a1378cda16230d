// Package metrics builds the tally root scope shared by the session,
// capability and correlator components.
package metrics

import (
	"io"
	"log/slog"
	"time"

	"github.com/uber-go/tally"
)

// DefaultInterval is how often the root scope reports.
const DefaultInterval = 5 * time.Second

// NewRootScope returns a root scope whose values are logged through slog at
// Debug level. Close the returned io.Closer to flush the final values.
func NewRootScope(interval time.Duration) (tally.Scope, io.Closer) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return tally.NewRootScope(tally.ScopeOptions{
		Prefix:   "catcode",
		Tags:     map[string]string{"service": "catcode"},
		Reporter: NewLogReporter(slog.Default()),
	}, interval)
}

// LogReporter is a tally.StatsReporter that writes each value as a log record.
type LogReporter struct {
	log *slog.Logger
}

var _ tally.StatsReporter = (*LogReporter)(nil)

// NewLogReporter creates a reporter logging to l.
func NewLogReporter(l *slog.Logger) *LogReporter {
	if l == nil {
		l = slog.Default()
	}
	return &LogReporter{log: l}
}

func (r *LogReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.log.Debug("counter", "name", name, "tags", tags, "value", value)
}

func (r *LogReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.log.Debug("gauge", "name", name, "tags", tags, "value", value)
}

func (r *LogReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	r.log.Debug("timer", "name", name, "tags", tags, "value", interval)
}

func (r *LogReporter) ReportHistogramValueSamples(
	name string,
	tags map[string]string,
	_ tally.Buckets,
	bucketLowerBound, bucketUpperBound float64,
	samples int64,
) {
	r.log.Debug("histogram", "name", name, "tags", tags,
		"lower", bucketLowerBound, "upper", bucketUpperBound, "samples", samples)
}

func (r *LogReporter) ReportHistogramDurationSamples(
	name string,
	tags map[string]string,
	_ tally.Buckets,
	bucketLowerBound, bucketUpperBound time.Duration,
	samples int64,
) {
	r.log.Debug("histogram", "name", name, "tags", tags,
		"lower", bucketLowerBound, "upper", bucketUpperBound, "samples", samples)
}

func (r *LogReporter) Capabilities() tally.Capabilities { return capabilities{} }

func (r *LogReporter) Flush() {}

type capabilities struct{}

func (capabilities) Reporting() bool { return true }
func (capabilities) Tagging() bool   { return true }
