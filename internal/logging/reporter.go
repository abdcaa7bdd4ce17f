package logging

import (
	"github.com/castwire/castwire/internal/metrics"
)

// Reporter is the default error reporting sink: degraded-but-non-fatal
// failures are logged once and counted, never propagated.
type Reporter struct {
	component string
}

// NewReporter creates a reporter tagged with the reporting component name.
func NewReporter(component string) *Reporter {
	return &Reporter{component: component}
}

// Report logs the error and increments the reported-errors counter.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	WithError(err).Error("Background failure reported", "component", r.component)
	metrics.ReportedErrorsTotal.WithLabelValues(r.component).Inc()
}
