package metrics

import (
	"github.com/Aleph-Alpha/pidmq/v1/observability"
)

// PublisherObserver bridges the observability.Observer hook of the
// publisher onto the Prometheus metrics of this package. Every observed
// broker operation is counted and timed; connection attempts are
// additionally broken down by host and result.
type PublisherObserver struct {
	metrics *Metrics
}

var _ observability.Observer = (*PublisherObserver)(nil)

// NewPublisherObserver returns an Observer feeding the given Metrics
// instance.
func NewPublisherObserver(m *Metrics) *PublisherObserver {
	return &PublisherObserver{metrics: m}
}

// ObserveOperation records one operation from the publisher.
func (o *PublisherObserver) ObserveOperation(op observability.OperationContext) {
	if op.Duration > 0 {
		o.metrics.operationDuration.WithLabelValues(op.Operation).Observe(op.Duration.Seconds())
	}

	switch op.Operation {
	case "connect":
		result := "success"
		if op.Error != nil {
			result = "failure"
		}
		o.metrics.IncrementConnectionAttempts(op.Resource, result)

	case "publish":
		if op.Error != nil {
			o.metrics.IncrementPublishes("failed")
		} else {
			o.metrics.IncrementPublishes("sent")
		}

	case "confirm":
		o.metrics.IncrementPublishes("confirmed")

	case "nack":
		o.metrics.IncrementPublishes("nacked")

	case "return":
		o.metrics.IncrementPublishes("returned")
	}
}
