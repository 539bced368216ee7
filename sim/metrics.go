package sim

import (
	"github.com/filecoin-project/go-casper/internal/measurements"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("casper/sim")

	metrics = struct {
		produced  metric.Int64Counter
		delivered metric.Int64Counter
	}{
		produced:  measurements.Must(meter.Int64Counter("casper_sim_messages_produced", metric.WithDescription("Number of messages produced by validators"))),
		delivered: measurements.Must(meter.Int64Counter("casper_sim_messages_delivered", metric.WithDescription("Number of message deliveries attempted, by status"))),
	}
)
