package casper

import (
	"github.com/filecoin-project/go-casper/internal/measurements"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const attrKeyProtocol = "protocol"

var (
	meter = otel.Meter("casper")

	metrics = struct {
		messagesAdded     metric.Int64Counter
		equivocations     metric.Int64Counter
		finalizations     metric.Int64Counter
		cliqueSearchSteps metric.Int64Histogram
		approximations    metric.Int64Counter
	}{
		messagesAdded: measurements.Must(meter.Int64Counter("casper_view_messages_added", metric.WithDescription("Number of messages added to views"))),
		equivocations: measurements.Must(meter.Int64Counter("casper_view_equivocations", metric.WithDescription("Number of validators detected equivocating by views"))),
		finalizations: measurements.Must(meter.Int64Counter("casper_view_finalizations", metric.WithDescription("Number of times a view finalized a new message"))),
		cliqueSearchSteps: measurements.Must(meter.Int64Histogram("casper_oracle_clique_search_steps",
			metric.WithDescription("Histogram of search frames explored per safety check"),
			metric.WithExplicitBucketBoundaries(1.0, 2.0, 4.0, 8.0, 16.0, 32.0, 64.0, 128.0, 256.0, 1024.0, 4096.0, 65536.0, 1048576.0),
		)),
		approximations: measurements.Must(meter.Int64Counter("casper_oracle_approximations", metric.WithDescription("Number of safety checks that hit the clique search bound"))),
	}
)

func attrProtocol(p Protocol) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(attrKeyProtocol, p.Name()))
}
