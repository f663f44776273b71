package transport

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/treadsim/cosim/internal/transport"

// Instruments resolve against the global meter provider. Without an
// SDK installed these are no-ops.
var (
	meter = otel.Meter(instrumentationName)

	envelopesSent     metric.Int64Counter
	envelopesReceived metric.Int64Counter
	envelopesDropped  metric.Int64Counter
)

func init() {
	envelopesSent, _ = meter.Int64Counter("cosim.transport.envelopes.sent",
		metric.WithDescription("Envelopes written to a connection"))
	envelopesReceived, _ = meter.Int64Counter("cosim.transport.envelopes.received",
		metric.WithDescription("Envelopes read from a connection"))
	envelopesDropped, _ = meter.Int64Counter("cosim.transport.envelopes.dropped",
		metric.WithDescription("Stale envelopes discarded by a mailbox"))
}
