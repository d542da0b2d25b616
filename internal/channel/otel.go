package channel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/tetrad/internal/channel"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
