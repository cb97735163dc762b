package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"machine-fleet-backend/config"
)

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := initWithWriter(context.Background(), config.TracingConfig{
		Exporter:    ExporterStdout,
		ServiceName: "fleet-test",
	}, &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit-span")
	assert.Contains(t, buf.String(), "fleet-test")
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Exporter: "zipkin"})
	assert.Error(t, err)
}
