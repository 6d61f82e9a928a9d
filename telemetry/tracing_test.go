package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTracingOptionsFromEnv(t *testing.T) {
	tests := []struct {
		name, arg string
		want      float64
	}{
		{"default", "", 1},
		{"ratio", "0.25", 0.25},
		{"invalid", "often", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", tt.arg)
			t.Setenv("ENV", "production")
			opts := TracingOptionsFromEnv("nowplaying", "v1", "@radio")
			if opts.SampleRatio != tt.want {
				t.Errorf("SampleRatio = %v, want %v", opts.SampleRatio, tt.want)
			}
			if opts.Endpoint != "collector:4317" || opts.Environment != "production" || opts.Channel != "@radio" {
				t.Errorf("opts = %+v", opts)
			}
		})
	}
}

func TestSamplerFor(t *testing.T) {
	var low, high trace.TraceID
	for i := range high {
		high[i] = 0xff
	}
	tests := []struct {
		name  string
		ratio float64
		id    trace.TraceID
		want  sdktrace.SamplingDecision
	}{
		{"all", 1, high, sdktrace.RecordAndSample},
		{"clamped above", 3, high, sdktrace.RecordAndSample},
		{"none", 0, low, sdktrace.Drop},
		{"ratio keeps low ids", 0.5, low, sdktrace.RecordAndSample},
		{"ratio drops high ids", 0.5, high, sdktrace.Drop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := samplerFor(tt.ratio).ShouldSample(sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       tt.id,
				Name:          "tracker.tick",
			})
			if res.Decision != tt.want {
				t.Errorf("decision = %v, want %v", res.Decision, tt.want)
			}
		})
	}
}

func TestTracingResource(t *testing.T) {
	res, err := tracingResource(context.Background(), TracingOptions{
		ServiceName:    "nowplaying",
		ServiceVersion: "v1",
		Environment:    "staging",
		Channel:        "-100123",
	})
	if err != nil {
		t.Fatalf("tracingResource: %v", err)
	}
	want := map[attribute.Key]string{
		"service.name":           "nowplaying",
		"service.version":        "v1",
		"deployment.environment": "staging",
		ChannelKey:               "-100123",
	}
	set := res.Set()
	for k, v := range want {
		got, ok := set.Value(k)
		if !ok || got.AsString() != v {
			t.Errorf("%s = %q (present=%v), want %q", k, got.AsString(), ok, v)
		}
	}

	res, err = tracingResource(context.Background(), TracingOptions{ServiceName: "nowplaying"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Set().Value(ChannelKey); ok {
		t.Error("channel attribute set without a channel")
	}
}

func TestInitTracingDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(TracingOptions{ServiceName: "nowplaying"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	shutdown()
	if IsTracingEnabled() {
		t.Error("tracing enabled without an endpoint")
	}
}
