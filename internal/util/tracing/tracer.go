/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/imageflow/cascade/internal/config"
)

const (
	// Trace implementation enum
	StdoutTracerImplementation TracerImplementation = iota
	JaegerTracer
	RecorderTracer
)

type TracerImplementation int

var (
	tracerImplemetationStrings = []string{
		"stdout",
		"jaeger",
		"recorder",
	}
	TracerImplementations = map[string]TracerImplementation{
		tracerImplemetationStrings[StdoutTracerImplementation]: StdoutTracerImplementation,
		tracerImplemetationStrings[JaegerTracer]:               JaegerTracer,
		tracerImplemetationStrings[RecorderTracer]:             RecorderTracer,
	}
)

// samplerFor returns an always-sample policy when rate is zero (treated as
// "unset" rather than "sample nothing"), otherwise a probability sampler at
// the configured rate.
func samplerFor(rate float64) sdktrace.Sampler {
	if rate <= 0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ProbabilitySampler(rate)
}

func GlobalTracer(ctx context.Context) trace.Tracer {
	tracerName, ok := ctx.Value(tracerCtxKey).(string)
	if !ok {
		return trace.NoopTracer{}

	}

	return global.TraceProvider().Tracer(tracerName)

}

func (t TracerImplementation) String() string {
	if t < StdoutTracerImplementation || t > RecorderTracer {
		return "unknown-tracer"
	}
	return tracerImplemetationStrings[t]
}

// SetTracer installs t as the global trace provider. collectorURL is only
// consulted by JaegerTracer; sampleRate is honored by every implementation
// (see samplerFor).
func SetTracer(t TracerImplementation, collectorURL string, sampleRate float64) (func(), error) {
	switch t {
	case StdoutTracerImplementation:
		return setStdOutTracer(sampleRate)
	case JaegerTracer:
		return setJaegerTracer(collectorURL, sampleRate)
	case RecorderTracer:
		return setRecorderTracer(sampleRate)
	default:
		return setStdOutTracer(sampleRate)
	}
}

// Init configures the global tracer from a TracingConfig, returning a
// shutdown func that flushes any buffered exporter. An unrecognized or
// "none" implementation falls back to the stdout tracer rather than
// failing startup.
func Init(cfg config.TracingConfig) (func(), error) {
	if cfg.ServiceName != "" {
		ServiceName = cfg.ServiceName
	}

	impl, ok := TracerImplementations[strings.ToLower(cfg.Implementation)]
	if !ok {
		return setStdOutTracer(cfg.SampleRate)
	}

	shutdown, err := SetTracer(impl, cfg.CollectorEndpoint, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("tracing: failed to initialize %s tracer: %w", cfg.Implementation, err)
	}
	return shutdown, nil
}
