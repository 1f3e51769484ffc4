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
	"log"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/exporter/trace/stdout"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func init() {
	exporter, err := stdout.NewExporter(stdout.Options{PrettyPrint: true})
	if err != nil {
		log.Fatal(err)
	}
	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.AlwaysSample()}),
		sdktrace.WithSyncer(exporter),
	)
	if err != nil {
		log.Fatal(err)
	}
	global.SetTraceProvider(tp)
}

func TestNameReflectsServiceName(t *testing.T) {
	prev := ServiceName
	defer func() { ServiceName = prev }()

	ServiceName = "cascade-test"
	if Name() != "cascade-test" {
		t.Fatalf("expected Name() to track ServiceName, got %q", Name())
	}
}

func TestPrepareRequestStartsSpan(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.invalid/cache/get", nil)

	r, span := PrepareRequest(req, "frontend", "handle-request")
	if r == nil || span == nil {
		t.Fatal("expected a request and a span")
	}
	span.AddEvent(r.Context(), "", key.String("cache-key", "abc"))
	span.End()
}

func TestNewChildSpanInheritsFromPreparedRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.invalid/cache/get", nil)
	r, parent := PrepareRequest(req, "frontend", "handle-request")
	defer parent.End()

	ctx, child := NewChildSpan(r.Context(), "provider-lookup")
	defer child.End()
	child.AddEvent(ctx, "", key.String("provider", "memory"))
}

func TestNewChildSpanWithoutPreparedRequestFallsBack(t *testing.T) {
	ctx, span := NewChildSpan(context.Background(), "standalone-span")
	defer span.End()
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
}
