package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"

	"go.opentelemetry.io/otel/api/global"
	export "go.opentelemetry.io/otel/sdk/export/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// recordedSpans holds the most recently installed recorder exporter so
// tests and admin endpoints can inspect what was traced without standing up
// a collector. It is only meaningful once SetTracer(RecorderTracer, ...) or
// Init with implementation "recorder" has run.
var recordedSpans *recorderExporter

// setRecorderTracer installs an in-memory exporter, sampled at sampleRate,
// and registers it as the global trace provider like the other
// implementations. Errors encountered while marshaling a span are logged
// rather than surfaced, since a broken trace should never fail the request
// it was attached to.
func setRecorderTracer(sampleRate float64) (func(), error) {
	exporter, err := newRecorder(func(err error) {
		log.Printf("tracing: recorder exporter: %v", err)
	})
	if err != nil {
		return nil, err
	}

	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: samplerFor(sampleRate)}),
		sdktrace.WithSyncer(exporter))
	if err != nil {
		return nil, err
	}
	global.SetTraceProvider(tp)
	recordedSpans = exporter

	return func() {}, nil
}

// RecordedSpans returns the spans captured by the currently installed
// recorder exporter, or nil if the recorder implementation isn't active.
func RecordedSpans() []*export.SpanData {
	if recordedSpans == nil {
		return nil
	}
	return recordedSpans.Spans()
}

// recorderExporter is an implementation of trace.Exporter that writes spans
// to a buffer in JSON form and retains the span data for later inspection.
type recorderExporter struct {
	io.Reader
	outputWriter io.Writer
	spans        []*export.SpanData
	errorFunc    errorFunc
}

// newRecorder returns a newly instantiated recorder.
func newRecorder(ef errorFunc) (*recorderExporter, error) {
	buf := new(bytes.Buffer)
	return &recorderExporter{buf, buf, nil, ef}, nil
}

// ExportSpan writes a SpanData in json format to buffer.
func (e *recorderExporter) ExportSpan(ctx context.Context, data *export.SpanData) {
	jsonSpan, err := json.Marshal(data)
	if err != nil {
		e.errorFunc(err)
	}
	e.spans = append(e.spans, data)
	// ignore writer failures for now
	e.outputWriter.Write(append(jsonSpan, byte('\n')))
}

// Spans returns every span exported so far, in export order.
func (e *recorderExporter) Spans() []*export.SpanData {
	return append([]*export.SpanData(nil), e.spans...)
}

type errorFunc func(error)
