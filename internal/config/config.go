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

// Package config loads the cascade server's layered configuration: compiled
// defaults, overridden by an optional TOML file, overridden by environment
// variables, overridden by command-line flags.
package config

import "time"

// ProviderType names one of the built-in CacheProvider adapters a Providers
// entry can be backed by.
type ProviderType string

const (
	ProviderTypeMemory ProviderType = "memory"
	ProviderTypeBBolt  ProviderType = "bbolt"
	ProviderTypeBadger ProviderType = "badger"
	ProviderTypeRedis  ProviderType = "redis"
)

// ProviderConfig configures one tier of the cache cascade.
type ProviderConfig struct {
	Type ProviderType `toml:"type"`

	// RequiresInlineExecution and LatencyZone are loaded from the provider's
	// table. cmd/cascade-server passes LatencyZone only to the redis
	// provider and does not read RequiresInlineExecution; each provider
	// type reports its own fixed inline setting.
	RequiresInlineExecution bool   `toml:"requires_inline_execution"`
	LatencyZone             string `toml:"latency_zone"`

	// Path is the on-disk file/directory for bbolt and badger.
	Path string `toml:"path"`

	// Endpoint, Password, and DB configure the redis provider.
	Endpoint string `toml:"endpoint"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	// MaxEntries bounds the in-memory provider's sync.Map-backed store;
	// zero means unbounded.
	MaxEntries int `toml:"max_entries"`

	// Compression snappy-compresses stored envelopes for providers that
	// persist through internal/cache/wire (bbolt, badger, redis).
	Compression bool `toml:"compression"`
}

// CascadeSettings configures the orchestration behavior of the cache
// cascade itself, independent of any one provider.
type CascadeSettings struct {
	ProviderOrder []string `toml:"provider_order"`

	MaxUploadQueueBytes int64 `toml:"max_upload_queue_bytes"`

	EnableRequestCoalescing bool `toml:"enable_request_coalescing"`
	CoalescingTimeoutMS     int  `toml:"coalescing_timeout_ms"`

	BloomEstimatedItems     int     `toml:"bloom_estimated_items"`
	BloomFalsePositiveRate  float64 `toml:"bloom_false_positive_rate"`
	BloomSlotCount          int     `toml:"bloom_slot_count"`
	BloomRotateIntervalSecs int     `toml:"bloom_rotate_interval_secs"`
}

// CoalescingTimeout returns CoalescingTimeoutMS as a time.Duration.
func (c CascadeSettings) CoalescingTimeout() time.Duration {
	return time.Duration(c.CoalescingTimeoutMS) * time.Millisecond
}

// BloomRotateInterval returns BloomRotateIntervalSecs as a time.Duration.
func (c CascadeSettings) BloomRotateInterval() time.Duration {
	return time.Duration(c.BloomRotateIntervalSecs) * time.Second
}

// FrontendConfig configures the demo HTTP server in cmd/cascade-server.
type FrontendConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`

	// UpstreamBaseURL is prepended to a routing rule's rewritten path and
	// query to form the upstream URL used in the cache key and in the demo
	// server's stub miss body; no request is sent to it.
	UpstreamBaseURL string `toml:"upstream_base_url"`
}

// LoggingConfig configures the go-kit logger.
type LoggingConfig struct {
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

// TracingConfig configures the OpenTelemetry tracer.
type TracingConfig struct {
	Implementation    string  `toml:"implementation"` // "stdout", "jaeger", "recorder", "none"
	CollectorEndpoint string  `toml:"collector_endpoint"`
	ServiceName       string  `toml:"service_name"`
	SampleRate        float64 `toml:"sample_rate"`
}

// TemplateSafetyConfig configures the routing engine's output-path guard.
type TemplateSafetyConfig struct {
	AllowDotDotSegments bool `toml:"allow_dot_dot_segments"`
}

// CascadeConfig is the root of the TOML-decoded configuration tree.
type CascadeConfig struct {
	Frontend  FrontendConfig            `toml:"frontend"`
	Logging   LoggingConfig             `toml:"logging"`
	Metrics   MetricsConfig             `toml:"metrics"`
	Tracing   TracingConfig             `toml:"tracing"`
	Cascade   CascadeSettings           `toml:"cascade"`
	Safety    TemplateSafetyConfig      `toml:"template_safety"`
	Providers map[string]ProviderConfig `toml:"providers"`

	// Routes holds routing expressions in the order they should be tried,
	// each `match-expression => rewrite-template`.
	Routes []string `toml:"routes"`
}

// NewConfig returns a CascadeConfig populated entirely with compiled
// defaults; Load layers a file, environment variables, and flags on top of
// this starting point.
func NewConfig() *CascadeConfig {
	return &CascadeConfig{
		Frontend: FrontendConfig{
			ListenAddress:   defaultFrontendListenAddress,
			ListenPort:      defaultFrontendListenPort,
			UpstreamBaseURL: defaultUpstreamBaseURL,
		},
		Logging: LoggingConfig{
			LogFile:  defaultLogFile,
			LogLevel: defaultLogLevel,
		},
		Metrics: MetricsConfig{
			ListenAddress: defaultMetricsListenAddress,
			ListenPort:    defaultMetricsListenPort,
		},
		Tracing: TracingConfig{
			Implementation: defaultTracerImplementation,
			ServiceName:    defaultTracingServiceName,
			SampleRate:     defaultTracingSampleRate,
		},
		Cascade: CascadeSettings{
			ProviderOrder:           []string{"memory"},
			MaxUploadQueueBytes:     defaultMaxUploadQueueBytes,
			EnableRequestCoalescing: true,
			CoalescingTimeoutMS:     defaultCoalescingTimeoutMS,
			BloomEstimatedItems:     defaultBloomEstimatedItems,
			BloomFalsePositiveRate:  defaultBloomFalsePositiveRate,
			BloomSlotCount:          defaultBloomSlotCount,
			BloomRotateIntervalSecs: defaultBloomRotateIntervalSecs,
		},
		Providers: map[string]ProviderConfig{
			"memory": {Type: ProviderTypeMemory, RequiresInlineExecution: true, LatencyZone: "local"},
		},
	}
}

// Config is the fully loaded, process-wide configuration; set once by Load.
var Config *CascadeConfig

// LoaderWarnings accumulates non-fatal issues discovered while loading
// configuration, surfaced once the logger is available.
var LoaderWarnings []string
