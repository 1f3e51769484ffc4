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

package config

const (
	defaultLogFile  = ""
	defaultLogLevel = "INFO"

	defaultFrontendListenPort    = 9090
	defaultFrontendListenAddress = ""
	defaultUpstreamBaseURL       = "http://localhost:8080"

	defaultMetricsListenPort    = 8083
	defaultMetricsListenAddress = ""

	defaultTracerImplementation = "stdout"
	defaultTracingServiceName   = "cascade"
	defaultTracingSampleRate    = 1.0

	defaultMaxUploadQueueBytes     = 536870912
	defaultCoalescingTimeoutMS     = 5000
	defaultBloomEstimatedItems     = 1000000
	defaultBloomFalsePositiveRate  = 0.01
	defaultBloomSlotCount          = 4
	defaultBloomRotateIntervalSecs = 21600

	defaultConfigPath = "/etc/cascade/cascade.conf"
)
