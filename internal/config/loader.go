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

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Flags holds the parsed command-line overrides recognized by Load.
type Flags struct {
	PrintVersion bool
	ConfigPath   string
	customPath   bool
	LogLevel     string
	FrontendPort int
}

var parsedFlags = &Flags{}

func (c *CascadeConfig) parseFlags(applicationName string, arguments []string) {
	fs := flag.NewFlagSet(applicationName, flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder)) // suppress flag package's own usage output

	configPath := fs.String("config", defaultConfigPath, "path to a cascade TOML config file")
	printVersion := fs.Bool("version", false, "print the version and exit")
	logLevel := fs.String("log-level", "", "override the configured log level")
	frontendPort := fs.Int("port", 0, "override the configured frontend listen port")

	_ = fs.Parse(arguments)

	parsedFlags.ConfigPath = *configPath
	parsedFlags.customPath = isFlagPassed(fs, "config")
	parsedFlags.PrintVersion = *printVersion
	parsedFlags.LogLevel = *logLevel
	parsedFlags.FrontendPort = *frontendPort
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (c *CascadeConfig) loadFile() error {
	path := parsedFlags.ConfigPath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if !parsedFlags.customPath {
			return nil
		}
		return err
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *CascadeConfig) loadEnvVars() {
	if v := os.Getenv("CASCADE_LOG_LEVEL"); v != "" {
		c.Logging.LogLevel = v
	}
	if v := os.Getenv("CASCADE_LOG_FILE"); v != "" {
		c.Logging.LogFile = v
	}
	if v := os.Getenv("CASCADE_FRONTEND_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Frontend.ListenPort = n
		} else {
			LoaderWarnings = append(LoaderWarnings, fmt.Sprintf("CASCADE_FRONTEND_PORT=%q is not a valid port", v))
		}
	}
	if v := os.Getenv("CASCADE_TRACING_IMPLEMENTATION"); v != "" {
		c.Tracing.Implementation = v
	}
	if v := os.Getenv("CASCADE_TRACING_COLLECTOR_ENDPOINT"); v != "" {
		c.Tracing.CollectorEndpoint = v
	}
}

func (c *CascadeConfig) loadFlags() {
	if parsedFlags.LogLevel != "" {
		c.Logging.LogLevel = parsedFlags.LogLevel
	}
	if parsedFlags.FrontendPort != 0 {
		c.Frontend.ListenPort = parsedFlags.FrontendPort
	}
}

// Load returns the application configuration: compiled defaults, layered
// with an optional TOML file, then environment variables, then flags.
func Load(applicationName string, arguments []string) (*CascadeConfig, error) {
	LoaderWarnings = make([]string, 0)

	c := NewConfig()
	c.parseFlags(applicationName, arguments)
	if parsedFlags.PrintVersion {
		return c, nil
	}

	if err := c.loadFile(); err != nil {
		return nil, err
	}
	c.loadEnvVars()
	c.loadFlags()

	if len(c.Providers) == 0 {
		return nil, fmt.Errorf("config: no providers configured")
	}
	for name, p := range c.Providers {
		switch p.Type {
		case ProviderTypeMemory, ProviderTypeBBolt, ProviderTypeBadger, ProviderTypeRedis:
		default:
			return nil, fmt.Errorf("config: provider %q has unrecognized type %q", name, p.Type)
		}
	}
	for _, name := range c.Cascade.ProviderOrder {
		if _, ok := c.Providers[name]; !ok {
			return nil, fmt.Errorf("config: cascade.provider_order references undefined provider %q", name)
		}
	}

	Config = c
	return c, nil
}
