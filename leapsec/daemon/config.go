/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config represents configuration we expect to read from file
type Config struct {
	LeapFile       string        // leap-seconds.list to load and watch
	Interval       time.Duration // how often the leap state is evaluated
	ReloadInterval time.Duration // how often the leap file is checked for changes
	Electric       bool          // the kernel inserts or removes the second itself
	BuildLimit     int           // years before now whose entries only feed the base offset, 0 keeps all
	JournalPath    string        // sqlite journal of leaps learned at runtime, empty disables it
	MonitoringPort int           // port to serve prometheus metrics on, 0 disables it
	SmearInterval  time.Duration // spread the leap over this interval instead of stepping, 0 disables it
	RequireHash    bool          // reject leap files without a hash line
}

// DefaultConfig returns Config with the defaults used when no file is given
func DefaultConfig() *Config {
	return &Config{
		LeapFile:       "/usr/share/zoneinfo/leap-seconds.list",
		Interval:       time.Second,
		ReloadInterval: time.Hour,
	}
}

// EvalAndValidate makes sure config is valid
func (c *Config) EvalAndValidate() error {
	if c.LeapFile == "" {
		return fmt.Errorf("bad config: 'leapfile' must be specified")
	}
	if c.Interval <= 0 || c.Interval > time.Minute {
		return fmt.Errorf("bad config: 'interval' must be between 0 and 1 minute")
	}
	if c.ReloadInterval < c.Interval {
		return fmt.Errorf("bad config: 'reloadinterval' must not be shorter than 'interval'")
	}
	if c.BuildLimit < 0 {
		return fmt.Errorf("bad config: 'buildlimit' must be >=0")
	}
	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("bad config: 'monitoringport' must be a valid port")
	}
	if c.SmearInterval < 0 || c.SmearInterval > 24*time.Hour {
		return fmt.Errorf("bad config: 'smearinterval' must be between 0 and 24 hours")
	}
	if c.SmearInterval != 0 && c.Electric {
		return fmt.Errorf("bad config: 'smearinterval' cannot be used with 'electric'")
	}
	return nil
}

// ReadConfig reads config and unmarshals it from yaml on top of the defaults
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	err = yaml.UnmarshalStrict(data, c)
	return c, err
}
