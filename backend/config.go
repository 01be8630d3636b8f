// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvConfig holds settings that may come from the environment or a .env
// file. Command line flags take precedence over them.
type EnvConfig struct {
	Addr            string
	DataDir         string
	MasterKey       string
	TokenSecret     string
	AuthJWKSURL     string
	AuthCookieName  string
	Debug           bool
	UseMockAuth     bool
	AutoPitch       bool
	ReactionLatency time.Duration
	TickInterval    time.Duration
}

// LoadEnvConfig reads the optional env files (".env" when none are
// given) and then the FASTBALL_* variables. Values already present in
// the environment win over the files.
func LoadEnvConfig(files ...string) (EnvConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return EnvConfig{}, fmt.Errorf("loading %s: %w", f, err)
		}
		log.Printf("Loaded environment from %s", f)
	}

	cfg := EnvConfig{
		Addr:           getenv("FASTBALL_ADDR", ":8080"),
		DataDir:        getenv("FASTBALL_DATA_DIR", "data"),
		MasterKey:      os.Getenv("FASTBALL_MASTER_KEY"),
		TokenSecret:    os.Getenv("FASTBALL_TOKEN_SECRET"),
		AuthJWKSURL:    os.Getenv("FASTBALL_AUTH_JWKS_URL"),
		AuthCookieName: getenv("FASTBALL_AUTH_COOKIE", defaultAuthCookie),
		TickInterval:   DefaultTickInterval,
		AutoPitch:      true,
	}
	var err error
	if cfg.Debug, err = getenvBool("FASTBALL_DEBUG", false); err != nil {
		return cfg, err
	}
	if cfg.UseMockAuth, err = getenvBool("FASTBALL_MOCK_AUTH", false); err != nil {
		return cfg, err
	}
	if cfg.AutoPitch, err = getenvBool("FASTBALL_AUTO_PITCH", true); err != nil {
		return cfg, err
	}
	if cfg.ReactionLatency, err = getenvDuration("FASTBALL_REACTION_LATENCY", 0); err != nil {
		return cfg, err
	}
	if cfg.TickInterval, err = getenvDuration("FASTBALL_TICK", DefaultTickInterval); err != nil {
		return cfg, err
	}
	if cfg.TickInterval <= 0 {
		return cfg, fmt.Errorf("FASTBALL_TICK must be positive, got %v", cfg.TickInterval)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
