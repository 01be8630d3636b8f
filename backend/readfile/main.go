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

// readfile decrypts and prints stored sessions, profiles and metrics.
//
//	readfile -data-dir data sessions/<id>.json profiles/<user>.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/flashcardNFC/fastball/backend"
)

func main() {
	env, err := backend.LoadEnvConfig()
	if err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	dataDir := flag.String("data-dir", env.DataDir, "Directory for session and profile data")
	flag.Parse()

	var masterKey crypto.MasterKey
	keyFile := filepath.Join(*dataDir, "master.key")
	if passphrase := env.MasterKey; passphrase != "" {
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			log.Fatalf("Failed to read master key: %v", err)
		}
	} else if _, err := os.Stat(keyFile); err == nil {
		log.Fatalf("%s exists but FASTBALL_MASTER_KEY is not set.", keyFile)
	}
	store := storage.New(*dataDir, masterKey)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, arg := range flag.Args() {
		arg = strings.TrimPrefix(strings.TrimPrefix(arg, *dataDir), "/")
		var obj any
		switch {
		case strings.HasPrefix(arg, "sessions/"):
			obj = new(backend.GameSession)
		case strings.HasPrefix(arg, "profiles/"):
			obj = new(backend.Profile)
		case arg == "metrics.json":
			obj = new(backend.PitchMetrics)
		default:
			var raw json.RawMessage
			obj = &raw
		}
		if err := store.ReadDataFile(arg, obj); err != nil {
			log.Printf("%s: %v", arg, err)
			continue
		}
		fmt.Printf("=========== %s ===========\n", arg)
		if err := enc.Encode(obj); err != nil {
			log.Printf("JSON: %s: %v", arg, err)
		}
	}
}
