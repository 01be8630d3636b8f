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

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/flashcardNFC/fastball/backend"
)

// main starts the game server and registers the API handlers.
func main() {
	env, err := backend.LoadEnvConfig()
	if err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}

	var (
		addr             = flag.String("addr", env.Addr, "The TCP address to listen to")
		useMockAuth      = flag.Bool("use-mock-auth", env.UseMockAuth, "Use Mock Authentication. For testing purposes only.")
		debugMode        = flag.Bool("debug", env.Debug, "Enable debug mode")
		dataDir          = flag.String("data-dir", env.DataDir, "Directory for session and profile data")
		tlsCert          = flag.String("tls-cert", "", "Path to HTTP TLS certificate")
		tlsKey           = flag.String("tls-key", "", "Path to HTTP TLS key")
		authCookieName   = flag.String("auth-cookie-name", env.AuthCookieName, "Name of the cookie containing the JWT")
		authJWKSURL      = flag.String("auth-jwks-url", env.AuthJWKSURL, "JWKS endpoint of the identity provider")
		autoPitch        = flag.Bool("auto-pitch", env.AutoPitch, "Start the next pitch automatically")
		reactionLatency  = flag.Duration("reaction-latency", env.ReactionLatency, "Added to every swing before it is judged")
		tickInterval     = flag.Duration("tick", env.TickInterval, "Simulation tick interval")
		journalEnabled   = flag.Bool("journal", false, "Replicate session saves through a Raft journal")
		journalBind      = flag.String("journal-bind", "", "Address for the journal's Raft TCP transport (in-process when empty)")
		journalAdvertise = flag.String("journal-advertise", "", "Public address for journal traffic")
		journalNodeID    = flag.String("journal-node-id", "", "Raft node id of this server")
		journalBootstrap = flag.Bool("journal-bootstrap", true, "Bootstrap the journal (only for the first node)")
	)
	flag.Parse()

	var mainTLSCert *tls.Certificate
	if *tlsCert != "" && *tlsKey != "" {
		cert, err := tls.LoadX509KeyPair(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("Failed to load TLS cert/key: %v", err)
		}
		mainTLSCert = &cert
	}

	// Initialize Encryption Key and Storage
	var masterKey crypto.MasterKey
	keyFile := filepath.Join(*dataDir, "master.key")
	if passphrase := env.MasterKey; passphrase != "" {
		os.MkdirAll(*dataDir, 0755)

		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if os.IsNotExist(err) {
				log.Println("Initializing new master encryption key...")
				masterKey, err = crypto.CreateMasterKey()
				if err != nil {
					log.Fatalf("Failed to create master key: %v", err)
				}
				if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
					log.Fatalf("Failed to save master key: %v", err)
				}
			} else {
				log.Fatalf("Failed to read master key: %v", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			log.Fatalf("Critical Security Error: %s exists but FASTBALL_MASTER_KEY is not set. Refusing to start in unencrypted mode.", keyFile)
		}
		log.Println("Warning: No FASTBALL_MASTER_KEY provided. Data will be stored UNENCRYPTED.")
	}

	store := storage.New(*dataDir, masterKey)
	store.EnableCompression(true)

	var tokenSecret []byte
	if env.TokenSecret != "" {
		tokenSecret = []byte(env.TokenSecret)
	}

	server, err := backend.StartServer(backend.Options{
		Addr:             *addr,
		Cert:             mainTLSCert,
		DataDir:          *dataDir,
		UseMockAuth:      *useMockAuth,
		Debug:            *debugMode,
		Storage:          store,
		MasterKey:        masterKey,
		ReactionLatency:  *reactionLatency,
		AutoPitch:        *autoPitch,
		TickInterval:     *tickInterval,
		JournalEnabled:   *journalEnabled,
		JournalBind:      *journalBind,
		JournalAdvertise: *journalAdvertise,
		JournalNodeID:    *journalNodeID,
		JournalBootstrap: *journalBootstrap,
		AuthCookieName:   *authCookieName,
		AuthJWKSURL:      *authJWKSURL,
		TokenSecret:      tokenSecret,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	} else {
		log.Println("Gracefully stopped.")
	}
}
