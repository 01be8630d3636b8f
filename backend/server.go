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
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/flashcardNFC/fastball/backend/search"
)

// Options represent server options.
type Options struct {
	Addr        string
	Cert        *tls.Certificate
	DataDir     string
	UseMockAuth bool
	Debug       bool
	Storage     *storage.Storage
	MasterKey   crypto.MasterKey
	Listener    net.Listener

	// Optional pre-built components. Created from Storage when nil.
	SessionStore *SessionStore
	ProfileStore *ProfileStore
	Metrics      *PitchMetrics

	// Gameplay
	ReactionLatency time.Duration
	AutoPitch       bool
	TickInterval    time.Duration
	// FlushInterval is how often dirty sessions are written to disk.
	FlushInterval time.Duration

	// Journal Options
	JournalEnabled   bool
	JournalBind      string
	JournalAdvertise string
	JournalNodeID    string
	JournalBootstrap bool
	JournalLogOutput io.Writer

	// Auth Options
	AuthCookieName string
	AuthJWKSURL    string
	TokenSecret    []byte
}

const defaultFlushInterval = 5 * time.Second

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	journal    *Journal
	hubs       *HubManager
	sessions   *SessionStore
	profiles   *ProfileStore
	metrics    *PitchMetrics
	storage    *storage.Storage

	stopFlush chan struct{}
	closeOnce sync.Once
}

// Hubs returns the server's hub manager.
func (s *Server) Hubs() *HubManager { return s.hubs }

// Journal returns the session journal, or nil when it is disabled.
func (s *Server) Journal() *Journal { return s.journal }

// Shutdown gracefully shuts down the HTTP server and then the game
// components.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("http: %v", err))
		}
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

// Close stops every hub, the journal and the flusher, then writes all
// dirty state to disk.
func (s *Server) Close() error {
	var errs []string
	s.closeOnce.Do(func() {
		close(s.stopFlush)
		s.hubs.Close()
		if s.journal != nil {
			if err := s.journal.Shutdown(); err != nil {
				errs = append(errs, fmt.Sprintf("journal: %v", err))
			}
		}
		if err := s.sessions.FlushAll(); err != nil {
			errs = append(errs, fmt.Sprintf("session flush: %v", err))
		}
		if s.storage != nil {
			if err := s.metrics.Save(s.storage); err != nil {
				errs = append(errs, fmt.Sprintf("metrics: %v", err))
			}
		}
	})
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

func (s *Server) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopFlush:
			return
		case <-ticker.C:
			if err := s.sessions.FlushAll(); err != nil {
				log.Printf("[STORE] Background flush failed: %v", err)
			}
		}
	}
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	srv, handler, err := NewServerHandler(opts)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}
	srv.httpServer = httpServer

	go func() {
		var err error
		switch {
		case opts.Listener != nil && opts.Cert != nil:
			log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.ServeTLS(opts.Listener, "", "")
		case opts.Listener != nil:
			log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.Serve(opts.Listener)
		case opts.Cert != nil:
			log.Printf("Starting HTTPS server on %s...", opts.Addr)
			err = httpServer.ListenAndServeTLS("", "")
		default:
			log.Printf("Starting HTTP server on %s...", opts.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return srv, nil
}

// NewServerHandler creates the game components and the HTTP handler
// serving them. The returned Server has no HTTP listener; Close releases
// the components.
func NewServerHandler(opts Options) (*Server, http.Handler, error) {
	debugf := func(format string, args ...any) {
		if opts.Debug {
			log.Printf(format, args...)
		}
	}

	sessions := opts.SessionStore
	if sessions == nil {
		if opts.Storage == nil {
			return nil, nil, errors.New("no storage configured")
		}
		sessions = NewSessionStore(opts.DataDir, opts.Storage, DefaultSessionCacheSize)
	}
	sessions.Debug = opts.Debug
	profiles := opts.ProfileStore
	if profiles == nil {
		if opts.Storage == nil {
			return nil, nil, errors.New("no storage configured")
		}
		profiles = NewProfileStore(opts.DataDir, opts.Storage)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewPitchMetrics()
		if opts.Storage != nil {
			m, err := LoadPitchMetrics(opts.Storage)
			if err != nil {
				log.Printf("Warning: %v", err)
			}
			metrics = m
		}
	}

	srv := &Server{
		sessions:  sessions,
		profiles:  profiles,
		metrics:   metrics,
		storage:   opts.Storage,
		stopFlush: make(chan struct{}),
	}

	var persister Persister = sessions
	if opts.JournalEnabled {
		j, err := OpenJournal(JournalConfig{
			DataDir:   opts.DataDir,
			Bind:      opts.JournalBind,
			Advertise: opts.JournalAdvertise,
			NodeID:    opts.JournalNodeID,
			Bootstrap: opts.JournalBootstrap,
			MasterKey: opts.MasterKey,
			LogOutput: opts.JournalLogOutput,
		}, sessions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start journal: %w", err)
		}
		if opts.JournalBootstrap {
			if err := j.WaitForLeader(30 * time.Second); err != nil {
				log.Printf("Warning: %v", err)
			}
		}
		// Replay the log before serving any session.
		if err := j.WaitForSync(30 * time.Second); err != nil {
			log.Printf("Warning: journal sync timed out: %v", err)
		}
		srv.journal = j
		persister = j
	}

	srv.hubs = NewHubManager(HubConfig{
		Sessions:  sessions,
		Persister: persister,
		Profiles:  profiles,
		Metrics:   metrics,
		Delivery: DeliveryOptions{
			ReactionLatency: opts.ReactionLatency,
			AutoPitch:       opts.AutoPitch,
		},
		TickInterval: opts.TickInterval,
		Debugf:       debugf,
	})

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	go srv.flushLoop(flushInterval)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"version":        CurrentAppVersion,
			"schemaVersion":  CurrentSchemaVersion,
			"activeSessions": srv.hubs.ActiveCount(),
		}
		if srv.journal != nil {
			resp["journal"] = srv.journal.State()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		userId, ok := requireUser(w, r)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			p, err := profiles.LoadProfile(userId)
			if err != nil {
				log.Printf("Internal Server Error during LoadProfile: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, p)
		case http.MethodPost:
			var p Profile
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 65536)).Decode(&p); err != nil {
				http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
				return
			}
			p.UserID = userId
			if err := profiles.SaveProfile(&p); err != nil {
				if errors.Is(err, ErrInvalidProfile) {
					http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
					return
				}
				log.Printf("Internal Server Error during SaveProfile: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			saved, err := profiles.LoadProfile(userId)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, saved)
		default:
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		userId, ok := requireUser(w, r)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			list, err := sessions.ListSessions(userId, search.Parse(r.URL.Query().Get("q")))
			if err != nil {
				log.Printf("Internal Server Error during ListSessions: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if list == nil {
				list = []SessionSummary{}
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var req struct {
				Difficulty string `json:"difficulty"`
				Tournament bool   `json:"tournament"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil && err != io.EOF {
				http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
				return
			}
			d, err := validateDifficulty(req.Difficulty)
			if err != nil {
				http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
				return
			}
			p, err := profiles.LoadProfile(userId)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			s := NewGameSession(userId, p.TeamName, p.Team, d, req.Tournament, rand.Uint64())
			if err := persister.PersistSession(s); err != nil {
				if errors.Is(err, ErrNotLeader) {
					http.Error(w, "Service Unavailable: not leader", http.StatusServiceUnavailable)
					return
				}
				log.Printf("Internal Server Error during PersistSession: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			debugf("[STORE] session %s created for %s (%s)", s.ID, maskEmail(userId), d)
			writeJSON(w, http.StatusCreated, s)
		default:
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		userId, ok := requireUser(w, r)
		if !ok {
			return
		}
		id := r.PathValue("id")
		if !isValidUUID(id) {
			http.Error(w, "Bad Request: invalid session id", http.StatusBadRequest)
			return
		}
		s, err := sessions.LoadSession(id)
		if err != nil || s.Status == SessionStatusDeleted {
			if err == nil || os.IsNotExist(err) {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			log.Printf("Internal Server Error during LoadSession: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if s.OwnerID != userId {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s)
		case http.MethodDelete:
			srv.hubs.StopHub(id)
			if err := persister.DeleteSession(id); err != nil {
				log.Printf("Internal Server Error during DeleteSession: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(srv.hubs, w, r)
	})

	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		snap := metrics.Snapshot()
		snap.ActiveSessions = srv.hubs.ActiveCount()
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if len(opts.TokenSecret) == 0 {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		userId, ok := requireUser(w, r)
		if !ok {
			return
		}
		token, err := IssueToken(opts.TokenSecret, userId, DefaultTokenTTL)
		if err != nil {
			log.Printf("Internal Server Error during IssueToken: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     token,
			"expiresIn": int(DefaultTokenTTL.Seconds()),
		})
	})

	if opts.UseMockAuth {
		mux.HandleFunc("/api/login", mockLoginHandler)
		mux.HandleFunc("/api/logout", mockLogoutHandler)
	}

	var handler http.Handler = mux
	if opts.UseMockAuth {
		handler = mockAuthMiddleware(handler)
	} else {
		handler = jwtAuthMiddleware(opts, handler)
	}
	handler = loggingMiddleware(opts.Debug, handler)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	return srv, handler, nil
}

// requireUser returns the authenticated user, or writes 403 and false.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId := getUserID(r)
	if userId == "" || !isValidEmail(userId) {
		http.Error(w, "Forbidden: Invalid User ID", http.StatusForbidden)
		return "", false
	}
	return userId, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// cacheControlMiddleware keeps API responses out of shared caches.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method and URL path of every request when
// debugging.
func loggingMiddleware(debug bool, next http.Handler) http.Handler {
	if !debug {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
