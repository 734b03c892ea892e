// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rpc serves the ledger over connect (gRPC, gRPC-Web and the
// connect protocol) together with the standard gRPC health and reflection
// services
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/blinklabs-io/lotloot/ledger"
)

type Server struct {
	config   Config
	checker  *grpchealth.StaticChecker
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

type Config struct {
	Logger          *slog.Logger
	LedgerState     *ledger.LedgerState
	Contracts       map[string]common.Address
	Host            string
	TlsCertFilePath string
	TlsKeyFilePath  string
	Port            uint
	ReuseAddress    bool
}

func New(cfg Config) (*Server, error) {
	if cfg.LedgerState == nil {
		return nil, errors.New("a ledger state must be provided")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "rpc")
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	return &Server{
		config:  cfg,
		checker: grpchealth.NewStaticChecker(LedgerServiceName),
	}, nil
}

// Handler returns the HTTP handler for every service
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	compress1KB := connect.WithCompressMinBytes(1024)
	svc := &ledgerService{
		ls:        s.config.LedgerState,
		contracts: s.config.Contracts,
	}
	for _, route := range svc.routes() {
		mux.Handle(
			route.path,
			connect.NewUnaryHandler[structpb.Struct, structpb.Struct](
				route.path,
				route.handler,
				compress1KB,
			),
		)
	}
	mux.Handle(grpchealth.NewHandler(s.checker, compress1KB))
	mux.Handle(
		grpcreflect.NewHandlerV1(
			grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName),
			compress1KB,
		),
	)
	mux.Handle(
		grpcreflect.NewHandlerV1Alpha(
			grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName),
			compress1KB,
		),
	)
	return mux
}

// Start opens the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("rpc server already started")
	}
	addr := net.JoinHostPort(s.config.Host, strconv.FormatUint(uint64(s.config.Port), 10))
	listenConfig := net.ListenConfig{}
	if s.config.ReuseAddress {
		listenConfig.Control = socketControl
	}
	listener, err := listenConfig.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to open listening socket: %w", err)
	}
	s.listener = listener
	useTls := s.config.TlsCertFilePath != "" && s.config.TlsKeyFilePath != ""
	handler := s.Handler()
	if !useTls {
		// Use h2c so we can serve HTTP/2 without TLS
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	server := s.server
	go func() {
		var err error
		if useTls {
			s.config.Logger.Info("starting gRPC TLS listener on " + listener.Addr().String())
			err = server.ServeTLS(listener, s.config.TlsCertFilePath, s.config.TlsKeyFilePath)
		} else {
			s.config.Logger.Info("starting gRPC listener on " + listener.Addr().String())
			err = server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Logger.Error("rpc listener failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the address of the listener, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop reports the service as not serving and shuts the listener down
func (s *Server) Stop(ctx context.Context) error {
	s.checker.SetStatus(LedgerServiceName, grpchealth.StatusNotServing)
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
