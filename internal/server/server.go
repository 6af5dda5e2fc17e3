package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idvault/internal/config"
	"idvault/internal/logging"
	"idvault/internal/query"
)

// maxCommandBytes caps one command line. Commands beyond this are a protocol
// violation and close the connection.
const maxCommandBytes = 4 << 20

// Server answers newline-delimited command documents over TCP, one response
// line per command line.
type Server struct {
	cfg *config.Config
	log *logging.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func New(cfg *config.Config, log *logging.Logger) *Server {
	return &Server{cfg: cfg, log: log, conns: map[net.Conn]struct{}{}}
}

// Serve accepts connections until the context is cancelled or the listener
// fails. Open connections are closed on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeAll()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.track(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) drop(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
}

// handle answers commands on one connection until it closes. Every line gets
// exactly one response line, whatever the command contained.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.drop(conn)
	defer conn.Close()

	remote := conn.RemoteAddr()
	s.log.Debugf("connection from %v", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxCommandBytes)
	writer := bufio.NewWriter(conn)
	for scanner.Scan() {
		response := query.Execute(ctx, s.cfg, s.log, scanner.Text())
		if _, err := writer.WriteString(response + "\n"); err != nil {
			s.log.Errorf("write to %v: %v", remote, err)
			return
		}
		if err := writer.Flush(); err != nil {
			s.log.Errorf("flush to %v: %v", remote, err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Errorf("read from %v: %v", remote, err)
	}
	s.log.Debugf("connection from %v closed", remote)
}

// ServeMetrics exposes the process metrics over HTTP until the context is
// cancelled.
func ServeMetrics(ctx context.Context, addr string, log *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("metrics shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}
