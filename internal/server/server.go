// Package server exposes the registry over TCP: one JSON request per
// line in, one JSON response per line out.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/spookyvision/semver-server/internal/cachemanager"
	"github.com/spookyvision/semver-server/internal/log"
	"github.com/spookyvision/semver-server/internal/protocol"
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/tracing"
)

// Lines beyond this are rejected rather than buffered indefinitely.
const maxLineBytes = 1 << 20

// Config holds server configuration options.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:7878". Port 0 picks a
	// free port; use Addr() on the server to discover it.
	Addr string

	// SearchTTL bounds how long a substring search result may be served
	// from cache. Mutations invalidate the cache regardless.
	SearchTTL time.Duration

	// DisableSearchCache routes every search through the repository.
	DisableSearchCache bool

	// Tracer traces request handling. Nil means no tracing.
	Tracer trace.Tracer
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:      addr,
		SearchTTL: cachemanager.DefaultExpiration,
	}
}

// Server accepts TCP connections and serves protocol requests against a
// repository. Connections are handled concurrently; the repository's own
// locking keeps operations consistent.
type Server struct {
	repo      *registry.Repository
	listener  net.Listener
	tracer    trace.Tracer
	searchTTL time.Duration
	searches  *cachemanager.ReadThroughCache[string, []registry.Crate, string]

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New binds the listen address and returns a server ready to Start.
// Binding up front means Addr() is usable immediately, which matters
// when the config asked for port 0.
func New(repo *registry.Repository, cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}

	ttl := cfg.SearchTTL
	if ttl <= 0 {
		ttl = cachemanager.DefaultExpiration
	}

	s := &Server{
		repo:      repo,
		listener:  listener,
		tracer:    tracer,
		searchTTL: ttl,
		conns:     make(map[net.Conn]struct{}),
	}

	manager := cachemanager.NewInMemoryCacheManager[string, []registry.Crate](
		"search", ttl, cachemanager.DefaultCleanupInterval)
	s.searches = cachemanager.NewReadThroughCache[string, []registry.Crate, string](
		manager,
		func(ctx context.Context, query string) ([]registry.Crate, error) {
			return repo.FindContaining(query), nil
		},
		cfg.DisableSearchCache,
	)

	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start accepts connections until Stop is called. It blocks.
func (s *Server) Start() error {
	log.Info(log.CatServer, "listening", "addr", s.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serve(conn)
	}
}

// Stop closes the listener and open connections, then waits for the
// connection handlers to drain or the context to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	err := s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info(log.CatServer, "stopped")
	return err
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	log.Debug(log.CatServer, "connection opened", "remote", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		resp := s.handleLine(context.Background(), remote, line)
		if err := encoder.Encode(resp); err != nil {
			log.ErrorErr(log.CatServer, "writing response", err, "remote", remote)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug(log.CatServer, "connection read ended", "remote", remote, "error", err.Error())
	}
	log.Debug(log.CatServer, "connection closed", "remote", remote)
}

// handleLine decodes one request line and dispatches it. Unreadable
// lines come back as internal errors with no correlation ID, since the
// ID itself may not have parsed.
func (s *Server) handleLine(ctx context.Context, remote string, line []byte) protocol.Response {
	req, err := protocol.DecodeRequest(line)
	if err != nil {
		log.Warn(log.CatProto, "malformed request", "remote", remote, "error", err.Error())
		return protocol.ErrResponse("", protocol.KindInternal, "malformed request")
	}

	ctx, span := s.tracer.Start(ctx, tracing.SpanPrefixRequest+string(req.Type),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(tracing.AttrRequestID, req.ID),
			attribute.String(tracing.AttrRequestType, string(req.Type)),
			attribute.String(tracing.AttrRemoteAddr, remote),
		))
	defer span.End()

	resp := s.dispatch(ctx, req)
	if resp.Err != nil {
		span.SetStatus(codes.Error, resp.Err.Message)
		span.SetAttributes(
			attribute.String(tracing.AttrErrorKind, string(resp.Err.Kind)),
			attribute.String(tracing.AttrErrorMessage, resp.Err.Message),
		)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	switch req.Type {
	case protocol.RequestFindExact:
		return s.handleFindExact(ctx, req)
	case protocol.RequestFindAllContaining:
		return s.handleFindAllContaining(ctx, req)
	case protocol.RequestAddCrate:
		return s.handleAddCrate(ctx, req)
	case protocol.RequestAddRelease:
		return s.handleAddRelease(ctx, req)
	default:
		// DecodeRequest validated the type already.
		return protocol.ErrResponse(req.ID, protocol.KindInternal, "unknown request type")
	}
}

func (s *Server) handleFindExact(ctx context.Context, req protocol.Request) protocol.Response {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String(tracing.AttrCrateName, req.Name))

	crate, found := s.repo.FindExact(req.Name)
	log.Info(log.CatServer, "find_exact", "name", req.Name, "found", found)

	payload := protocol.FindExactPayload{}
	if found {
		payload.Crate = &crate
	}
	return protocol.OkResponse(req.ID, payload)
}

func (s *Server) handleFindAllContaining(ctx context.Context, req protocol.Request) protocol.Response {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String(tracing.AttrQuery, req.Query))

	// Matching is case-insensitive, so the cache key folds case too.
	key := strings.ToLower(req.Query)
	crates, hit, err := s.searches.Get(ctx, key, req.Query, s.searchTTL)
	if err != nil {
		return protocol.ErrResponseFrom(req.ID, err)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrResultCount, len(crates)),
		attribute.Bool(tracing.AttrCacheHit, hit),
	)
	log.Info(log.CatServer, "find_all_containing", "query", req.Query, "results", len(crates), "cached", hit)

	if crates == nil {
		crates = []registry.Crate{}
	}
	return protocol.OkResponse(req.ID, protocol.FindAllPayload{Crates: crates})
}

func (s *Server) handleAddCrate(ctx context.Context, req protocol.Request) protocol.Response {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String(tracing.AttrCrateName, req.Metadata.Name),
		attribute.String(tracing.AttrCrateVersion, req.Version.String()),
	)

	if err := s.repo.AddCrate(*req.Metadata, *req.Version); err != nil {
		log.Warn(log.CatServer, "add_crate rejected", "name", req.Metadata.Name, "error", err.Error())
		return protocol.ErrResponseFrom(req.ID, err)
	}

	s.invalidateSearches(ctx)
	log.Info(log.CatServer, "add_crate", "name", req.Metadata.Name, "version", req.Version.String())
	return protocol.OkResponse(req.ID, nil)
}

func (s *Server) handleAddRelease(ctx context.Context, req protocol.Request) protocol.Response {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String(tracing.AttrCrateName, req.Name),
		attribute.String(tracing.AttrCrateVersion, req.Version.String()),
	)

	if err := s.repo.AddRelease(req.Name, *req.Version); err != nil {
		log.Warn(log.CatServer, "add_release rejected", "name", req.Name, "error", err.Error())
		return protocol.ErrResponseFrom(req.ID, err)
	}

	s.invalidateSearches(ctx)
	log.Info(log.CatServer, "add_release", "name", req.Name, "version", req.Version.String())
	return protocol.OkResponse(req.ID, nil)
}

// invalidateSearches drops cached search results after a mutation so
// stale result sets never outlive the data they were computed from.
func (s *Server) invalidateSearches(ctx context.Context) {
	if err := s.searches.Invalidate(ctx); err != nil {
		log.ErrorErr(log.CatCache, "invalidating search cache", err)
	}
}
