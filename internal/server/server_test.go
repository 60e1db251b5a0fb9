package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/spookyvision/semver-server/internal/protocol"
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
	"github.com/spookyvision/semver-server/internal/server"
	"github.com/spookyvision/semver-server/internal/testutil"
	"github.com/spookyvision/semver-server/internal/tracing"
)

func startTestServer(t *testing.T, repo *registry.Repository) *server.Server {
	t.Helper()

	cfg := server.DefaultConfig("127.0.0.1:0")
	srv, err := server.New(repo, cfg)
	require.NoError(t, err)

	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	})

	return srv
}

func dial(t *testing.T, srv *server.Server) (*json.Encoder, *bufio.Reader) {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return json.NewEncoder(conn), bufio.NewReader(conn)
}

func roundTrip(t *testing.T, enc *json.Encoder, r *bufio.Reader, req protocol.Request) protocol.Response {
	t.Helper()

	require.NoError(t, enc.Encode(req))
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(line)
	require.NoError(t, err)
	require.Equal(t, req.ID, resp.ID, "response must echo the request ID")
	return resp
}

func TestServer_FullSession(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()

	srv := startTestServer(t, repo)
	enc, r := dial(t, srv)

	meta := registry.NewMetadata("linux.exe", "Linus Torvalds", registry.KindBinary)

	// Register a crate.
	resp := roundTrip(t, enc, r, protocol.NewAddCrate(meta, semver.New(1, 0, 0)))
	require.NoError(t, resp.UnitResult())

	// Duplicate registration fails.
	resp = roundTrip(t, enc, r, protocol.NewAddCrate(meta, semver.New(2, 0, 0)))
	require.ErrorIs(t, resp.UnitResult(), registry.ErrAlreadyExists)

	// Release a newer version.
	resp = roundTrip(t, enc, r, protocol.NewAddRelease("linux.exe", semver.New(1, 0, 1)))
	require.NoError(t, resp.UnitResult())

	// Non-increasing release fails.
	resp = roundTrip(t, enc, r, protocol.NewAddRelease("linux.exe", semver.New(1, 0, 1)))
	require.ErrorIs(t, resp.UnitResult(), registry.ErrInvalidVersion)

	// Releasing an unknown crate fails.
	resp = roundTrip(t, enc, r, protocol.NewAddRelease("hurd.exe", semver.New(1, 0, 0)))
	require.ErrorIs(t, resp.UnitResult(), registry.ErrNotFound)

	// Exact lookup returns the full history.
	resp = roundTrip(t, enc, r, protocol.NewFindExact("linux.exe"))
	crate, err := resp.FindExactResult()
	require.NoError(t, err)
	require.NotNil(t, crate)
	require.Equal(t, "linux.exe", crate.Metadata.Name)
	require.Equal(t, []semver.SemVer{semver.New(1, 0, 0), semver.New(1, 0, 1)}, crate.ReleaseHistory)

	// Exact lookup misses are ok responses with a null crate.
	resp = roundTrip(t, enc, r, protocol.NewFindExact("LINUX.EXE"))
	crate, err = resp.FindExactResult()
	require.NoError(t, err)
	require.Nil(t, crate)
}

func TestServer_SearchIsCaseInsensitive(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()
	testutil.NewBuilder(t, repo).WithStandardCrates().Build()

	srv := startTestServer(t, repo)
	enc, r := dial(t, srv)

	resp := roundTrip(t, enc, r, protocol.NewFindAllContaining("NuX"))
	crates, err := resp.FindAllResult()
	require.NoError(t, err)
	names := crateNames(crates)
	require.ElementsMatch(t, []string{"linux.exe", "LINUX.EXE!!"}, names)

	resp = roundTrip(t, enc, r, protocol.NewFindAllContaining("stuxnet"))
	crates, err = resp.FindAllResult()
	require.NoError(t, err)
	require.Empty(t, crates)

	// Empty query matches everything.
	resp = roundTrip(t, enc, r, protocol.NewFindAllContaining(""))
	crates, err = resp.FindAllResult()
	require.NoError(t, err)
	require.Len(t, crates, 4)
}

func TestServer_SearchReflectsMutations(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()

	srv := startTestServer(t, repo)
	enc, r := dial(t, srv)

	// Prime the cache with an empty result.
	resp := roundTrip(t, enc, r, protocol.NewFindAllContaining("moon"))
	crates, err := resp.FindAllResult()
	require.NoError(t, err)
	require.Empty(t, crates)

	// A mutation must invalidate the cached result.
	resp = roundTrip(t, enc, r, protocol.NewAddCrate(
		registry.NewMetadata("hello_moon", "Busy Person", registry.KindLibrary), semver.New(0, 1, 0)))
	require.NoError(t, resp.UnitResult())

	resp = roundTrip(t, enc, r, protocol.NewFindAllContaining("moon"))
	crates, err = resp.FindAllResult()
	require.NoError(t, err)
	require.Equal(t, []string{"hello_moon"}, crateNames(crates))
}

func TestServer_MalformedLineGetsInternalError(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()

	srv := startTestServer(t, repo)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(line)
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	require.Equal(t, protocol.KindInternal, resp.Err.Kind)

	// The connection survives a malformed line.
	enc := json.NewEncoder(conn)
	good := roundTrip(t, enc, r, protocol.NewFindAllContaining(""))
	require.NoError(t, good.UnitResult())
}

func TestServer_ConcurrentConnections(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()

	srv := startTestServer(t, repo)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func(n int) {
			conn, err := net.Dial("tcp", srv.Addr())
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()

			enc := json.NewEncoder(conn)
			r := bufio.NewReader(conn)

			name := string(rune('a'+n)) + "_crate"
			req := protocol.NewAddCrate(registry.NewMetadata(name, "cafebabe", registry.KindLibrary), semver.New(1, 0, 0))
			if err := enc.Encode(req); err != nil {
				done <- err
				return
			}
			line, err := r.ReadBytes('\n')
			if err != nil {
				done <- err
				return
			}
			resp, err := protocol.DecodeResponse(line)
			if err != nil {
				done <- err
				return
			}
			done <- resp.UnitResult()
		}(i)
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	require.Equal(t, 4, repo.Len())
}

func TestServer_SpansRecordCacheHitsAndErrors(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()
	testutil.NewBuilder(t, repo).WithStandardCrates().Build()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg := server.DefaultConfig("127.0.0.1:0")
	cfg.Tracer = provider.Tracer("test")
	srv, err := server.New(repo, cfg)
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	})

	enc, r := dial(t, srv)

	// First search loads from the repository, the repeat with different
	// casing is served from cache under the folded key.
	resp := roundTrip(t, enc, r, protocol.NewFindAllContaining("nux"))
	_, err = resp.FindAllResult()
	require.NoError(t, err)
	resp = roundTrip(t, enc, r, protocol.NewFindAllContaining("NUX"))
	_, err = resp.FindAllResult()
	require.NoError(t, err)

	resp = roundTrip(t, enc, r, protocol.NewAddRelease("missing", semver.New(1, 0, 0)))
	require.ErrorIs(t, resp.UnitResult(), registry.ErrNotFound)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	require.Equal(t, tracing.SpanPrefixRequest+string(protocol.RequestFindAllContaining), spans[0].Name)
	require.False(t, spanAttr(t, spans[0], tracing.AttrCacheHit).AsBool())
	require.True(t, spanAttr(t, spans[1], tracing.AttrCacheHit).AsBool())

	require.Equal(t, codes.Error, spans[2].Status.Code)
	require.Equal(t, string(protocol.KindNotFound), spanAttr(t, spans[2], tracing.AttrErrorKind).AsString())
	require.NotEmpty(t, spanAttr(t, spans[2], tracing.AttrErrorMessage).AsString())
}

func spanAttr(t *testing.T, stub tracetest.SpanStub, key string) attribute.Value {
	t.Helper()
	for _, kv := range stub.Attributes {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	require.Failf(t, "missing span attribute", "key %s on span %s", key, stub.Name)
	return attribute.Value{}
}

func TestServer_StopIsIdempotent(t *testing.T) {
	repo := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	defer func() { require.NoError(t, repo.Close()) }()

	cfg := server.DefaultConfig("127.0.0.1:0")
	srv, err := server.New(repo, cfg)
	require.NoError(t, err)

	go func() { _ = srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
}

func crateNames(crates []registry.Crate) []string {
	names := make([]string, 0, len(crates))
	for _, c := range crates {
		names = append(names, c.Metadata.Name)
	}
	return names
}
