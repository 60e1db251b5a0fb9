// Package client is the Go client for the registry wire protocol. Each
// call dials the server, writes one request line and reads one response
// line.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/spookyvision/semver-server/internal/log"
	"github.com/spookyvision/semver-server/internal/protocol"
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
)

// Client talks to a registry server at a fixed address.
type Client struct {
	addr   string
	dialer net.Dialer
}

// New returns a client for the server at addr.
func New(addr string) *Client {
	return &Client{addr: addr}
}

// Do sends a single request and waits for the matching response.
// Transport and decode failures are returned as errors; protocol-level
// failures arrive inside the response envelope.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return protocol.Response{}, fmt.Errorf("setting deadline: %w", err)
		}
	}

	log.Debug(log.CatClient, "request", "id", req.ID, "type", string(req.Type))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return protocol.Response{}, fmt.Errorf("writing request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return protocol.Response{}, fmt.Errorf("reading response: %w", err)
	}

	resp, err := protocol.DecodeResponse(line)
	if err != nil {
		return protocol.Response{}, err
	}
	if resp.ID != req.ID {
		return protocol.Response{}, fmt.Errorf("response ID %q does not match request ID %q", resp.ID, req.ID)
	}
	return resp, nil
}

// FindExact looks up a crate by its exact name. A miss returns a nil
// crate and no error.
func (c *Client) FindExact(ctx context.Context, name string) (*registry.Crate, error) {
	resp, err := c.Do(ctx, protocol.NewFindExact(name))
	if err != nil {
		return nil, err
	}
	return resp.FindExactResult()
}

// FindAllContaining returns every crate whose name contains query,
// case-insensitively. An empty query matches all crates.
func (c *Client) FindAllContaining(ctx context.Context, query string) ([]registry.Crate, error) {
	resp, err := c.Do(ctx, protocol.NewFindAllContaining(query))
	if err != nil {
		return nil, err
	}
	return resp.FindAllResult()
}

// AddCrate registers a new crate with its first release. Failures map
// back to the registry sentinels, so errors.Is(err,
// registry.ErrAlreadyExists) works across the wire.
func (c *Client) AddCrate(ctx context.Context, metadata registry.Metadata, version semver.SemVer) error {
	resp, err := c.Do(ctx, protocol.NewAddCrate(metadata, version))
	if err != nil {
		return err
	}
	return resp.UnitResult()
}

// AddRelease appends a release to an existing crate.
func (c *Client) AddRelease(ctx context.Context, name string, version semver.SemVer) error {
	resp, err := c.Do(ctx, protocol.NewAddRelease(name, version))
	if err != nil {
		return err
	}
	return resp.UnitResult()
}
