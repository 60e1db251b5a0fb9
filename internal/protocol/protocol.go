// Package protocol defines the line-oriented wire protocol spoken between
// the registry server and its clients: one JSON document per line, a
// four-shape request type, and a result-or-error response envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
)

// RequestType discriminates the four request shapes.
type RequestType string

const (
	RequestFindExact         RequestType = "find_exact"
	RequestFindAllContaining RequestType = "find_all_containing"
	RequestAddCrate          RequestType = "add_crate"
	RequestAddRelease        RequestType = "add_release"
)

// Request is a single protocol request. Which fields are meaningful
// depends on Type:
//
//	find_exact           name
//	find_all_containing  query
//	add_crate            metadata, version
//	add_release          name, version
//
// ID correlates the response with the request; clients generate it,
// the server echoes it back.
type Request struct {
	ID       string             `json:"id,omitempty"`
	Type     RequestType        `json:"type"`
	Name     string             `json:"name,omitempty"`
	Query    string             `json:"query,omitempty"`
	Metadata *registry.Metadata `json:"metadata,omitempty"`
	Version  *semver.SemVer     `json:"version,omitempty"`
}

// NewFindExact builds a find_exact request with a fresh correlation ID.
func NewFindExact(name string) Request {
	return Request{ID: uuid.NewString(), Type: RequestFindExact, Name: name}
}

// NewFindAllContaining builds a find_all_containing request.
func NewFindAllContaining(query string) Request {
	return Request{ID: uuid.NewString(), Type: RequestFindAllContaining, Query: query}
}

// NewAddCrate builds an add_crate request.
func NewAddCrate(metadata registry.Metadata, version semver.SemVer) Request {
	return Request{ID: uuid.NewString(), Type: RequestAddCrate, Metadata: &metadata, Version: &version}
}

// NewAddRelease builds an add_release request.
func NewAddRelease(name string, version semver.SemVer) Request {
	return Request{ID: uuid.NewString(), Type: RequestAddRelease, Name: name, Version: &version}
}

// Validate checks that the fields required by the request type are set.
func (r Request) Validate() error {
	switch r.Type {
	case RequestFindExact:
		if r.Name == "" {
			return fmt.Errorf("find_exact requires a name")
		}
	case RequestFindAllContaining:
		// empty query is valid: it matches all crates
	case RequestAddCrate:
		if r.Metadata == nil || r.Version == nil {
			return fmt.Errorf("add_crate requires metadata and version")
		}
	case RequestAddRelease:
		if r.Name == "" || r.Version == nil {
			return fmt.Errorf("add_release requires a name and version")
		}
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	return nil
}

// ErrorKind enumerates the protocol error taxonomy. Repository failures
// map one-to-one; everything else (unreadable requests, encoding
// failures) collapses to internal so parse detail never leaks.
type ErrorKind string

const (
	KindInternal       ErrorKind = "internal"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidVersion ErrorKind = "invalid_version"
	KindAlreadyExists  ErrorKind = "already_exists"
)

// ResponseError is the error half of the response envelope.
type ResponseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

// Err converts the wire error back into the matching registry sentinel,
// or a generic error for internal failures. Used on the client side so
// callers can errors.Is against the registry taxonomy.
func (e *ResponseError) Err() error {
	switch e.Kind {
	case KindNotFound:
		return registry.ErrNotFound
	case KindInvalidVersion:
		return registry.ErrInvalidVersion
	case KindAlreadyExists:
		return registry.ErrAlreadyExists
	default:
		return fmt.Errorf("internal server error: %s", e.Message)
	}
}

// Response is the envelope written back for every request line:
// exactly one of Ok or Err is present.
type Response struct {
	ID  string          `json:"id,omitempty"`
	Ok  json.RawMessage `json:"ok,omitempty"`
	Err *ResponseError  `json:"err,omitempty"`
}

// Payload shapes carried in the Ok half. Unit results (add_crate,
// add_release) carry an empty object.

// FindExactPayload wraps the optional crate of a find_exact result.
type FindExactPayload struct {
	Crate *registry.Crate `json:"crate"`
}

// FindAllPayload wraps the crate set of a find_all_containing result.
type FindAllPayload struct {
	Crates []registry.Crate `json:"crates"`
}

// OkResponse builds a success envelope with the given payload.
// A nil payload yields the unit result.
func OkResponse(id string, payload any) Response {
	if payload == nil {
		return Response{ID: id, Ok: json.RawMessage(`{}`)}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are our own types; failing to encode one is a bug,
		// reported as internal rather than a broken line.
		return ErrResponse(id, KindInternal, "response encoding failed")
	}
	return Response{ID: id, Ok: data}
}

// ErrResponse builds a failure envelope.
func ErrResponse(id string, kind ErrorKind, message string) Response {
	return Response{ID: id, Err: &ResponseError{Kind: kind, Message: message}}
}

// ErrResponseFrom maps a registry error onto the wire taxonomy.
func ErrResponseFrom(id string, err error) Response {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return ErrResponse(id, KindNotFound, err.Error())
	case errors.Is(err, registry.ErrInvalidVersion):
		return ErrResponse(id, KindInvalidVersion, err.Error())
	case errors.Is(err, registry.ErrAlreadyExists):
		return ErrResponse(id, KindAlreadyExists, err.Error())
	default:
		return ErrResponse(id, KindInternal, err.Error())
	}
}

// DecodeRequest parses a single request line.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// DecodeResponse parses a single response line.
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}

// FindExactResult extracts the optional crate from a find_exact response.
func (r Response) FindExactResult() (*registry.Crate, error) {
	if r.Err != nil {
		return nil, r.Err.Err()
	}
	var payload FindExactPayload
	if err := json.Unmarshal(r.Ok, &payload); err != nil {
		return nil, fmt.Errorf("decoding find_exact payload: %w", err)
	}
	return payload.Crate, nil
}

// FindAllResult extracts the crate set from a find_all_containing response.
func (r Response) FindAllResult() ([]registry.Crate, error) {
	if r.Err != nil {
		return nil, r.Err.Err()
	}
	var payload FindAllPayload
	if err := json.Unmarshal(r.Ok, &payload); err != nil {
		return nil, fmt.Errorf("decoding find_all_containing payload: %w", err)
	}
	return payload.Crates, nil
}

// UnitResult reports whether a mutation response succeeded.
func (r Response) UnitResult() error {
	if r.Err != nil {
		return r.Err.Err()
	}
	return nil
}
