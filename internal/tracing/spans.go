package tracing

// Span attribute keys used when tracing registry requests.
const (
	// Request attributes
	AttrRequestID   = "request.id"
	AttrRequestType = "request.type"
	AttrRemoteAddr  = "remote.addr"

	// Crate attributes
	AttrCrateName    = "crate.name"
	AttrCrateVersion = "crate.version"
	AttrQuery        = "query"
	AttrResultCount  = "result.count"
	AttrCacheHit     = "cache.hit"

	// Error attributes
	AttrErrorKind    = "error.kind"
	AttrErrorMessage = "error.message"
)

// SpanPrefixRequest prefixes request-handling span names.
const SpanPrefixRequest = "request."
