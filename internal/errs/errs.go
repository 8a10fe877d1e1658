// Package errs defines the error kinds shared by the extraction pipeline.
//
// Every failure that aborts an update cycle wraps exactly one of these
// sentinels, so callers can use errors.Is to decide how to surface it.
package errs

import "errors"

var (
	// ErrNetwork means the remote could not be reached or the fetch timed out.
	ErrNetwork = errors.New("network error")
	// ErrAuth means the remote rejected the configured credentials.
	ErrAuth = errors.New("auth error")
	// ErrRepository means the commit graph or a tree was not in the expected state.
	ErrRepository = errors.New("repository error")
	// ErrEncoding means document content could not be decoded.
	ErrEncoding = errors.New("encoding error")
	// ErrConfig means a setting is missing or malformed.
	ErrConfig = errors.New("config error")
	// ErrIndex means the document set violates an index invariant.
	ErrIndex = errors.New("index error")
	// ErrQuery means a read request carried a malformed search query.
	ErrQuery = errors.New("invalid query")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrNetwork, "network"},
	{ErrAuth, "auth"},
	{ErrRepository, "repository"},
	{ErrEncoding, "encoding"},
	{ErrConfig, "config"},
	{ErrIndex, "index"},
	{ErrQuery, "query"},
}

// Kind returns the short name of the kind wrapped by err, "internal" for
// unclassified errors and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
