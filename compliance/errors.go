package compliance

import "errors"

// Error kinds for the scan pipeline. Wrap with fmt.Errorf("...: %w", Err...)
// and match with errors.Is. ErrNetwork failures are a subtype of scan
// failure for propagation purposes: a fetch that exhausts its retries
// aborts the scan the same way a parse failure does.
var (
	// ErrInvalidURL means validation rejected the input or a discovered
	// link, including SSRF-blocked hosts.
	ErrInvalidURL = errors.New("invalid url")

	// ErrNetwork means a fetch failed after exhausting retries, or the
	// response had an unsupported content type.
	ErrNetwork = errors.New("network error")

	// ErrScan means analysis failed for a reason other than network,
	// such as an unreadable document.
	ErrScan = errors.New("scan error")
)
