package archive

import "fmt"

// HTTPStatusError reports a non-success status while fetching an archive.
// It is fatal for that archive only.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, e.Status)
}

// DecodeError reports malformed archive framing. Fatal for that archive.
type DecodeError struct {
	Archive string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Archive, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DuplicateDatabaseError reports a second recognized database file inside one
// archive. It is never silently resolved by picking one.
type DuplicateDatabaseError struct {
	Archive string
	First   string
	Second  string
}

func (e *DuplicateDatabaseError) Error() string {
	return fmt.Sprintf("archive %s: duplicate database file %q (already have %q)",
		e.Archive, e.Second, e.First)
}
