package track

import "fmt"

// FetchError reports that a source document could not be retrieved.
type FetchError struct {
	Err        error
	Source     string
	StatusCode int
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a malformed document or payload token.
type ParseError struct {
	Err    error
	Format string
	// Token is the index of the offending token, -1 for whole-document errors.
	Token int
}

func (e *ParseError) Error() string {
	if e.Token >= 0 {
		return fmt.Sprintf("parse %s: token %d: %v", e.Format, e.Token, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SkipError describes a per-sample computation that was abandoned.
// It is logged and never returned from a parse.
type SkipError struct {
	Err   error
	Index int
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("sample %d skipped: %v", e.Index, e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }
