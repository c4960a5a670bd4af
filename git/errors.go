package git

import (
	"errors"
	"fmt"
	"strings"

	pubErrors "github.com/input-output-hk/catalyst-forge-libs/gitpublish/errors"
)

// Common sentinel errors that can be checked with errors.Is().
// These wrap underlying go-git errors while providing a stable API for consumers.

// ErrAuthRequired is returned when an operation requires authentication
// but no credentials were provided or available.
var ErrAuthRequired = errors.New("authentication required")

// ErrBranchMissing is returned when a branch ref does not exist.
var ErrBranchMissing = errors.New("branch does not exist")

// ErrPathNotFound is returned when a path does not exist in a branch's tree,
// or when the branch itself is absent.
var ErrPathNotFound = errors.New("path does not exist")

// ErrRemoteRefNotFound is returned when a remote, or a branch on that remote,
// does not exist.
var ErrRemoteRefNotFound = errors.New("remote ref does not exist")

// ErrConfigMissing is returned when a requested configuration key is unset.
var ErrConfigMissing = errors.New("configuration key is not set")

// ErrConcurrentUpdate is returned when a branch moved between the start of a
// commit transaction and its finish. Callers retry by staging again on the new tip.
var ErrConcurrentUpdate = errors.New("branch was updated concurrently")

// ErrNotFastForward is returned when an update would not be a fast-forward.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrPushRejected is returned when the remote refuses a push.
var ErrPushRejected = errors.New("push rejected")

// ErrTransactionClosed is returned when staging on a finished or aborted commit.
var ErrTransactionClosed = errors.New("commit transaction is closed")

// ErrAlreadyFinished is returned when finishing or aborting a commit that already
// left the open state.
var ErrAlreadyFinished = errors.New("commit transaction already finished")

// ErrInvalidPath is returned for empty, absolute or escaping repository paths,
// and for paths that name a directory where a file is required.
var ErrInvalidPath = errors.New("invalid path")

// ErrInvalidPattern is returned for malformed glob patterns.
var ErrInvalidPattern = errors.New("invalid pattern")

// ErrInvalidRef is returned when a reference name or revision specification
// is malformed or invalid according to git's reference naming rules.
var ErrInvalidRef = errors.New("invalid reference")

// ErrInvalidOptions is returned when Options fail validation.
var ErrInvalidOptions = errors.New("invalid options")

// ErrResolveFailed is returned when a revision specification cannot be resolved
// to a valid commit hash (e.g., branch/tag doesn't exist, invalid SHA).
var ErrResolveFailed = errors.New("cannot resolve revision")

// codeTable maps sentinels onto the shared error code catalogue.
// Order matters: the first sentinel found in an error chain wins.
var codeTable = []struct {
	err  error
	code pubErrors.ErrorCode
}{
	{ErrConcurrentUpdate, pubErrors.CodeConflict},
	{ErrPushRejected, pubErrors.CodePublishFailed},
	{ErrNotFastForward, pubErrors.CodePublishFailed},
	{ErrBranchMissing, pubErrors.CodeNotFound},
	{ErrPathNotFound, pubErrors.CodeNotFound},
	{ErrRemoteRefNotFound, pubErrors.CodeNotFound},
	{ErrResolveFailed, pubErrors.CodeNotFound},
	{ErrConfigMissing, pubErrors.CodeInvalidConfig},
	{ErrTransactionClosed, pubErrors.CodeInternal},
	{ErrAlreadyFinished, pubErrors.CodeInternal},
	{ErrInvalidPath, pubErrors.CodeInvalidInput},
	{ErrInvalidPattern, pubErrors.CodeInvalidInput},
	{ErrInvalidRef, pubErrors.CodeInvalidInput},
	{ErrInvalidOptions, pubErrors.CodeInvalidInput},
	{ErrAuthRequired, pubErrors.CodeUnauthorized},
}

// GitError describes a failed operation together with the ref and path it
// concerned. It wraps the underlying cause, usually one of the sentinels above.
type GitError struct {
	// Op names the operation, e.g. "read file" or "push".
	Op string

	// Ref is the branch or remote ref involved, if any.
	Ref string

	// Path is the repository path involved, if any.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *GitError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Ref != "" {
		if e.Path != "" {
			b.WriteString(" on")
		}
		fmt.Fprintf(&b, " %q", e.Ref)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *GitError) Unwrap() error {
	return e.Err
}

// Code classifies the error using the shared error code catalogue.
func (e *GitError) Code() pubErrors.ErrorCode {
	for _, c := range codeTable {
		if errors.Is(e.Err, c.err) {
			return c.code
		}
	}
	if code := pubErrors.CodeOf(e.Err); code != "" {
		return code
	}
	return pubErrors.CodeUnknown
}

// newError builds a GitError for op on ref/path.
func newError(op, ref, path string, err error) error {
	if err == nil {
		return nil
	}
	return &GitError{Op: op, Ref: ref, Path: path, Err: err}
}

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
