package services

import (
	"github.com/pkg/errors"

	"github.com/cppla/aiblog/registry"
)

var (
	// ErrAuthenticationRequired means the operation needs an identified caller.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrUnknownType is returned for reaction target tags outside the registry.
	ErrUnknownType = registry.ErrUnknownType
	// ErrTargetNotFound means a reaction target id does not exist.
	ErrTargetNotFound = errors.New("target not found")
	// ErrNotFound means a referenced post, comment, tag or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller does not own the resource being changed.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict reports a uniqueness violation the caller has to resolve.
	ErrConflict = errors.New("conflict")
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrInvalidInput reports rejected field values.
	ErrInvalidInput = errors.New("invalid input")
)

// Page is a 1-based page request. Zero values fall back to page 1 of 10.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 10
	}
	return p
}

func (p Page) offset() int { return (p.Page - 1) * p.PageSize }
