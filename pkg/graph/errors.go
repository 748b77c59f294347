package graph

import "errors"

var (
	// ErrInvalidArgument is returned by constructors for empty ids or
	// unknown enum values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateNode is returned when a node id is already present.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrDanglingEdge is returned when an edge endpoint is not a known node.
	ErrDanglingEdge = errors.New("dangling edge")
)
