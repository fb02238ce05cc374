// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package cgerrors provides the stable typed-error envelope shared by
// every component: a Kind, a human message, optional structured
// context, and an underlying cause chain via github.com/pkg/errors.
package cgerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of a failure so callers can branch on
// it without string matching. Not exhaustive — new kinds are added as
// components need them.
type Kind string

const (
	// Storage
	KindKeyspaceOpen        Kind = "KEYSPACE_OPEN"
	KindKeyspaceGet         Kind = "KEYSPACE_GET"
	KindKeyspacePut         Kind = "KEYSPACE_PUT"
	KindKeyspaceWrite       Kind = "KEYSPACE_WRITE"
	KindKeyspaceIterate     Kind = "KEYSPACE_ITERATE"
	KindKeyspaceDeleteRange Kind = "KEYSPACE_DELETE_RANGE"
	KindKeyspaceCheckpoint  Kind = "KEYSPACE_CHECKPOINT"
	KindKeyspaceDelete      Kind = "KEYSPACE_DELETE"

	// Durability
	KindDurabilityRead  Kind = "DURABILITY_READ"
	KindDurabilityWrite Kind = "DURABILITY_WRITE"
	KindDeserialize     Kind = "DESERIALIZE"

	// Snapshot
	KindSnapshotGet                Kind = "SNAPSHOT_GET"
	KindSnapshotCommitConflict     Kind = "SNAPSHOT_COMMIT_CONFLICT"
	KindSnapshotCommitInUse        Kind = "SNAPSHOT_COMMIT_SNAPSHOT_IN_USE"
	KindSnapshotCommitConceptWrite Kind = "SNAPSHOT_COMMIT_CONCEPT_WRITE_ERRORS"

	// Schema
	KindRootTypesAreImmutable  Kind = "ROOT_TYPES_ARE_IMMUTABLE"
	KindLabelShouldBeUnique    Kind = "LABEL_SHOULD_BE_UNIQUE"
	KindCycleInTypeHierarchy   Kind = "CYCLE_FOUND_IN_TYPE_HIERARCHY"
	KindCapabilityNotNarrowed  Kind = "CAPABILITY_NOT_NARROWED"
	KindValueTypeIncompatible  Kind = "VALUE_TYPE_INCOMPATIBLE"
	KindAnnotationNotSupported Kind = "ANNOTATION_CATEGORY_NOT_SUPPORTED"

	// Type inference
	KindLabelNotResolved           Kind = "LABEL_NOT_RESOLVED"
	KindRoleNameNotResolved        Kind = "ROLE_NAME_NOT_RESOLVED"
	KindUnsatisfiablePattern       Kind = "DETECTED_UNSATISFIABLE_PATTERN"
	KindValueTypeNotFound          Kind = "VALUE_TYPE_NOT_FOUND"
	KindCouldNotDetermineArgType   Kind = "COULD_NOT_DETERMINE_ARGUMENT_TYPE"
	KindCallerSignatureMismatch    Kind = "CALLER_SIGNATURE_TYPE_MISMATCH"
	KindCallerSigValueTypeMismatch Kind = "CALLER_SIGNATURE_VALUE_TYPE_MISMATCH"

	// Insert/delete compilation
	KindIsaConstraintForBoundVar Kind = "ISA_CONSTRAINT_FOR_BOUND_VARIABLE"
	KindIsaTypeHasMultipleKinds  Kind = "ISA_TYPE_HAS_MULTIPLE_KINDS"
	KindMultipleTypeConstraints  Kind = "MULTIPLE_TYPE_CONSTRAINTS_FOR_VARIABLE"
	KindInsertCompilation        Kind = "INSERT_COMPILATION_ERROR"
	KindDeleteCompilation        Kind = "DELETE_COMPILATION_ERROR"

	// Execution
	KindConceptRead          Kind = "CONCEPT_READ"
	KindInterrupted          Kind = "INTERRUPTED"
	KindWriteExclusivityWait Kind = "WRITE_EXCLUSIVITY_TIMEOUT"

	// Pipeline
	KindFunctionTypeInference     Kind = "FUNCTION_TYPE_INFERENCE"
	KindQueryTypeInference        Kind = "QUERY_TYPE_INFERENCE"
	KindExpressionCompilation     Kind = "EXPRESSION_COMPILATION"
	KindUnsupportedValueTypeForOp Kind = "UNSUPPORTED_VALUE_TYPE_FOR_REDUCER"
	KindPipelineCompilation       Kind = "PIPELINE_COMPILATION_ERROR"

	// Planner
	KindNoValidOrdering Kind = "PLANNER_NO_VALID_ORDERING"
)

// Error is the stable envelope: a Kind, a message, and optional
// structured context, chained to an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind/message to an existing error and records the
// caller's stack on it via errors.WithStack (applied every time, even
// when cause already carries a stack).
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.WithStack(cause)}
}

// WithContext returns a copy of e with additional structured context
// merged in.
func (e *Error) WithContext(kv ...any) *Error {
	ctx := make(map[string]any, len(e.Context)+len(kv)/2)
	for k, v := range e.Context {
		ctx[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ctx[key] = kv[i+1]
	}
	return &Error{Kind: e.Kind, Message: e.Message, Context: ctx, cause: e.cause}
}

// Is reports whether err is an *Error of the given kind, walking the
// cause chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.cause
			continue
		}
		return false
	}
	return false
}

// CommitFailure aggregates the concept-write errors surfaced when a
// commit's finalisation pass fails (§7 "the first concept-write error
// plus a count").
type CommitFailure struct {
	First      *Error
	TotalCount int
	All        []*Error
}

func (c *CommitFailure) Error() string {
	return fmt.Sprintf("commit failed: %v (and %d more)", c.First, c.TotalCount-1)
}

// NewCommitFailure builds a CommitFailure from a non-empty slice of
// concept-write errors, keeping the first as the headline error.
func NewCommitFailure(errs []*Error) *CommitFailure {
	if len(errs) == 0 {
		return nil
	}
	return &CommitFailure{First: errs[0], TotalCount: len(errs), All: errs}
}
