// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package artifact

import (
	"errors"
	"fmt"
)

// Artifact error kinds. Every load or startup failure wraps exactly one of
// these; check them with errors.Is.
var (
	ErrMissingFile      = errors.New("missing artifact file")
	ErrMalformedJSON    = errors.New("malformed artifact JSON")
	ErrSchemaMismatch   = errors.New("artifact schema mismatch")
	ErrUnknownReference = errors.New("unknown artifact reference")
	ErrCycleDetected    = errors.New("dependency cycle detected")
)

// Error describes a single artifact problem.
type Error struct {
	// Kind is one of the Err* sentinels above
	Kind error

	// File is the artifact file the problem was found in (may be empty)
	File string

	// Field locates the problem inside the file (e.g. "agents[1].subscriptions[0]")
	Field string

	// Detail is a human-readable description
	Detail string

	// Err is the underlying cause, if any
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.File != "" {
		msg += " in " + e.File
	}
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, file, field, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, File: file, Field: field, Detail: fmt.Sprintf(format, args...)}
}
