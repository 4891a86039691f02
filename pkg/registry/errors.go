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
package registry

import (
	"errors"
	"fmt"
)

// Invocation error kinds. Check them with errors.Is.
var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrSchemaViolation = errors.New("schema violation")
	ErrHandlerError    = errors.New("handler error")

	// ErrUnbound marks a declared method with no handler behind it.
	ErrUnbound = errors.New("method has no bound handler")
)

// InvocationError is returned by NodeInstance calls. It is local to the
// failing call.
type InvocationError struct {
	Node   string
	Method string
	Kind   error // ErrMethodNotFound, ErrSchemaViolation or ErrHandlerError
	Err    error // underlying cause, may be nil
}

// Error implements error.
func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s.%s: %v", e.Node, e.Method, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *InvocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value interface{}
}

// Error implements error.
func (p *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", p.Value)
}
