// Copyright 2020-2024 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package syserror handles "system errors".
//
// A system error is an error that should never actually happen, such as an
// AST node kind the evaluator does not know. It is reported to the user as a
// bug in crange rather than as a problem with their range expression.
package syserror

import (
	"errors"
	"fmt"
)

// Error is a system error.
type Error struct {
	Underlying error
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil || e.Underlying == nil {
		return ""
	}
	return "system error: " + e.Underlying.Error()
}

// Unwrap implements errors.Unwrap for Error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Underlying
}

// New returns a new system error with the text.
func New(text string) *Error {
	return &Error{
		Underlying: errors.New(text),
	}
}

// Newf returns a new system error formatted with fmt.Errorf.
func Newf(format string, args ...any) *Error {
	return &Error{
		Underlying: fmt.Errorf(format, args...),
	}
}

// Wrap returns a new system error for err.
//
// If err is nil or already a system error, this returns err.
func Wrap(err error) error {
	if err == nil || Is(err) {
		return err
	}
	return &Error{
		Underlying: err,
	}
}

// Is returns true if err is or wraps a system error.
func Is(err error) bool {
	var target *Error
	return errors.As(err, &target)
}
