// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrAuthorization                  = errors.New("unauthorized")
	ErrStateConflict                  = errors.New("state conflict")
	ErrNotFound                       = errors.New("not found")
	ErrExternalCall                   = errors.New("external call failed")
	ErrInsufficientBalanceOrAllowance = errors.New("insufficient balance or allowance")
	ErrReadOnly                       = errors.New("state modification in read-only call")
	ErrCallDepth                      = errors.New("call depth limit exceeded")
	ErrInvalidArgument                = errors.New("invalid argument")
	ErrMalformedCall                  = errors.New("malformed call payload")
)

// AuthorizationError is returned when the caller is not the resolved owner or
// does not hold a required role
type AuthorizationError struct {
	Caller common.Address
	Reason string
}

func NewAuthorizationError(caller common.Address, reason string) *AuthorizationError {
	return &AuthorizationError{Caller: caller, Reason: reason}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s: caller %s", ErrAuthorization, e.Reason, e.Caller.Hex())
}

func (e *AuthorizationError) Unwrap() error {
	return ErrAuthorization
}

// StateConflictError is returned when the current state does not allow the operation
type StateConflictError struct {
	Reason string
}

func NewStateConflictError(format string, args ...any) *StateConflictError {
	return &StateConflictError{Reason: fmt.Sprintf(format, args...)}
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStateConflict, e.Reason)
}

func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}

// NotFoundError is returned for an unknown token, account, contract or method
type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InsufficientError is returned when a required debit cannot be completed
type InsufficientError struct {
	Have   *uint256.Int
	Want   *uint256.Int
	Reason string
}

func NewInsufficientError(reason string, have, want *uint256.Int) *InsufficientError {
	return &InsufficientError{
		Reason: reason,
		Have:   new(uint256.Int).Set(have),
		Want:   new(uint256.Int).Set(want),
	}
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf(
		"%s: %s: have %s, want %s",
		ErrInsufficientBalanceOrAllowance,
		e.Reason,
		e.Have.Dec(),
		e.Want.Dec(),
	)
}

func (e *InsufficientError) Unwrap() error {
	return ErrInsufficientBalanceOrAllowance
}

// CallError wraps the failure of a forwarded call. The original failure stays
// reachable through errors.Is and errors.As
type CallError struct {
	Err    error
	Target common.Address
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: call to %s: %s", ErrExternalCall, e.Target.Hex(), e.Err)
}

func (e *CallError) Unwrap() []error {
	return []error{ErrExternalCall, e.Err}
}

// ErrorKind returns a short label for the class of err, used for metrics and logs
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrInsufficientBalanceOrAllowance):
		return "insufficient"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrReadOnly):
		return "read_only"
	case errors.Is(err, ErrCallDepth):
		return "call_depth"
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMalformedCall):
		return "invalid_argument"
	case errors.Is(err, ErrExternalCall):
		return "external_call"
	default:
		return "internal"
	}
}
