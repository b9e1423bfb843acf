// refboxd
// Copyright (c) 2026 The refboxd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of refboxd.
//
// refboxd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// refboxd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with refboxd.  If not, see <http://www.gnu.org/licenses/>.

package tournament

import "fmt"

// Code tags a precondition failure so callers can switch on it without
// string-matching, mirroring the thiserror-derived PenaltyError taxonomy in
// the original implementation translated to Go's sentinel-error idiom.
type Code int

const (
	// InvalidNowValue means `now` precedes a stored anchor instant.
	InvalidNowValue Code = iota
	// AlreadyStopped means the game clock is being held stopped by an
	// active timeout and cannot be started directly until the timeout ends.
	AlreadyStopped
	// NoDuration means a Total Dismissal penalty was asked for a duration.
	NoDuration
	// DurationOverflow means a penalty duration calculation overflowed.
	DurationOverflow
	// SnapshotOverflow means a value didn't fit the snapshot's wire width.
	SnapshotOverflow
	// InvalidPenaltyKind means an unrecognised PenaltyKind was supplied.
	InvalidPenaltyKind
	// TimeoutAlreadyActive means a timeout-start was issued while one was
	// already running.
	TimeoutAlreadyActive
	// NoActiveTimeout means EndTimeout was called with no timeout active.
	NoActiveTimeout
	// PenaltyNotFound means DeletePenalty/ReplacePenalty referenced an id
	// that isn't in the ledger.
	PenaltyNotFound
)

func (c Code) String() string {
	switch c {
	case InvalidNowValue:
		return "invalid now value"
	case AlreadyStopped:
		return "clock is held stopped by an active timeout"
	case NoDuration:
		return "total dismissal has no duration"
	case DurationOverflow:
		return "duration overflow"
	case SnapshotOverflow:
		return "snapshot value overflowed its wire width"
	case InvalidPenaltyKind:
		return "invalid penalty kind"
	case TimeoutAlreadyActive:
		return "a timeout is already active"
	case NoActiveTimeout:
		return "no timeout is active"
	case PenaltyNotFound:
		return "penalty not found"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every Manager command that rejects a
// precondition. State is left untouched whenever an Error is returned.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Is lets errors.Is match err against another *Error by comparing codes,
// e.g. errors.Is(err, &tournament.Error{Code: tournament.AlreadyStopped});
// a bare Code is not an error and cannot be the target. Callers can also do:
//
//	var tErr *tournament.Error
//	if errors.As(err, &tErr) && tErr.Code == tournament.AlreadyStopped { ... }
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
