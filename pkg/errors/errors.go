// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"github.com/pingcap/errors"
)

// errors
var (
	// config related errors
	ErrSeatCountInvalid = errors.Normalize(
		"invalid seat count %d, the table needs at least %d and at most %d seats",
		errors.RFCCodeText("DINE:ErrSeatCountInvalid"),
	)
	ErrConfigInvalid = errors.Normalize(
		"invalid simulation config, %s",
		errors.RFCCodeText("DINE:ErrConfigInvalid"),
	)
	ErrRendererUnknown = errors.Normalize(
		"unknown renderer %s, expect one of [console, log]",
		errors.RFCCodeText("DINE:ErrRendererUnknown"),
	)

	// table related errors
	ErrTableClosed = errors.Normalize(
		"table is closed",
		errors.RFCCodeText("DINE:ErrTableClosed"),
	)
	ErrSeatMisuse = errors.Normalize(
		"seat %d misused the table, %s",
		errors.RFCCodeText("DINE:ErrSeatMisuse"),
	)

	// status server errors
	ErrStatusServerFailed = errors.Normalize(
		"status server failed",
		errors.RFCCodeText("DINE:ErrStatusServerFailed"),
	)
)
