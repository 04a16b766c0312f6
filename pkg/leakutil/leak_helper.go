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

package leakutil

import (
	"testing"

	"go.uber.org/goleak"
)

// SetUpLeakTest ignores known goroutine leaks from dependencies and verifies
// the rest of the test binary, it should be called in TestMain.
func SetUpLeakTest(m *testing.M, opts ...goleak.Option) {
	opts = append(opts,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
	goleak.VerifyTestMain(m, opts...)
}

// VerifyNone verifies that no unexpected goroutine leaks at this point,
// it is suitable for tests that spawn goroutines on their own.
func VerifyNone(t *testing.T, opts ...goleak.Option) {
	goleak.VerifyNone(t, opts...)
}
