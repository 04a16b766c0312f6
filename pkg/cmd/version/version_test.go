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

package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := NewCmdVersion()
	var b bytes.Buffer
	cmd.SetOut(&b)
	require.NoError(t, cmd.Execute())
	require.Contains(t, b.String(), "Release Version:")
	require.Contains(t, b.String(), "Git Commit Hash:")
}
