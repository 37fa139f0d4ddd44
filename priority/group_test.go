// Copyright 2025-2026 The ai-token-exo-bridge Authors
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

package priority_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebadiee/ai-token-exo-bridge/priority"
)

func TestGroupOrdering(t *testing.T) {
	t.Parallel()

	group, err := priority.NewGroup(
		priority.Member{Name: "openrouter", Rank: 2},
		priority.Member{Name: "exo-local", Rank: 0},
		priority.Member{Name: "together", Rank: 5},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"exo-local", "openrouter", "together"}, group.Ordered())
	assert.Equal(t, 3, group.Len())

	require.NoError(t, group.Set("together", 1))
	assert.Equal(t, []string{"exo-local", "together", "openrouter"}, group.Ordered())
	rank, ok := group.Rank("together")
	assert.True(t, ok)
	assert.Equal(t, 1, rank)

	// The old rank is free again after a move.
	require.NoError(t, group.Set("huggingface", 5))
	assert.Equal(t, []string{"exo-local", "together", "openrouter", "huggingface"}, group.Ordered())
}

func TestGroupRejectsTakenRank(t *testing.T) {
	t.Parallel()

	var group priority.Group
	require.NoError(t, group.Set("exo-local", 0))
	require.NoError(t, group.Set("exo-local", 0), "setting the same rank again is a no-op")
	err := group.Set("openrouter", 0)
	require.ErrorIs(t, err, priority.ErrRankTaken)
	require.ErrorIs(t, group.Set("openrouter", -1), priority.ErrInvalidRank)
	assert.Equal(t, []string{"exo-local"}, group.Ordered())

	_, err = priority.NewGroup(
		priority.Member{Name: "a", Rank: 0},
		priority.Member{Name: "b", Rank: 0},
	)
	require.ErrorIs(t, err, priority.ErrRankTaken)
	_, err = priority.NewGroup(
		priority.Member{Name: "a", Rank: 0},
		priority.Member{Name: "a", Rank: 1},
	)
	require.Error(t, err)
}

func TestGroupRemoveAndFirst(t *testing.T) {
	t.Parallel()

	group, err := priority.NewGroup(
		priority.Member{Name: "exo-local", Rank: 0},
		priority.Member{Name: "openrouter", Rank: 1},
	)
	require.NoError(t, err)

	first, ok := group.First(func(name string) bool { return name != "exo-local" })
	assert.True(t, ok)
	assert.Equal(t, "openrouter", first)

	assert.True(t, group.Remove("exo-local"))
	assert.False(t, group.Remove("exo-local"))
	require.NoError(t, group.Set("openrouter", 0))
	_, ok = group.First(func(string) bool { return false })
	assert.False(t, ok)
}
