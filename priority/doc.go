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

// Package priority keeps providers in the order a router should try them.
//
// Each member of a [Group] has a rank. Rank 0 is tried first, and no two
// members may share a rank, so the order of candidates is always well
// defined. Local inference nodes are typically given rank 0 and paid cloud
// providers the highest ranks.
package priority
