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

// Package discovery finds local inference nodes so that they can be
// monitored without being configured by hand.
//
// A [Scanner] checks a fixed set of ports on one host. For every open port
// it tries a list of well known health paths and reports the first one
// that answers 200 as a [Node]. A [Discoverer] runs a Scanner periodically
// in the background and hands the targets it finds to a [Receiver], such as
// an exobridge.Monitor.
package discovery
