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

package discovery

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zebadiee/ai-token-exo-bridge/health"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultHost is the host scanned when none is configured.
	DefaultHost = "127.0.0.1"
	// DefaultTimeout bounds each connection attempt and request.
	DefaultTimeout = 2 * time.Second

	maxBodyBytes = 1 << 20
)

// DefaultPorts are the ports local inference servers commonly listen on.
// 8000 is the Exo default.
func DefaultPorts() []int {
	return []int{8000, 8001, 8080, 8888, 5000, 5001}
}

// DefaultHealthPaths are the paths tried, in order, on every open port.
func DefaultHealthPaths() []string {
	return []string{"/health", "/v1/models", "/api/health", "/status", "/"}
}

// Kind tells what sort of server a node appears to be.
type Kind string

const (
	// KindExo is a node that identifies as Exo or serves a model list.
	KindExo Kind = "exo"
	// KindLocal is any other server answering on a health path.
	KindLocal Kind = "local"
)

// Node is a server found by a Scanner.
type Node struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	URL        string `json:"url"`
	HealthPath string `json:"health_path"`
	Kind       Kind   `json:"kind"`
	Version    string `json:"version,omitempty"`
	Models     int    `json:"models"`
}

// Name is the target name used for the node.
func (n Node) Name() string {
	return string(n.Kind) + "-" + strconv.Itoa(n.Port)
}

// Target returns a monitoring target for the node with default probe
// settings.
func (n Node) Target() health.Target {
	return health.Target{
		Name:      n.Name(),
		Endpoint:  n.URL,
		ProbePath: n.HealthPath,
		Local:     true,
	}.WithDefaults()
}

// Best returns the node with the most models, preferring the lowest port
// among equals.
func Best(nodes []Node) (Node, bool) {
	if len(nodes) == 0 {
		return Node{}, false
	}
	return slices.MinFunc(nodes, func(a, b Node) int {
		if c := cmp.Compare(b.Models, a.Models); c != 0 {
			return c
		}
		return cmp.Compare(a.Port, b.Port)
	}), true
}

// ScannerOption customizes a Scanner.
type ScannerOption interface {
	apply(*Scanner)
}

type scannerOptionFunc func(*Scanner)

func (f scannerOptionFunc) apply(s *Scanner) {
	f(s)
}

// WithHost sets the host to scan. The default is DefaultHost.
func WithHost(host string) ScannerOption {
	return scannerOptionFunc(func(s *Scanner) {
		s.host = host
	})
}

// WithPorts sets the ports to scan. The default is DefaultPorts.
func WithPorts(ports ...int) ScannerOption {
	return scannerOptionFunc(func(s *Scanner) {
		s.ports = ports
	})
}

// WithHealthPaths sets the paths tried on each open port. The default is
// DefaultHealthPaths.
func WithHealthPaths(paths ...string) ScannerOption {
	return scannerOptionFunc(func(s *Scanner) {
		s.paths = paths
	})
}

// WithTimeout bounds each connection attempt and each request. The default
// is DefaultTimeout.
func WithTimeout(timeout time.Duration) ScannerOption {
	return scannerOptionFunc(func(s *Scanner) {
		s.timeout = timeout
	})
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) ScannerOption {
	return scannerOptionFunc(func(s *Scanner) {
		s.client = client
	})
}

// Scanner looks for inference servers on a set of ports of one host.
type Scanner struct {
	host    string
	ports   []int
	paths   []string
	timeout time.Duration
	client  *http.Client
	dialer  net.Dialer
}

// NewScanner creates a scanner.
func NewScanner(options ...ScannerOption) *Scanner {
	scanner := &Scanner{
		host:    DefaultHost,
		ports:   DefaultPorts(),
		paths:   DefaultHealthPaths(),
		timeout: DefaultTimeout,
	}
	for _, opt := range options {
		opt.apply(scanner)
	}
	if scanner.client == nil {
		scanner.client = &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		}
	}
	scanner.dialer.Timeout = scanner.timeout
	return scanner
}

// Scan checks every port concurrently and returns the nodes found, sorted
// by port. Ports that are closed or do not answer on any health path are
// left out. The only error returned is the context's.
func (s *Scanner) Scan(ctx context.Context) ([]Node, error) {
	var (
		mu    sync.Mutex
		nodes []Node
		group errgroup.Group
	)
	for _, port := range s.ports {
		group.Go(func() error {
			node, ok := s.scanPort(ctx, port)
			if ok {
				mu.Lock()
				defer mu.Unlock()
				nodes = append(nodes, node)
			}
			return nil
		})
	}
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(nodes, func(a, b Node) int {
		return cmp.Compare(a.Port, b.Port)
	})
	return nodes, nil
}

func (s *Scanner) scanPort(ctx context.Context, port int) (Node, bool) {
	hostPort := net.JoinHostPort(s.host, strconv.Itoa(port))
	conn, err := s.dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return Node{}, false
	}
	_ = conn.Close()

	base := "http://" + hostPort
	for _, path := range s.paths {
		body, ok := s.get(ctx, base+path)
		if !ok {
			continue
		}
		node := Node{
			Host:       s.host,
			Port:       port,
			URL:        base,
			HealthPath: path,
			Kind:       identify(body, path),
		}
		node.Version, node.Models = s.details(ctx, base)
		return node, true
	}
	return Node{}, false
}

// get fetches url and returns its body if the status is 200.
func (s *Scanner) get(ctx context.Context, url string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, false
	}
	return body, true
}

// details reads the version and model count from the OpenAI style model
// list, if the node serves one.
func (s *Scanner) details(ctx context.Context, base string) (version string, models int) {
	body, ok := s.get(ctx, base+"/v1/models")
	if !ok {
		return "", 0
	}
	var list struct {
		Data    []json.RawMessage `json:"data"`
		Models  []json.RawMessage `json:"models"`
		Version any               `json:"version"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return "", 0
	}
	models = len(list.Data)
	if models == 0 {
		models = len(list.Models)
	}
	if list.Version != nil {
		version = fmt.Sprint(list.Version)
	}
	return version, models
}

func identify(body []byte, path string) Kind {
	if strings.Contains(strings.ToLower(string(body)), "exo") || path == "/v1/models" {
		return KindExo
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) == nil {
		if _, ok := fields["models"]; ok {
			return KindExo
		}
		if _, ok := fields["data"]; ok {
			return KindExo
		}
	}
	return KindLocal
}
