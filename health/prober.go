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

package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// ProbeResult is the outcome of a single probe. It is an immutable value.
type ProbeResult struct {
	Target  string
	Time    time.Time
	Success bool
	Latency time.Duration
	// Err describes the failure. It is empty when Success is true.
	Err string
	// StatusCode is the HTTP status of the probe response, or zero if no
	// response was received.
	StatusCode int
	Reason     FailureReason
}

// Prober performs one synchronous health check against a target.
//
// Implementations must not panic and must not report failure any other way
// than through the returned result: an unreachable target is an expected,
// common outcome. Implementations must honor ctx and the target's
// ProbeTimeout.
type Prober interface {
	Probe(ctx context.Context, target Target) ProbeResult
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target Target) ProbeResult

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, target Target) ProbeResult {
	return f(ctx, target)
}

// HTTPProberOption customizes an HTTPProber.
type HTTPProberOption interface {
	apply(*HTTPProber)
}

type httpProberOptionFunc func(*HTTPProber)

func (f httpProberOptionFunc) apply(p *HTTPProber) {
	f(p)
}

// WithHTTPClient overrides the client used for "http" and "https" targets.
func WithHTTPClient(client *http.Client) HTTPProberOption {
	return httpProberOptionFunc(func(p *HTTPProber) {
		p.client = client
	})
}

// WithUserAgent sets the User-Agent header sent with every probe.
func WithUserAgent(userAgent string) HTTPProberOption {
	return httpProberOptionFunc(func(p *HTTPProber) {
		p.userAgent = userAgent
	})
}

// HTTPProber probes a target with an HTTP GET of its probe URL. Any 2xx
// response is healthy. Endpoints with the "h2c" scheme are probed using
// HTTP/2 over plaintext.
type HTTPProber struct {
	client    *http.Client
	h2c       *http.Client
	userAgent string
}

var _ Prober = (*HTTPProber)(nil)

// NewHTTPProber returns a prober using the given options.
func NewHTTPProber(options ...HTTPProberOption) *HTTPProber {
	prober := &HTTPProber{
		userAgent: "exobridge-health/1",
	}
	for _, opt := range options {
		opt.apply(prober)
	}
	// Probes must never follow redirects into another backend.
	noRedirects := func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	if prober.client == nil {
		prober.client = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
			CheckRedirect: noRedirects,
		}
	}
	prober.h2c = &http.Client{
		CheckRedirect: noRedirects,
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
	return prober
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, target Target) ProbeResult {
	start := time.Now()
	result := ProbeResult{Target: target.Name, Time: start}
	fail := func(statusCode int, err error) ProbeResult {
		result.Latency = time.Since(start)
		result.StatusCode = statusCode
		result.Reason = Classify(statusCode, err)
		if err != nil {
			result.Err = err.Error()
		} else {
			result.Err = fmt.Sprintf("HTTP %d", statusCode)
		}
		return result
	}

	if target.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, target.ProbeTimeout)
		defer cancel()
	}
	client := p.client
	probeURL := target.ProbeURL()
	if rest, ok := strings.CutPrefix(probeURL, "h2c://"); ok {
		client = p.h2c
		probeURL = "http://" + rest
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, http.NoBody)
	if err != nil {
		return fail(0, err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, nil)
	}
	result.Success = true
	result.Latency = time.Since(start)
	result.StatusCode = resp.StatusCode
	return result
}
