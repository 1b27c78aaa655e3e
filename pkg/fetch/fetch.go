// Copyright 2023 Paolo Fabio Zaino
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

// Package fetch provides the plain-HTTP page fetcher used for question
// sub-page pagination, where a full browser round-trip is not needed. The
// fetcher reuses the browser session's cookies and user agent so the
// anti-bot layer sees one consistent client.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Fetcher retrieves a page body. Implementations must honor the context.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL, referer string) (body string, finalURL string, err error)
}

// HTTPFetcher is the resty-backed Fetcher with a cloudflare bypass
// transport and a client-side rate limiter.
type HTTPFetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// New builds an HTTPFetcher from the HTTP config section.
func New(c cfg.HTTP) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(time.Duration(c.Timeout) * time.Second)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if c.ProxyURL != "" {
		client.SetProxy(c.ProxyURL)
	}

	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	ua := c.UserAgent
	if ua == "" {
		ua = cmn.RandomUserAgent("chrome")
	}
	client.SetHeader("User-Agent", ua)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &HTTPFetcher{
		client:  client,
		limiter: parseRateLimit(c.RateLimit),
	}, nil
}

// SetUserAgent pins the User-Agent header, normally to the one the browser
// session reports.
func (f *HTTPFetcher) SetUserAgent(ua string) {
	if ua != "" {
		f.client.SetHeader("User-Agent", ua)
	}
}

// SeedCookies imports cookies (typically from the browser session) into the
// fetcher's jar under the given site URL.
func (f *HTTPFetcher) SeedCookies(siteURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(siteURL)
	if err != nil {
		return fmt.Errorf("parsing site URL: %w", err)
	}
	f.client.GetClient().Jar.SetCookies(u, cookies)
	return nil
}

// Fetch retrieves the page at pageURL and returns its body together with
// the final URL after redirects. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL, referer string) (string, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	req := f.client.R().SetContext(ctx)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}

	resp, err := req.Get(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("fetching %s: unexpected status %d", pageURL, resp.StatusCode())
	}

	finalURL := pageURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}
	return string(resp.Body()), finalURL, nil
}

// parseRateLimit turns a "requests_per_second,burst" string into a limiter.
// Malformed values fall back to 1 rps with a burst of 2.
func parseRateLimit(s string) *rate.Limiter {
	rps, burst := 1.0, 2
	parts := strings.Split(s, ",")
	if len(parts) == 2 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err == nil && v > 0 {
			rps = v
		}
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && v > 0 {
			burst = v
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
