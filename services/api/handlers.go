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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cmn "github.com/pzaino/reviewler/pkg/common"
	"github.com/pzaino/reviewler/pkg/crawler"
	"github.com/pzaino/reviewler/pkg/fetch"
	"github.com/pzaino/reviewler/pkg/review"
	"github.com/pzaino/reviewler/pkg/scraper"
	"github.com/pzaino/reviewler/pkg/vdi"

	"github.com/google/uuid"
)

// HealthCheck is the response of the health endpoint.
type HealthCheck struct {
	Status string `json:"status"`
}

// ReadyCheck is the response of the readiness endpoint.
type ReadyCheck struct {
	Status string `json:"status"`
}

// ScrapeRequest is the body of a scrape request.
type ScrapeRequest struct {
	URLs      []string `json:"urls"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// ScrapeResponse maps each requested URL to its scrape result.
type ScrapeResponse struct {
	JobID   string                   `json:"job_id"`
	Results map[string]review.Result `json:"results"`
}

// runScrape performs one company scrape. It is a variable so tests can
// substitute the crawl.
var runScrape = doScrape

func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	healthStatus := HealthCheck{
		Status: "OK",
	}
	handleErrorAndRespond(w, nil, healthStatus, "Error in health Check: ", http.StatusInternalServerError, http.StatusOK)
}

func readyCheckHandler(w http.ResponseWriter, _ *http.Request) {
	msg := ""
	switch getSysReady() {
	case 1:
		msg = "STARTING UP"
	case 2:
		msg = "READY"
	default:
		msg = "NOT READY"
	}

	readyStatus := ReadyCheck{
		Status: msg,
	}
	handleErrorAndRespond(w, nil, readyStatus, "Error in ready Check: ", http.StatusInternalServerError, http.StatusOK)
}

// scrapeHandler handles review scrape requests.
func scrapeHandler(w http.ResponseWriter, r *http.Request) {
	totalRequests.Add(1)

	if r.Method != http.MethodPost {
		totalErrors.Add(1)
		handleErrorAndRespond(w, fmt.Errorf("method %s not allowed", r.Method), nil, "Invalid scrape request: %v", http.StatusMethodNotAllowed, http.StatusOK)
		return
	}

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		totalErrors.Add(1)
		handleErrorAndRespond(w, err, nil, "Invalid scrape request body: %v", http.StatusBadRequest, http.StatusOK)
		return
	}
	defer r.Body.Close() //nolint:errcheck // Don't lint for error not checked, this is a defer statement

	dr, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		totalErrors.Add(1)
		handleErrorAndRespond(w, err, nil, "Invalid scrape date range: %v", http.StatusBadRequest, http.StatusOK)
		return
	}

	if len(req.URLs) == 0 {
		totalErrors.Add(1)
		handleErrorAndRespond(w, fmt.Errorf("at least one URL is required"), nil, "Invalid scrape request: %v", http.StatusBadRequest, http.StatusOK)
		return
	}

	resp := ScrapeResponse{
		JobID:   uuid.New().String(),
		Results: make(map[string]review.Result, len(req.URLs)),
	}

	configMutex.Lock()
	c := config
	configMutex.Unlock()

	timeout := time.Duration(c.API.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	// An unparseable company URL becomes a per-entry error object; the
	// remaining companies are scraped concurrently, as the original
	// endpoint does.
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, u := range req.URLs {
		u = strings.TrimSpace(u)
		if _, err := scraper.CompanyBaseURL(u); err != nil {
			cmn.DebugMsg(cmn.DbgLvlDebug, "Rejecting scrape URL %q: %v", u, err)
			resp.Results[u] = review.Result{
				Status:  review.StatusError,
				Message: fmt.Sprintf("invalid company URL: %v", err),
			}
			continue
		}

		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			result, err := runScrape(ctx, u, dr)
			if err != nil {
				cmn.DebugMsg(cmn.DbgLvlError, "Scrape of %s failed: %v", u, err)
				if result.Message == "" {
					result.Message = err.Error()
				}
			}
			mu.Lock()
			resp.Results[u] = result
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	failed := 0
	for _, res := range resp.Results {
		if res.Status == review.StatusError {
			failed++
		}
	}
	if failed == len(resp.Results) {
		totalErrors.Add(1)
	} else {
		totalSuccess.Add(1)
	}
	cmn.DebugMsg(cmn.DbgLvlInfo, "Scrape job %s completed: %d URL(s), %d failed", resp.JobID, len(resp.Results), failed)

	handleErrorAndRespond(w, nil, resp, "", http.StatusInternalServerError, http.StatusOK)
}

// doScrape runs the crawl of one company URL with a fresh fetcher and, when
// the VDI is reachable, a fresh browser session.
func doScrape(ctx context.Context, companyURL string, dr review.DateRange) (review.Result, error) {
	configMutex.Lock()
	c := config
	configMutex.Unlock()

	fetcher, err := fetch.New(c.HTTP)
	if err != nil {
		return review.Result{Status: review.StatusError}, fmt.Errorf("creating fetcher: %w", err)
	}

	var br crawler.Browser
	sess, err := vdi.NewSession(c.Selenium, time.Duration(c.Crawler.Timeout)*time.Second)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "VDI session unavailable, continuing over plain HTTP: %v", err)
	} else {
		br = sess
		defer func() {
			if err := sess.Close(); err != nil {
				cmn.DebugMsg(cmn.DbgLvlDebug, "Closing VDI session: %v", err)
			}
		}()
	}

	return crawler.CrawlCompany(ctx, companyURL, dr, br, fetcher, c)
}

// parseDateRange validates and normalizes the optional date bounds. The end
// bound is pushed to the end of its day so it stays inclusive.
func parseDateRange(start, end string) (review.DateRange, error) {
	var dr review.DateRange

	if strings.TrimSpace(start) != "" {
		t, err := cmn.ParseDate(start)
		if err != nil {
			return dr, fmt.Errorf("invalid start_date %q: %w", start, err)
		}
		dr.Start = t
	}
	if strings.TrimSpace(end) != "" {
		t, err := cmn.ParseDate(end)
		if err != nil {
			return dr, fmt.Errorf("invalid end_date %q: %w", end, err)
		}
		dr.End = cmn.EndOfDay(t)
	}
	if !dr.Start.IsZero() && !dr.End.IsZero() && dr.End.Before(dr.Start) {
		return dr, fmt.Errorf("end_date %q precedes start_date %q", end, start)
	}
	return dr, nil
}

// handleErrorAndRespond encapsulates common error handling and JSON response logic.
func handleErrorAndRespond(w http.ResponseWriter, err error, results interface{}, errMsg string, errCode int, successCode int) {
	var response interface{}

	if successCode == 0 {
		successCode = http.StatusOK
	}

	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug3, errMsg, err)
		response = map[string]interface{}{
			"error":   err.Error(),
			"message": errMsg,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(errCode)
	} else {
		response = results
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successCode)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug3, "Error encoding JSON response: %v", err)
		cmn.DebugMsg(cmn.DbgLvlDebug3, "Original Results: %+v", results)

		fallbackResponse := map[string]string{"error": "Internal Server Error"}
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(fallbackResponse)
	}
}
