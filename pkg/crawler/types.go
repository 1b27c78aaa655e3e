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

package crawler

import (
	"net/http"
	"sync"

	cfg "github.com/pzaino/reviewler/pkg/config"
	"github.com/pzaino/reviewler/pkg/fetch"
	"github.com/pzaino/reviewler/pkg/review"
)

// Browser is the subset of the VDI session the crawl needs. It is an
// interface so tests can run the walk without a WebDriver.
type Browser interface {
	Navigate(pageURL string) error
	WaitForAny(selectors ...string) error
	PageSource() (string, error)
	DismissPopups() int
	SolvePressAndHold() error
	UserAgent() string
	Cookies() ([]*http.Cookie, error)
	Close() error
}

// categoryJob is one review category queued for a worker.
type categoryJob struct {
	category    string
	categoryURL string
}

// categoryResult is the outcome of crawling one category.
type categoryResult struct {
	category  string
	questions []review.Question
	err       error
}

// processContext carries the shared state of one company crawl.
type processContext struct {
	config    cfg.Config
	fetcher   fetch.Fetcher
	dateRange review.DateRange
	baseURL   string

	wg      sync.WaitGroup
	jobs    chan categoryJob
	results chan categoryResult
}
