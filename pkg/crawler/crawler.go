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

// Package crawler implements the review collection walk: it drives the
// browser session through the company reviews page, then walks the three
// pagination levels (category pages, question blocks, review sub-pages)
// over plain HTTP, deduplicating and merging as it goes.
package crawler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"
	"github.com/pzaino/reviewler/pkg/fetch"
	"github.com/pzaino/reviewler/pkg/review"
	"github.com/pzaino/reviewler/pkg/scraper"
)

// reviewContentSelectors are the elements whose presence means the reviews
// page has rendered.
var reviewContentSelectors = []string{"div.reviewsList", "div.cppRH"}

var randomDelayRe = regexp.MustCompile(`^random\(\s*(\d+(?:\.\d+)?)\s*,\s*(\d+(?:\.\d+)?)\s*\)$`)

// config is the package default, used when CrawlCompany receives an empty
// configuration.
var config cfg.Config

// StartCrawler is responsible for initializing the crawler
func StartCrawler(cf cfg.Config) {
	config = cf
}

// CrawlCompany collects every review of the company behind companyURL,
// walking all configured categories concurrently and merging the
// per-category results into one Result. The URL is normalized to the
// canonical /companies/<slug> base first.
func CrawlCompany(ctx context.Context, companyURL string, dr review.DateRange, br Browser, fetcher fetch.Fetcher, c cfg.Config) (review.Result, error) {
	if cfg.IsEmpty(c) {
		c = config
	}

	baseURL, err := scraper.CompanyBaseURL(companyURL)
	if err != nil {
		return review.Result{Status: review.StatusError, Message: err.Error()}, err
	}

	info := openCompanyPage(baseURL, br, fetcher)

	pctx := &processContext{
		config:    c,
		fetcher:   fetcher,
		dateRange: dr,
		baseURL:   baseURL,
	}

	categories := c.CategoryList()
	pctx.jobs = make(chan categoryJob, len(categories))
	pctx.results = make(chan categoryResult, len(categories))

	workers := c.Crawler.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(categories) {
		workers = len(categories)
	}
	for w := 1; w <= workers; w++ {
		pctx.wg.Add(1)
		go worker(ctx, pctx, w)
	}
	for _, cat := range categories {
		pctx.jobs <- categoryJob{
			category:    cat,
			categoryURL: scraper.CategoryURL(baseURL, cat),
		}
	}
	close(pctx.jobs)
	pctx.wg.Wait()
	close(pctx.results)

	byCategory := make(map[string][]review.Question, len(categories))
	errCount := 0
	for res := range pctx.results {
		if res.err != nil {
			cmn.DebugMsg(cmn.DbgLvlError, "Category %s failed: %v", res.category, res.err)
			errCount++
			continue
		}
		byCategory[res.category] = res.questions
	}

	// Merge in the configured category order so the output is stable.
	var questions []review.Question
	for _, cat := range categories {
		questions = review.MergeQuestions(questions, byCategory[cat])
	}

	result := review.Result{
		Data: review.ResultData{
			CompanyInfo: info,
			Reviews:     questions,
		},
	}
	switch {
	case errCount == len(categories) && len(questions) == 0:
		result.Status = review.StatusError
		result.Message = fmt.Sprintf("all %d categories failed", errCount)
		return result, fmt.Errorf("all %d categories failed for %s", errCount, baseURL)
	case len(questions) == 0:
		result.Status = review.StatusPartialNoReviews
	default:
		result.Status = review.StatusSuccess
	}
	return result, nil
}

// openCompanyPage drives the browser through the landing page: popups,
// press-and-hold check and the company details. The reviews landing page
// is tried first; a blocked or error page falls back to the plain base
// URL. The session cookies and user agent are then handed to the HTTP
// fetcher so the rest of the walk presents the same identity. A dead
// browser degrades to a URL-derived company name rather than failing the
// crawl.
func openCompanyPage(baseURL string, br Browser, fetcher fetch.Fetcher) review.CompanyInfo {
	fallback := review.CompanyInfo{
		CompanyName: scraper.SlugFromURL(baseURL),
		SourceURL:   baseURL,
		StatusNote:  "company page not reachable, name derived from URL",
	}
	if br == nil {
		return fallback
	}

	doc, err := landingDoc(br, scraper.ReviewsURL(baseURL))
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Reviews landing page failed (%v), retrying the base URL", err)
		doc, err = landingDoc(br, baseURL)
	}
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Failed to open company page %s: %v", baseURL, err)
		return fallback
	}

	seedFetcher(baseURL, br, fetcher)
	return scraper.ExtractCompanyInfo(doc, baseURL)
}

// landingDoc loads one landing-page candidate and returns its parsed
// document. Blocked and error pages count as failures so the caller can
// retry the plain base URL.
func landingDoc(br Browser, pageURL string) (*goquery.Document, error) {
	if err := br.Navigate(pageURL); err != nil {
		return nil, err
	}
	br.DismissPopups()
	if err := br.SolvePressAndHold(); err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Press-and-hold attempt failed: %v", err)
	}
	if err := br.WaitForAny(reviewContentSelectors...); err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Review content did not appear on %s: %v", pageURL, err)
	}

	src, err := br.PageSource()
	if err != nil {
		return nil, fmt.Errorf("reading page source: %w", err)
	}
	doc, err := scraper.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	if scraper.LooksBlocked(doc) {
		return nil, fmt.Errorf("blocked or error page at %s", pageURL)
	}
	return doc, nil
}

// seedFetcher copies the browser session identity into the HTTP fetcher.
func seedFetcher(baseURL string, br Browser, fetcher fetch.Fetcher) {
	hf, ok := fetcher.(*fetch.HTTPFetcher)
	if !ok {
		return
	}
	hf.SetUserAgent(br.UserAgent())
	cookies, err := br.Cookies()
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Failed to read browser cookies: %v", err)
		return
	}
	if err := hf.SeedCookies(baseURL, cookies); err != nil {
		cmn.DebugMsg(cmn.DbgLvlDebug, "Failed to seed fetcher cookies: %v", err)
	}
}

// worker pulls category jobs off the queue until it is drained.
func worker(ctx context.Context, pctx *processContext, id int) {
	defer pctx.wg.Done()
	for job := range pctx.jobs {
		if ctx.Err() != nil {
			pctx.results <- categoryResult{category: job.category, err: ctx.Err()}
			continue
		}
		cmn.DebugMsg(cmn.DbgLvlDebug, "Worker %d: processing category %s", id, job.category)
		questions, err := crawlCategory(ctx, pctx, job)
		pctx.results <- categoryResult{category: job.category, questions: questions, err: err}
		cmn.DebugMsg(cmn.DbgLvlDebug, "Worker %d: finished category %s (%d questions)", id, job.category, len(questions))
		if pctx.config.Crawler.Delay != "0" {
			time.Sleep(time.Duration(getDelay(pctx.config.Crawler.Delay) * float64(time.Second)))
		}
	}
}

// crawlCategory walks the category's pages, and for every question block on
// each page, the block's review sub-pages. Dedup state spans the whole
// category, so a review repeated on a later page or sub-page is kept once.
func crawlCategory(ctx context.Context, pctx *processContext, job categoryJob) ([]review.Question, error) {
	acc := review.NewAccumulator()

	maxPages := pctx.config.Crawler.MaxCategoryPages
	if maxPages <= 0 {
		maxPages = 1
	}

	pageURL := job.categoryURL
	referer := pctx.baseURL
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return acc.Questions(), err
		}

		body, finalURL, err := pctx.fetcher.Fetch(ctx, pageURL, referer)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("fetching category page: %w", err)
			}
			cmn.DebugMsg(cmn.DbgLvlError, "Category %s page %d fetch failed: %v", job.category, page, err)
			break
		}
		pagesFetched.WithLabelValues(job.category).Inc()

		doc, err := scraper.Parse(body)
		if err != nil {
			return acc.Questions(), fmt.Errorf("parsing category page: %w", err)
		}

		blocks := scraper.QuestionBlocks(doc, finalURL)
		if len(blocks) == 0 {
			cmn.DebugMsg(cmn.DbgLvlDebug, "Category %s page %d has no question blocks, stopping", job.category, page)
			break
		}

		blockNextURLs := make(map[string]struct{}, len(blocks))
		for _, block := range blocks {
			if block.NextPageURL != "" {
				blockNextURLs[block.NextPageURL] = struct{}{}
			}
			collect(pctx, acc, job.category, block.QuestionText, block.Reviews)
			if block.NextPageURL != "" {
				crawlSubPages(ctx, pctx, acc, job.category, block.QuestionText, block.NextPageURL, finalURL)
			}
		}

		next := scraper.NextPageURL(doc, finalURL)
		// A question block's own pagination must not be mistaken for the
		// category pagination.
		if _, isBlockLink := blockNextURLs[next]; isBlockLink {
			next = ""
		}
		if next == "" || next == pageURL {
			break
		}
		referer = pageURL
		pageURL = next
	}

	return acc.Questions(), nil
}

// crawlSubPages walks one question block's review sub-pages until the chain
// runs out, goes stale or escapes into unrelated content.
func crawlSubPages(ctx context.Context, pctx *processContext, acc *review.Accumulator, category, questionText, firstURL, referer string) {
	maxPages := pctx.config.Crawler.MaxReviewPages
	if maxPages <= 0 {
		return
	}

	pageURL := firstURL
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return
		}

		body, finalURL, err := pctx.fetcher.Fetch(ctx, pageURL, referer)
		if err != nil {
			cmn.DebugMsg(cmn.DbgLvlDebug, "Sub-page %d of %q fetch failed: %v", page, questionText, err)
			return
		}
		pagesFetched.WithLabelValues(category).Inc()

		doc, err := scraper.Parse(body)
		if err != nil {
			cmn.DebugMsg(cmn.DbgLvlDebug, "Sub-page %d of %q parse failed: %v", page, questionText, err)
			return
		}

		var reviews []review.Review
		var next string
		if scraper.LooksLikeCategoryPage(doc) {
			// Pagination led back to a full category page. Usable only when
			// it still carries the block we are walking; anything else means
			// the chain escaped.
			block, ok := blockOnPage(doc, questionText, finalURL)
			if !ok {
				cmn.DebugMsg(cmn.DbgLvlDebug, "Sub-page pagination of %q escaped, stopping", questionText)
				return
			}
			reviews = block.Reviews
			next = block.NextPageURL
		} else {
			reviews = scraper.ParseReviews(doc)
			next = scraper.NextPageURL(doc, finalURL)
		}

		if len(reviews) == 0 {
			return
		}
		collect(pctx, acc, category, questionText, reviews)

		if next == "" || next == pageURL {
			return
		}
		referer = pageURL
		pageURL = next
	}
}

// collect runs one batch of parsed reviews through dedup, the date filter
// and the merge.
func collect(pctx *processContext, acc *review.Accumulator, category, questionText string, reviews []review.Review) {
	fresh := acc.Filter(questionText, reviews)
	dated := scraper.FilterByDate(fresh, pctx.dateRange)
	if len(dated) == 0 {
		return
	}
	reviewsCollected.WithLabelValues(category).Add(float64(len(dated)))
	acc.Merge(category, questionText, dated)
}

// blockOnPage finds the question block with the given text on a category
// page.
func blockOnPage(doc *goquery.Document, questionText, pageURL string) (scraper.QuestionBlock, bool) {
	for _, b := range scraper.QuestionBlocks(doc, pageURL) {
		if b.QuestionText == questionText {
			return b, true
		}
	}
	return scraper.QuestionBlock{}, false
}

// getDelay parses the inter-job delay setting: a plain number of seconds
// or "random(min,max)".
func getDelay(setting string) float64 {
	setting = strings.TrimSpace(setting)
	if v, err := strconv.ParseFloat(setting, 64); err == nil {
		if v < 0 {
			return 0
		}
		return v
	}
	if m := randomDelayRe.FindStringSubmatch(setting); m != nil {
		minV, _ := strconv.ParseFloat(m[1], 64)
		maxV, _ := strconv.ParseFloat(m[2], 64)
		if maxV <= minV {
			return minV
		}
		return minV + rand.Float64()*(maxV-minV) //nolint:gosec // jitter, not crypto
	}
	return 1
}
