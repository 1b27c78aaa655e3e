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

// Package scraper parses company review pages: question blocks, review
// entries with their publish dates, company details and the next-page
// link of both category pages and per-question review sub-pages.
package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	cmn "github.com/pzaino/reviewler/pkg/common"
	cfg "github.com/pzaino/reviewler/pkg/config"
	"github.com/pzaino/reviewler/pkg/review"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// NextPageSelectors are the candidate "next page" anchors, tried in order.
// The first selector that yields a usable link wins.
var NextPageSelectors = []string{
	"a.qa-PaginationPageLink-Next",
	"a.pagination-link[rel='next']",
	"a[aria-label*='Next Page' i]",
	"a[title*='Next Page' i]",
	"li.pagination-next > a",
	"a.pagination-next",
	"a.NextPageLink",
	"nav[aria-label*='pagination' i] li:last-child a[href]",
	".page-next > a",
	"a.next",
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// paginationClassHints mark the container elements that scope a next-page
// search to a segment's own pagination controls.
var paginationClassHints = []string{"pagination", "pager", "page-links"}

// QuestionBlock is one question found on a category page together with the
// reviews listed under it on that page and, when the block paginates, the
// URL of its next review sub-page.
type QuestionBlock struct {
	QuestionText string
	Reviews      []review.Review
	NextPageURL  string
}

// Parse builds a document from raw HTML.
func Parse(htmlContent string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
}

// QuestionBlocks extracts the question blocks of a category page. Blocks
// without a question title are skipped. pageURL is used to resolve each
// block's own next-page link.
func QuestionBlocks(doc *goquery.Document, pageURL string) []QuestionBlock {
	var blocks []QuestionBlock
	doc.Find("div.reviewsList").Each(func(_ int, s *goquery.Selection) {
		question := strings.TrimSpace(s.Find("h2.section-subtitle").First().Text())
		if question == "" {
			return
		}
		blocks = append(blocks, QuestionBlock{
			QuestionText: question,
			Reviews:      reviewsIn(s),
			NextPageURL:  NextPageURLIn(s, pageURL),
		})
	})
	return blocks
}

// ParseReviews extracts every review entry of a document. It is used on
// per-question sub-pages, where the entries are not nested under a
// question block.
func ParseReviews(doc *goquery.Document) []review.Review {
	return reviewsIn(doc.Selection)
}

// reviewsIn collects the review entries under the given selection. Entries
// without a quote or without a parseable publish date are dropped.
func reviewsIn(sel *goquery.Selection) []review.Review {
	var reviews []review.Review
	sel.Find("div.cppRH").Each(func(_ int, s *goquery.Selection) {
		text := strings.ReplaceAll(strings.TrimSpace(s.Find("p.cppRH-review-quote").First().Text()), "\u0000", "")
		if text == "" {
			return
		}
		date, ok := reviewDate(s)
		if !ok {
			cmn.DebugMsg(cmn.DbgLvlDebug2, "Skipping review without a parseable date: %.60q", text)
			return
		}
		reviews = append(reviews, review.Review{Text: text, Date: date})
	})
	return reviews
}

// reviewDate pulls the publish date out of the review citation. The
// canonical location is a meta tag with itemprop=datePublished; some page
// variants drop the itemprop, so any meta whose content is exactly a
// YYYY-MM-DD date is accepted as fallback. Anything else is dropped.
func reviewDate(s *goquery.Selection) (time.Time, bool) {
	cite := s.Find("cite.cppRH-review-cite").First()
	if cite.Length() == 0 || len(cite.Nodes) == 0 {
		return time.Time{}, false
	}

	node := htmlquery.FindOne(cite.Nodes[0], ".//meta[@itemprop='datePublished']")
	if node == nil {
		for _, meta := range htmlquery.Find(cite.Nodes[0], ".//meta[@content]") {
			if dateRe.MatchString(htmlquery.SelectAttr(meta, "content")) {
				node = meta
				break
			}
		}
	}
	if node == nil {
		return time.Time{}, false
	}

	content := strings.TrimSpace(htmlquery.SelectAttr(node, "content"))
	t, err := time.Parse(cmn.DateOnlyFormat, content)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FilterByDate returns the reviews whose publish date falls inside the
// range. An unbounded range returns the input unchanged.
func FilterByDate(reviews []review.Review, dr review.DateRange) []review.Review {
	if dr.IsZero() {
		return reviews
	}
	var out []review.Review
	for _, r := range reviews {
		if dr.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// NextPageURL resolves the next-page link of the document, or returns ""
// when the document is on its last page.
func NextPageURL(doc *goquery.Document, pageURL string) string {
	return NextPageURLIn(doc.Selection, pageURL)
}

// NextPageURLIn resolves the next-page link scoped to the given selection,
// which for question blocks limits the search to the block's own
// pagination. When the segment carries a recognizable pagination container
// the search is confined to it. Candidates that point backwards, are
// disabled or carry no real destination are rejected.
func NextPageURLIn(scope *goquery.Selection, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		cmn.DebugMsg(cmn.DbgLvlError, "Error parsing page URL %s: %v", pageURL, err)
		return ""
	}

	scope = paginationScope(scope)
	for _, selector := range NextPageSelectors {
		var found string
		scope.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := usableNextLink(s)
			if !ok {
				return true
			}
			found = href
			return false
		})
		if found != "" {
			ref, err := url.Parse(found)
			if err != nil {
				cmn.DebugMsg(cmn.DbgLvlDebug, "Error parsing next-page href %s: %v", found, err)
				continue
			}
			return base.ResolveReference(ref).String()
		}
	}
	return ""
}

// paginationScope narrows the search to the segment's first pagination
// container (a nav, ul or div whose class hints at pagination). A segment
// without one is searched whole.
func paginationScope(scope *goquery.Selection) *goquery.Selection {
	found := scope
	scope.Find("nav, ul, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, hint := range paginationClassHints {
			if strings.Contains(class, hint) {
				found = s
				return false
			}
		}
		return true
	})
	return found
}

// usableNextLink vets a next-page candidate: it must not be a "previous"
// link in disguise, must not be disabled and must carry a real href.
func usableNextLink(s *goquery.Selection) (string, bool) {
	label := strings.ToLower(strings.Join([]string{
		s.AttrOr("aria-label", ""),
		s.AttrOr("rel", ""),
		s.Text(),
	}, " "))
	if strings.Contains(label, "prev") {
		return "", false
	}

	class := strings.ToLower(s.AttrOr("class", ""))
	if strings.Contains(class, "disabled") || strings.Contains(class, "inactive") {
		return "", false
	}
	if _, ok := s.Attr("disabled"); ok {
		return "", false
	}
	if strings.EqualFold(s.AttrOr("aria-disabled", ""), "true") {
		return "", false
	}

	href := strings.TrimSpace(s.AttrOr("href", ""))
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	return href, true
}

// LooksLikeCategoryPage reports whether the document still carries question
// blocks. Review sub-page pagination sometimes leads back to a category
// page; that is the signal to stop walking the sub-page chain.
func LooksLikeCategoryPage(doc *goquery.Document) bool {
	return doc.Find("h2.section-subtitle").Length() > 0
}

// reviewCategorySet guards against a category heading being mistaken for
// the company name.
var reviewCategorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(cfg.DefaultCategories))
	for _, c := range cfg.DefaultCategories {
		m[c] = struct{}{}
	}
	return m
}()

// ExtractCompanyInfo pulls the company name off the page: the h1 first,
// then the page title, both with the review-page suffixes stripped. When
// neither yields a usable candidate the name is derived from the URL slug
// and a status note records the degradation.
func ExtractCompanyInfo(doc *goquery.Document, pageURL string) review.CompanyInfo {
	info := review.CompanyInfo{SourceURL: pageURL}

	name := companyNameCandidate(doc.Find("h1").First().Text())
	if name == "" {
		name = companyNameCandidate(doc.Find("title").First().Text())
	}
	if name == "" {
		name = companyNameFromSlug(SlugFromURL(pageURL))
		info.StatusNote = "company name derived from URL"
	}
	info.CompanyName = name
	return info
}

// companyNameCandidate strips the " Reviews" and site suffixes off a page
// heading and rejects candidates that are a review category name or too
// short to be a company name.
func companyNameCandidate(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.Index(name, " Reviews"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if i := strings.Index(name, " | Comparably"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if len(name) <= 3 {
		return ""
	}
	if _, isCategory := reviewCategorySet[strings.ToLower(name)]; isCategory {
		return ""
	}
	return name
}

// LooksBlocked reports whether the document is one of the site's error or
// anti-bot pages rather than review content.
func LooksBlocked(doc *goquery.Document) bool {
	title := doc.Find("title").First().Text()
	if strings.Contains(title, "Error") || strings.Contains(title, "Not Found") {
		return true
	}
	return strings.Contains(doc.Text(), "Access Denied")
}

// SlugFromURL extracts the company slug from a reviews URL, e.g.
// "acme-corp" from https://www.comparably.com/companies/acme-corp/reviews.
func SlugFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "companies" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1]
	}
	return ""
}

func companyNameFromSlug(slug string) string {
	if slug == "" {
		return "Unknown Company"
	}
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// CompanyBaseURL normalizes a company reviews URL to its canonical base,
// e.g. https://www.comparably.com/companies/acme-corp. The input must be
// an absolute http(s) URL with a /companies/<slug> path; trailing segments
// such as /reviews are dropped.
func CompanyBaseURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parsing company URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("company URL %q must be an absolute http(s) URL", rawURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "companies" || parts[1] == "" {
		return "", fmt.Errorf("company URL %q must have a /companies/<slug> path", rawURL)
	}
	return fmt.Sprintf("%s://%s/companies/%s", u.Scheme, u.Host, parts[1]), nil
}

// ReviewsURL is the reviews landing page under the canonical company base
// URL.
func ReviewsURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/reviews"
}

// CategoryURL builds the reviews URL of a named category off the canonical
// company base URL.
func CategoryURL(baseURL, category string) string {
	return strings.TrimRight(baseURL, "/") + "/reviews/" + category
}
