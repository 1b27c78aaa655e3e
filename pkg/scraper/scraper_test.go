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

package scraper

import (
	"testing"
	"time"

	"github.com/pzaino/reviewler/pkg/review"
)

const categoryPageHTML = `
<html><body>
<h1>Acme Corp</h1>
<div class="reviewsList">
  <h2 class="section-subtitle">How is leadership at Acme?</h2>
  <div class="cppRH">
    <p class="cppRH-review-quote">Leadership listens to the team.</p>
    <cite class="cppRH-review-cite">
      <meta itemprop="datePublished" content="2023-05-01">
    </cite>
  </div>
  <div class="cppRH">
    <p class="cppRH-review-quote">Too many reorgs.</p>
    <cite class="cppRH-review-cite">
      <meta content="2022-11-15">
    </cite>
  </div>
  <div class="cppRH">
    <p class="cppRH-review-quote">No date on this one.</p>
    <cite class="cppRH-review-cite"></cite>
  </div>
  <div class="cppRH">
    <p class="cppRH-review-quote">Timestamp, not a plain date.</p>
    <cite class="cppRH-review-cite">
      <meta itemprop="datePublished" content="2023-04-01T00:00:00Z">
    </cite>
  </div>
  <a class="qa-PaginationPageLink-Next" href="?question=leadership&amp;page=2">Next</a>
</div>
<div class="reviewsList">
  <h2 class="section-subtitle">What about compensation?</h2>
  <div class="cppRH">
    <p class="cppRH-review-quote">Pay is fair.</p>
    <cite class="cppRH-review-cite">
      <meta itemprop="datePublished" content="2023-01-20">
    </cite>
  </div>
</div>
<div class="reviewsList">
  <div class="cppRH">
    <p class="cppRH-review-quote">Orphan block, no question title.</p>
    <cite class="cppRH-review-cite">
      <meta itemprop="datePublished" content="2023-02-02">
    </cite>
  </div>
</div>
</body></html>`

const subPageHTML = `
<html><body>
<div class="cppRH">
  <p class="cppRH-review-quote">Flexible hours.</p>
  <cite class="cppRH-review-cite">
    <meta itemprop="datePublished" content="2023-03-10">
  </cite>
</div>
<div class="cppRH">
  <p class="cppRH-review-quote"></p>
  <cite class="cppRH-review-cite">
    <meta itemprop="datePublished" content="2023-03-11">
  </cite>
</div>
</body></html>`

func TestQuestionBlocks(t *testing.T) {
	doc, err := Parse(categoryPageHTML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	blocks := QuestionBlocks(doc, "https://www.comparably.com/companies/acme/reviews/leadership")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 question blocks, got %d", len(blocks))
	}

	if blocks[0].QuestionText != "How is leadership at Acme?" {
		t.Errorf("unexpected question text: %q", blocks[0].QuestionText)
	}
	// The undated entry and the non-date timestamp must be dropped.
	if len(blocks[0].Reviews) != 2 {
		t.Fatalf("expected 2 reviews in first block, got %d", len(blocks[0].Reviews))
	}
	if blocks[0].Reviews[0].Text != "Leadership listens to the team." {
		t.Errorf("unexpected review text: %q", blocks[0].Reviews[0].Text)
	}
	if got := blocks[0].Reviews[0].Date.Format("2006-01-02"); got != "2023-05-01" {
		t.Errorf("unexpected review date: %s", got)
	}
	// Fallback meta without itemprop but with a date-shaped content.
	if got := blocks[0].Reviews[1].Date.Format("2006-01-02"); got != "2022-11-15" {
		t.Errorf("unexpected fallback date: %s", got)
	}

	if want := "https://www.comparably.com/companies/acme/reviews/leadership?question=leadership&page=2"; blocks[0].NextPageURL != want {
		t.Errorf("block next-page URL = %q, expected %q", blocks[0].NextPageURL, want)
	}

	if blocks[1].QuestionText != "What about compensation?" {
		t.Errorf("unexpected second question: %q", blocks[1].QuestionText)
	}
	if blocks[1].NextPageURL != "" {
		t.Errorf("unexpected next-page URL on unpaginated block: %q", blocks[1].NextPageURL)
	}
}

func TestParseReviewsSubPage(t *testing.T) {
	doc, err := Parse(subPageHTML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	reviews := ParseReviews(doc)
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review (empty quote dropped), got %d", len(reviews))
	}
	if reviews[0].Text != "Flexible hours." {
		t.Errorf("unexpected review text: %q", reviews[0].Text)
	}
}

func TestParseReviewsStripsNulBytes(t *testing.T) {
	html := "<html><body><div class=\"cppRH\">" +
		"<p class=\"cppRH-review-quote\">Solid\u0000 team</p>" +
		"<cite class=\"cppRH-review-cite\"><meta itemprop=\"datePublished\" content=\"2023-03-10\"></cite>" +
		"</div></body></html>"
	doc, err := Parse(html)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	reviews := ParseReviews(doc)
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(reviews))
	}
	if reviews[0].Text != "Solid team" {
		t.Errorf("NUL byte not stripped, got %q", reviews[0].Text)
	}
}

func TestFilterByDate(t *testing.T) {
	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	reviews := []review.Review{
		{Text: "old", Date: day("2020-01-01")},
		{Text: "mid", Date: day("2022-06-15")},
		{Text: "new", Date: day("2024-03-01")},
	}

	out := FilterByDate(reviews, review.DateRange{Start: day("2022-01-01"), End: day("2023-12-31")})
	if len(out) != 1 || out[0].Text != "mid" {
		t.Errorf("expected only mid to survive, got %v", out)
	}

	all := FilterByDate(reviews, review.DateRange{})
	if len(all) != 3 {
		t.Errorf("unbounded range must keep everything, got %d", len(all))
	}
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			"primary selector",
			`<a class="qa-PaginationPageLink-Next" href="/companies/acme/reviews?page=2">Next</a>`,
			"https://www.comparably.com/companies/acme/reviews?page=2",
		},
		{
			"rel next",
			`<a class="pagination-link" rel="next" href="?page=3">More</a>`,
			"https://www.comparably.com/companies/acme/reviews?page=3",
		},
		{
			"skips prev link",
			`<a class="qa-PaginationPageLink-Next" aria-label="Previous Page" href="?page=1">Prev</a>
			 <a class="qa-PaginationPageLink-Next" href="?page=3">Next</a>`,
			"https://www.comparably.com/companies/acme/reviews?page=3",
		},
		{
			"skips disabled",
			`<a class="pagination-next disabled" href="?page=4">Next</a>`,
			"",
		},
		{
			"skips empty href",
			`<a class="a_next qa-PaginationPageLink-Next" href="#">Next</a>`,
			"",
		},
		{
			"skips javascript href",
			`<a class="NextPageLink" href="javascript:void(0)">Next</a>`,
			"",
		},
		{
			"absolute href kept as-is",
			`<a class="next" href="https://www.comparably.com/companies/acme/reviews/leadership?page=2">Next</a>`,
			"https://www.comparably.com/companies/acme/reviews/leadership?page=2",
		},
		{
			"no pagination",
			`<p>just content</p>`,
			"",
		},
		{
			"pagination container wins over outside links",
			`<div class="pagination"><a class="next" href="?page=5">Next</a></div>
			 <a class="qa-PaginationPageLink-Next" href="?page=9">Next</a>`,
			"https://www.comparably.com/companies/acme/reviews?page=5",
		},
		{
			"exhausted container ignores outside links",
			`<ul class="cp-Pagination"><li><a class="next disabled" href="?page=6">Next</a></li></ul>
			 <a class="qa-PaginationPageLink-Next" href="?page=9">Next</a>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse("<html><body>" + tt.html + "</body></html>")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			got := NextPageURL(doc, "https://www.comparably.com/companies/acme/reviews")
			if got != tt.expected {
				t.Errorf("NextPageURL = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestLooksLikeCategoryPage(t *testing.T) {
	catDoc, err := Parse(categoryPageHTML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !LooksLikeCategoryPage(catDoc) {
		t.Errorf("category page not recognized")
	}

	subDoc, err := Parse(subPageHTML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if LooksLikeCategoryPage(subDoc) {
		t.Errorf("sub-page misidentified as category page")
	}
}

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected bool
	}{
		{"review content", categoryPageHTML, false},
		{"error title", `<html><head><title>Error 404</title></head><body></body></html>`, true},
		{"not found title", `<html><head><title>Page Not Found</title></head><body></body></html>`, true},
		{"access denied body", `<html><body><h1>Access Denied</h1></body></html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.html)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := LooksBlocked(doc); got != tt.expected {
				t.Errorf("LooksBlocked = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestExtractCompanyInfo(t *testing.T) {
	doc, err := Parse(categoryPageHTML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	info := ExtractCompanyInfo(doc, "https://www.comparably.com/companies/acme-corp/reviews")
	if info.CompanyName != "Acme Corp" {
		t.Errorf("unexpected company name: %q", info.CompanyName)
	}
	if info.StatusNote != "" {
		t.Errorf("unexpected status note: %q", info.StatusNote)
	}

	bare, err := Parse("<html><body><p>nothing here</p></body></html>")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	info = ExtractCompanyInfo(bare, "https://www.comparably.com/companies/acme-corp/reviews")
	if info.CompanyName != "Acme Corp" {
		t.Errorf("slug fallback produced %q", info.CompanyName)
	}
	if info.StatusNote == "" {
		t.Errorf("expected a status note on slug fallback")
	}
}

func TestExtractCompanyInfoNameCandidates(t *testing.T) {
	pageURL := "https://www.comparably.com/companies/globex-inc/reviews"
	tests := []struct {
		name     string
		html     string
		expected string
		withNote bool
	}{
		{
			"h1 reviews suffix stripped",
			`<h1>Globex Reviews</h1>`,
			"Globex",
			false,
		},
		{
			"category h1 falls back to the title",
			`<head><title>Globex Reviews | Comparably</title></head><body><h1>Leadership</h1></body>`,
			"Globex",
			false,
		},
		{
			"short h1 falls back to the title",
			`<head><title>Globex | Comparably</title></head><body><h1>FAQ</h1></body>`,
			"Globex",
			false,
		},
		{
			"category title falls back to the slug",
			`<head><title>Outlook</title></head><body><h1>Team</h1></body>`,
			"Globex Inc",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse("<html>" + tt.html + "</html>")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			info := ExtractCompanyInfo(doc, pageURL)
			if info.CompanyName != tt.expected {
				t.Errorf("company name = %q, expected %q", info.CompanyName, tt.expected)
			}
			if (info.StatusNote != "") != tt.withNote {
				t.Errorf("status note = %q, expected note: %v", info.StatusNote, tt.withNote)
			}
		})
	}
}

func TestSlugFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.comparably.com/companies/acme-corp/reviews", "acme-corp"},
		{"https://www.comparably.com/companies/acme-corp", "acme-corp"},
		{"https://example.com/some/path", "path"},
		{"https://example.com/", ""},
	}
	for _, tt := range tests {
		if got := SlugFromURL(tt.url); got != tt.expected {
			t.Errorf("SlugFromURL(%s) = %q, expected %q", tt.url, got, tt.expected)
		}
	}
}

func TestCompanyBaseURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{"https://www.comparably.com/companies/acme-corp/reviews", "https://www.comparably.com/companies/acme-corp", false},
		{"https://www.comparably.com/companies/acme-corp", "https://www.comparably.com/companies/acme-corp", false},
		{"https://www.comparably.com/companies/acme-corp/reviews/leadership", "https://www.comparably.com/companies/acme-corp", false},
		{"https://example.com/some/path", "", true},
		{"https://www.comparably.com/companies/", "", true},
		{"/companies/acme/reviews", "", true},
		{"ftp://www.comparably.com/companies/acme", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := CompanyBaseURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("CompanyBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("CompanyBaseURL(%q) = %q, expected %q", tt.url, got, tt.expected)
		}
	}
}

func TestCategoryURL(t *testing.T) {
	got := CategoryURL("https://www.comparably.com/companies/acme", "leadership")
	if got != "https://www.comparably.com/companies/acme/reviews/leadership" {
		t.Errorf("CategoryURL = %q", got)
	}
	got = ReviewsURL("https://www.comparably.com/companies/acme/")
	if got != "https://www.comparably.com/companies/acme/reviews" {
		t.Errorf("ReviewsURL = %q", got)
	}
}
