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

// Package review holds the domain model of the review scraping engine:
// the review/question types, the composite dedup identity and the
// accumulate-and-merge rules applied across every page fetched for a
// review category.
package review

import (
	"time"

	"github.com/spaolacci/murmur3"
)

// Review is a single employee-submitted text entry with its publish date.
type Review struct {
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// ReviewSection groups the reviews of one question under the category that
// produced them.
type ReviewSection struct {
	SectionName string   `json:"section_name"`
	Reviews     []Review `json:"reviews"`
}

// Question is one review prompt (e.g. "What's it like to work here?") and
// the reviews collected for it.
type Question struct {
	QuestionText  string        `json:"question_text"`
	ReviewSection ReviewSection `json:"review_section"`
}

// CompanyInfo carries the company details extracted from the reviews page.
type CompanyInfo struct {
	CompanyName string `json:"company_name"`
	SourceURL   string `json:"source_url"`
	StatusNote  string `json:"status_note,omitempty"`
}

// ResultData is the payload of a company scrape.
type ResultData struct {
	CompanyInfo CompanyInfo `json:"company_info"`
	Reviews     []Question  `json:"reviews"`
}

// Result is the outcome of scraping one company. Message carries the error
// detail when Status is StatusError.
type Result struct {
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
	Data    ResultData `json:"data"`
}

// Scrape result statuses.
const (
	StatusSuccess          = "success"
	StatusPartialNoReviews = "partial_success_no_reviews"
	StatusError            = "error"
)

// Key is the composite identity used to deduplicate reviews across every
// page fetched for a category: the question text, the review text and the
// review publish date.
type Key struct {
	QuestionHash uint64
	TextHash     uint64
	Date         string
}

// KeyOf builds the dedup Key for a review under the given question.
func KeyOf(questionText string, r Review) Key {
	return Key{
		QuestionHash: murmur3.Sum64([]byte(questionText)),
		TextHash:     murmur3.Sum64([]byte(r.Text)),
		Date:         r.Date.Format("2006-01-02"),
	}
}

// DateRange is an optional date filter for reviews. A zero Start or End
// leaves that side unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range has no bounds at all.
func (dr DateRange) IsZero() bool {
	return dr.Start.IsZero() && dr.End.IsZero()
}

// Contains reports whether t falls within the range. Both bounds are
// inclusive.
func (dr DateRange) Contains(t time.Time) bool {
	if !dr.Start.IsZero() && t.Before(dr.Start) {
		return false
	}
	if !dr.End.IsZero() && t.After(dr.End) {
		return false
	}
	return true
}
