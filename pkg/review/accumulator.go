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

package review

import "sort"

// Accumulator carries the per-category scrape state forward: the questions
// collected so far and the set of every review identity seen on any page
// fetched for the category (initial page, later category pages and every
// question sub-page).
type Accumulator struct {
	seen      map[Key]struct{}
	questions []*Question
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		seen: make(map[Key]struct{}),
	}
}

// Filter returns the subset of reviews not yet seen for the given question,
// marking them seen. The order of the surviving reviews is preserved.
func (a *Accumulator) Filter(questionText string, reviews []Review) []Review {
	var fresh []Review
	for _, r := range reviews {
		k := KeyOf(questionText, r)
		if _, ok := a.seen[k]; ok {
			continue
		}
		a.seen[k] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}

// Merge folds the reviews collected for a question into the accumulator.
// When the question text exactly matches a previously collected question,
// the new reviews are appended only if no existing review carries the same
// (text, date) pair; the merged list is re-sorted by date, newest first.
func (a *Accumulator) Merge(sectionName, questionText string, reviews []Review) {
	if len(reviews) == 0 {
		return
	}

	for _, q := range a.questions {
		if q.QuestionText == questionText {
			q.ReviewSection.Reviews = appendMissing(q.ReviewSection.Reviews, reviews)
			SortReviewsDesc(q.ReviewSection.Reviews)
			return
		}
	}

	merged := append([]Review(nil), reviews...)
	SortReviewsDesc(merged)
	a.questions = append(a.questions, &Question{
		QuestionText: questionText,
		ReviewSection: ReviewSection{
			SectionName: sectionName,
			Reviews:     merged,
		},
	})
}

// Questions returns a snapshot of the accumulated questions in collection
// order.
func (a *Accumulator) Questions() []Question {
	out := make([]Question, 0, len(a.questions))
	for _, q := range a.questions {
		out = append(out, *q)
	}
	return out
}

// MergeQuestions folds src into dst applying the same merge rule across
// categories: questions whose text exactly matches are combined, everything
// else is appended in arrival order.
func MergeQuestions(dst, src []Question) []Question {
	for _, sq := range src {
		merged := false
		for i := range dst {
			if dst[i].QuestionText == sq.QuestionText {
				dst[i].ReviewSection.Reviews = appendMissing(dst[i].ReviewSection.Reviews, sq.ReviewSection.Reviews)
				SortReviewsDesc(dst[i].ReviewSection.Reviews)
				merged = true
				break
			}
		}
		if !merged {
			dst = append(dst, sq)
		}
	}
	return dst
}

// SortReviewsDesc sorts reviews by date, newest first. The sort is stable so
// reviews sharing a date keep their insertion order.
func SortReviewsDesc(reviews []Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].Date.After(reviews[j].Date)
	})
}

// appendMissing appends the reviews from src whose (text, date) pair is not
// already present in dst.
func appendMissing(dst, src []Review) []Review {
	for _, r := range src {
		exists := false
		for _, er := range dst {
			if er.Text == r.Text && er.Date.Equal(r.Date) {
				exists = true
				break
			}
		}
		if !exists {
			dst = append(dst, r)
		}
	}
	return dst
}
