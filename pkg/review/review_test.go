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

import (
	"reflect"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rv(text, date string) Review {
	return Review{Text: text, Date: day(date)}
}

func TestKeyOf(t *testing.T) {
	r1 := rv("great place", "2023-05-01")
	r2 := rv("great place", "2023-05-01")
	r3 := rv("great place", "2023-05-02")

	if KeyOf("q1", r1) != KeyOf("q1", r2) {
		t.Errorf("expected identical keys for identical reviews")
	}
	if KeyOf("q1", r1) == KeyOf("q1", r3) {
		t.Errorf("expected different keys for different dates")
	}
	if KeyOf("q1", r1) == KeyOf("q2", r1) {
		t.Errorf("expected different keys for different questions")
	}
}

func TestDateRangeContains(t *testing.T) {
	tests := []struct {
		name     string
		rng      DateRange
		date     string
		expected bool
	}{
		{"unbounded", DateRange{}, "1999-01-01", true},
		{"inside", DateRange{Start: day("2023-01-01"), End: day("2023-12-31")}, "2023-06-15", true},
		{"on start", DateRange{Start: day("2023-01-01"), End: day("2023-12-31")}, "2023-01-01", true},
		{"on end", DateRange{Start: day("2023-01-01"), End: day("2023-12-31")}, "2023-12-31", true},
		{"before start", DateRange{Start: day("2023-01-01")}, "2022-12-31", false},
		{"after end", DateRange{End: day("2023-12-31")}, "2024-01-01", false},
		{"start only, after", DateRange{Start: day("2023-01-01")}, "2025-03-03", true},
		{"end only, before", DateRange{End: day("2023-12-31")}, "2001-01-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rng.Contains(day(tt.date)); got != tt.expected {
				t.Errorf("Contains(%s) = %v, expected %v", tt.date, got, tt.expected)
			}
		})
	}
}

func TestAccumulatorFilter(t *testing.T) {
	acc := NewAccumulator()

	first := acc.Filter("q1", []Review{
		rv("alpha", "2023-01-01"),
		rv("beta", "2023-01-02"),
	})
	if len(first) != 2 {
		t.Fatalf("expected 2 fresh reviews, got %d", len(first))
	}

	// Same reviews seen again on a later page of the same category.
	second := acc.Filter("q1", []Review{
		rv("alpha", "2023-01-01"),
		rv("gamma", "2023-01-03"),
	})
	if len(second) != 1 || second[0].Text != "gamma" {
		t.Fatalf("expected only gamma to survive, got %v", second)
	}

	// Identical review text under a different question is a distinct identity.
	third := acc.Filter("q2", []Review{rv("alpha", "2023-01-01")})
	if len(third) != 1 {
		t.Fatalf("expected alpha to be fresh under q2, got %v", third)
	}
}

func TestAccumulatorMerge(t *testing.T) {
	acc := NewAccumulator()

	acc.Merge("leadership", "How is leadership?", []Review{
		rv("old take", "2022-01-01"),
		rv("new take", "2023-06-01"),
	})
	acc.Merge("leadership", "How is leadership?", []Review{
		rv("new take", "2023-06-01"), // duplicate (text, date), must be skipped
		rv("middle take", "2022-06-01"),
	})

	qs := acc.Questions()
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
	got := qs[0].ReviewSection.Reviews
	want := []Review{
		rv("new take", "2023-06-01"),
		rv("middle take", "2022-06-01"),
		rv("old take", "2022-01-01"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged reviews = %v, want %v", got, want)
	}
}

func TestAccumulatorMergeEmpty(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge("leadership", "How is leadership?", nil)
	if len(acc.Questions()) != 0 {
		t.Errorf("expected no questions after merging empty review list")
	}
}

func TestAccumulatorMergeDistinctQuestions(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge("leadership", "q-a", []Review{rv("a", "2023-01-01")})
	acc.Merge("leadership", "q-b", []Review{rv("b", "2023-01-02")})

	qs := acc.Questions()
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].QuestionText != "q-a" || qs[1].QuestionText != "q-b" {
		t.Errorf("questions out of collection order: %v, %v", qs[0].QuestionText, qs[1].QuestionText)
	}
}

func TestMergeQuestions(t *testing.T) {
	dst := []Question{
		{
			QuestionText: "shared question",
			ReviewSection: ReviewSection{
				SectionName: "leadership",
				Reviews:     []Review{rv("from leadership", "2023-01-01")},
			},
		},
	}
	src := []Question{
		{
			QuestionText: "shared question",
			ReviewSection: ReviewSection{
				SectionName: "outlook",
				Reviews: []Review{
					rv("from leadership", "2023-01-01"), // same (text, date) pair
					rv("from outlook", "2023-02-01"),
				},
			},
		},
		{
			QuestionText: "outlook only",
			ReviewSection: ReviewSection{
				SectionName: "outlook",
				Reviews:     []Review{rv("solo", "2023-03-01")},
			},
		},
	}

	out := MergeQuestions(dst, src)
	if len(out) != 2 {
		t.Fatalf("expected 2 questions after merge, got %d", len(out))
	}
	got := out[0].ReviewSection.Reviews
	want := []Review{
		rv("from outlook", "2023-02-01"),
		rv("from leadership", "2023-01-01"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged shared question = %v, want %v", got, want)
	}
	if out[1].QuestionText != "outlook only" {
		t.Errorf("expected appended question, got %q", out[1].QuestionText)
	}
}

func TestSortReviewsDescStable(t *testing.T) {
	reviews := []Review{
		rv("first same-day", "2023-01-01"),
		rv("newest", "2023-05-05"),
		rv("second same-day", "2023-01-01"),
	}
	SortReviewsDesc(reviews)

	want := []Review{
		rv("newest", "2023-05-05"),
		rv("first same-day", "2023-01-01"),
		rv("second same-day", "2023-01-01"),
	}
	if !reflect.DeepEqual(reviews, want) {
		t.Errorf("sorted = %v, want %v", reviews, want)
	}
}
