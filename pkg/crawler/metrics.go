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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewler_pages_fetched_total",
		Help: "Pages fetched during review crawls, by category.",
	}, []string{"category"})

	reviewsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewler_reviews_collected_total",
		Help: "Reviews kept after dedup and date filtering, by category.",
	}, []string{"category"})
)
