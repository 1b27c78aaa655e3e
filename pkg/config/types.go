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

package config

import "strings"

// Crawler holds the settings that drive the review pagination walk.
type Crawler struct {
	Workers          int    `yaml:"workers"`            // max categories crawled concurrently
	Timeout          int    `yaml:"timeout"`            // per element-wait timeout (seconds)
	Delay            string `yaml:"delay"`              // delay between page fetches (seconds, supports "random(min,max)")
	MaxCategoryPages int    `yaml:"max_category_pages"` // safety cap on the category pagination walk
	MaxReviewPages   int    `yaml:"max_review_pages"`   // per question block
	Categories       string `yaml:"categories"`         // comma-separated override of the category list
}

// Selenium holds the WebDriver connection settings.
type Selenium struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Headless bool   `yaml:"headless"`
	SSLMode  string `yaml:"sslmode"`
	ProxyURL string `yaml:"proxy_url"`
}

// HTTP holds the settings of the plain HTTP fetcher used for question
// sub-page pagination.
type HTTP struct {
	Timeout   int    `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"` // empty means randomized per session
	RateLimit string `yaml:"rate_limit"` // "requests_per_second,burst"
	ProxyURL  string `yaml:"proxy_url"`
}

// API holds the API server settings.
type API struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Timeout   int    `yaml:"timeout"`
	RateLimit string `yaml:"rate_limit"`
	SSLMode   string `yaml:"sslmode"`
}

// Prometheus holds the push-gateway settings for metrics.
type Prometheus struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Config represents the structure of the configuration file
type Config struct {
	Crawler    Crawler    `yaml:"crawler"`
	Selenium   Selenium   `yaml:"selenium"`
	HTTP       HTTP       `yaml:"http"`
	API        API        `yaml:"api"`
	Prometheus Prometheus `yaml:"prometheus"`
	OS         string     `yaml:"os"`
	DebugLevel int        `yaml:"debug_level"`
}

// CategoryList returns the configured review categories, falling back to the
// default set when none are configured.
func (c *Config) CategoryList() []string {
	if strings.TrimSpace(c.Crawler.Categories) == "" {
		return append([]string(nil), DefaultCategories...)
	}
	var categories []string
	for _, cat := range strings.Split(c.Crawler.Categories, ",") {
		cat = strings.ToLower(strings.TrimSpace(cat))
		if cat != "" {
			categories = append(categories, cat)
		}
	}
	return categories
}

// DefaultCategories is the fixed set of review topics the target site groups
// company reviews under.
var DefaultCategories = []string{"leadership", "compensation", "team", "environment", "outlook", "interviews"}
