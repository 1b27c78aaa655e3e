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

// Package common provides common utilities and functions used across the application.
package common

import (
	"strings"

	browser "github.com/EDDYCJY/fake-useragent"
)

// UsrAgentStrMap maps a browser type to a known-good desktop user agent
// string. Used as a fallback when randomization is disabled or fails.
var UsrAgentStrMap = map[string]string{
	"chrome-desktop01":   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"chromium-desktop01": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"firefox-desktop01":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
}

// RandomUserAgent returns a randomized user agent string for the given
// browser type, falling back to the static map when randomization yields
// nothing usable.
func RandomUserAgent(browserType string) string {
	browserType = strings.ToLower(strings.TrimSpace(browserType))

	var ua string
	switch browserType {
	case "firefox":
		ua = browser.Firefox()
	default:
		ua = browser.Chrome()
	}

	if strings.TrimSpace(ua) == "" {
		if fallback, ok := UsrAgentStrMap[browserType+"-desktop01"]; ok {
			return fallback
		}
		return UsrAgentStrMap["chrome-desktop01"]
	}
	return ua
}
