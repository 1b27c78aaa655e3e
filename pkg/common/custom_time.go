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

// Package common package is used to store common functions and variables
package common

import (
	"encoding/json"
	"strings"
	"time"
)

// DateOnlyFormat is the format used by review publish dates on the wire.
const DateOnlyFormat = "2006-01-02"

// CustomTime wraps time.Time to provide custom parsing.
type CustomTime struct {
	time.Time
}

// ParseDate parses a date string in RFC3339 format, falling back to the
// "2006-01-02" format used by review publish dates.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		t, err = time.Parse(DateOnlyFormat, dateStr)
	}
	return t, err
}

// EndOfDay returns t moved to 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// UnmarshalYAML parses date strings from the YAML file.
func (ct *CustomTime) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var dateStr string
	if err := unmarshal(&dateStr); err != nil {
		return err
	}

	t, err := ParseDate(dateStr)
	if err != nil {
		return err
	}

	ct.Time = t
	return nil
}

// UnmarshalJSON parses date strings from JSON request bodies.
func (ct *CustomTime) UnmarshalJSON(data []byte) error {
	var dateStr string
	if err := json.Unmarshal(data, &dateStr); err != nil {
		return err
	}
	if strings.TrimSpace(dateStr) == "" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := ParseDate(dateStr)
	if err != nil {
		return err
	}

	ct.Time = t
	return nil
}

// MarshalJSON renders the date in RFC3339 format.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(ct.Time.Format(time.RFC3339))
}

// IsEmpty checks if the CustomTime is empty.
func (ct *CustomTime) IsEmpty() bool {
	return ct.Time.IsZero()
}
