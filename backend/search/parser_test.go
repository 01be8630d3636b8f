// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Query
	}{
		{
			input: "status:final",
			expected: Query{
				Filters:  []Filter{{Key: "status", Value: "final", Operator: OpEqual}},
				FreeText: []string{},
			},
		},
		{
			input: `team:"Bronx Bombers" Difficulty:MLB`,
			expected: Query{
				Filters: []Filter{
					{Key: "team", Value: "Bronx Bombers", Operator: OpEqual},
					{Key: "difficulty", Value: "MLB", Operator: OpEqual},
				},
				FreeText: []string{},
			},
		},
		{
			input: "inning:>=3 runs:<2",
			expected: Query{
				Filters: []Filter{
					{Key: "inning", Value: "3", Operator: OpGreaterOrEqual},
					{Key: "runs", Value: "2", Operator: OpLess},
				},
				FreeText: []string{},
			},
		},
		{
			input: "inning:3..6",
			expected: Query{
				Filters:  []Filter{{Key: "inning", Value: "3", MaxValue: "6", Operator: OpRange}},
				FreeText: []string{},
			},
		},
		{
			input: `walk off "grand slam" tournament:yes`,
			expected: Query{
				Filters:  []Filter{{Key: "tournament", Value: "yes", Operator: OpEqual}},
				FreeText: []string{"walk", "off", "grand slam"},
			},
		},
		{
			input: "broken:range:.. foo:",
			expected: Query{
				Filters:  []Filter{},
				FreeText: []string{"broken:range:..", "foo:"},
			},
		},
		{
			input: "",
			expected: Query{
				Filters:  []Filter{},
				FreeText: []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMatchInt(t *testing.T) {
	tests := []struct {
		query string
		have  int
		want  bool
	}{
		{"inning:3", 3, true},
		{"inning:3", 4, false},
		{"inning:>3", 4, true},
		{"inning:>3", 3, false},
		{"inning:>=3", 3, true},
		{"inning:<3", 2, true},
		{"inning:<=3", 4, false},
		{"inning:3..6", 6, true},
		{"inning:3..6", 7, false},
		{"inning:three", 3, false},
		{"inning:3..x", 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := Parse(tt.query).Filters[0]
			if got := f.MatchInt(tt.have); got != tt.want {
				t.Errorf("%q.MatchInt(%d) = %v, want %v", tt.query, tt.have, got, tt.want)
			}
		})
	}
}

func TestMatchStringAndBool(t *testing.T) {
	f := Parse("status:FINAL").Filters[0]
	if !f.MatchString("final") {
		t.Error("MatchString should ignore case")
	}
	if Parse("status:>final").Filters[0].MatchString("final") {
		t.Error("MatchString should only match with =")
	}

	for _, v := range []string{"true", "yes", "1"} {
		if !Parse("tournament:" + v).Filters[0].MatchBool(true) {
			t.Errorf("tournament:%s should match true", v)
		}
	}
	if Parse("tournament:no").Filters[0].MatchBool(true) {
		t.Error("tournament:no should not match true")
	}
	if Parse("tournament:maybe").Filters[0].MatchBool(false) {
		t.Error("unknown bool should never match")
	}
	if !Parse("").Empty() {
		t.Error("empty query should be Empty")
	}
}
