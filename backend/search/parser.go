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

// Package search parses session list queries such as
// `status:final difficulty:mlb inning:>=3 runs:2..5`.
package search

import (
	"strconv"
	"strings"
	"unicode"
)

// Operator is the comparison a Filter applies.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // inclusive, e.g. inning:3..6
)

// Filter is one key:value criterion.
type Filter struct {
	Key      string
	Value    string
	MaxValue string // OpRange only
	Operator Operator
}

// Query is a parsed query string.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool {
	return len(q.Filters) == 0 && len(q.FreeText) == 0
}

// prefixes are checked longest first.
var prefixes = []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess}

// Parse splits input into filters and free text. Keys are lower-cased;
// quoted values may contain spaces.
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}
	for _, token := range tokenize(input) {
		key, val, ok := strings.Cut(token, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		if !ok || key == "" || val == "" || (strings.Contains(val, ":") && !quoted(val)) {
			q.FreeText = append(q.FreeText, removeQuotes(token))
			continue
		}
		q.Filters = append(q.Filters, parseFilter(key, val))
	}
	return q
}

func parseFilter(key, val string) Filter {
	if lo, hi, ok := strings.Cut(val, ".."); ok && !quoted(val) {
		return Filter{Key: key, Value: lo, MaxValue: hi, Operator: OpRange}
	}
	for _, op := range prefixes {
		if rest, ok := strings.CutPrefix(val, string(op)); ok {
			return Filter{Key: key, Value: removeQuotes(rest), Operator: op}
		}
	}
	return Filter{Key: key, Value: removeQuotes(val), Operator: OpEqual}
}

// MatchInt applies an integer filter to have. A filter whose value is not
// a number never matches.
func (f Filter) MatchInt(have int) bool {
	want, err := strconv.Atoi(f.Value)
	if err != nil {
		return false
	}
	switch f.Operator {
	case OpEqual:
		return have == want
	case OpGreater:
		return have > want
	case OpGreaterOrEqual:
		return have >= want
	case OpLess:
		return have < want
	case OpLessOrEqual:
		return have <= want
	case OpRange:
		max, err := strconv.Atoi(f.MaxValue)
		if err != nil {
			return false
		}
		return have >= want && have <= max
	}
	return false
}

// MatchString compares case-insensitively. Only OpEqual can match.
func (f Filter) MatchString(have string) bool {
	return f.Operator == OpEqual && strings.EqualFold(have, f.Value)
}

// MatchBool accepts true/false, yes/no and 1/0.
func (f Filter) MatchBool(have bool) bool {
	if f.Operator != OpEqual {
		return false
	}
	switch strings.ToLower(f.Value) {
	case "true", "yes", "1":
		return have
	case "false", "no", "0":
		return !have
	}
	return false
}

// tokenize splits on whitespace outside of quotes.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func quoted(s string) bool {
	return strings.HasPrefix(s, "\"") || strings.HasPrefix(s, "'")
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
