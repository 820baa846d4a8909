package costing

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// AccountClassifier decides which accounts count toward project cost
type AccountClassifier interface {
	IsCost(account string) bool
}

// ClassifierFunc adapts a function to AccountClassifier
type ClassifierFunc func(account string) bool

// IsCost calls f
func (f ClassifierFunc) IsCost(account string) bool {
	return f(account)
}

// CodeRange is an inclusive range of numeric account codes
type CodeRange struct {
	From int `mapstructure:"from" json:"from"`
	To   int `mapstructure:"to" json:"to"`
}

// Contains returns true if code lies in the range
func (r CodeRange) Contains(code int) bool {
	return code >= r.From && code <= r.To
}

// DefaultCostRanges are the cost of goods sold (5xxxx) and job expense (6xxxx) codes
var DefaultCostRanges = []CodeRange{
	{From: 50000, To: 59999},
	{From: 60000, To: 69999},
}

// ParseCodeRanges parses "from-to" entries such as "50000-59999". A single
// code is a range of one. Empty input yields nil so the defaults apply.
func ParseCodeRanges(entries []string) ([]CodeRange, error) {
	var ranges []CodeRange
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fromStr, toStr, found := strings.Cut(entry, "-")
		if !found {
			toStr = fromStr
		}
		from, err := strconv.Atoi(strings.TrimSpace(fromStr))
		if err != nil {
			return nil, fmt.Errorf("invalid cost code range %q: %w", entry, err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(toStr))
		if err != nil {
			return nil, fmt.Errorf("invalid cost code range %q: %w", entry, err)
		}
		if to < from {
			return nil, fmt.Errorf("invalid cost code range %q: end before start", entry)
		}
		ranges = append(ranges, CodeRange{From: from, To: to})
	}
	return ranges, nil
}

// DefaultCostKeywords match cost accounts that carry no code
var DefaultCostKeywords = []string{
	"cost of goods",
	"cogs",
	"job cost",
	"job materials",
	"materials",
	"subcontract",
	"labor",
	"direct cost",
	"equipment rental",
	"permits",
}

// RangeKeywordClassifier classifies by leading account code when one is
// present, and by keyword otherwise
type RangeKeywordClassifier struct {
	Ranges   []CodeRange
	Keywords []string
}

// NewRangeKeywordClassifier creates a classifier; nil arguments take the defaults
func NewRangeKeywordClassifier(ranges []CodeRange, keywords []string) *RangeKeywordClassifier {
	if ranges == nil {
		ranges = DefaultCostRanges
	}
	if keywords == nil {
		keywords = DefaultCostKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &RangeKeywordClassifier{Ranges: ranges, Keywords: lowered}
}

// DefaultClassifier returns the default range/keyword policy
func DefaultClassifier() *RangeKeywordClassifier {
	return NewRangeKeywordClassifier(nil, nil)
}

// IsCost implements AccountClassifier
func (c *RangeKeywordClassifier) IsCost(account string) bool {
	if code, ok := LeadingCode(account); ok {
		for _, r := range c.Ranges {
			if r.Contains(code) {
				return true
			}
		}
		return false
	}
	name := strings.ToLower(account)
	for _, k := range c.Keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// LeadingCode extracts the numeric account code an account name starts with,
// e.g. 60100 from "60100 Job Materials". The digits must be followed by the
// end of the name or a non-alphanumeric separator.
func LeadingCode(account string) (int, bool) {
	account = strings.TrimSpace(account)
	end := 0
	for end < len(account) && account[end] >= '0' && account[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	if end < len(account) {
		next := rune(account[end])
		if unicode.IsLetter(next) || next == '.' {
			return 0, false
		}
	}
	code, err := strconv.Atoi(account[:end])
	if err != nil {
		return 0, false
	}
	return code, true
}

// MappingClassifier classifies by exact account name (case-insensitive).
// Unmapped accounts go to Fallback, or are not cost when Fallback is nil.
type MappingClassifier struct {
	Mapping  map[string]bool
	Fallback AccountClassifier
}

// NewMappingClassifier creates a mapping classifier
func NewMappingClassifier(mapping map[string]bool, fallback AccountClassifier) *MappingClassifier {
	normalized := make(map[string]bool, len(mapping))
	for name, isCost := range mapping {
		normalized[strings.ToLower(strings.TrimSpace(name))] = isCost
	}
	return &MappingClassifier{Mapping: normalized, Fallback: fallback}
}

// IsCost implements AccountClassifier
func (c *MappingClassifier) IsCost(account string) bool {
	if isCost, ok := c.Mapping[strings.ToLower(strings.TrimSpace(account))]; ok {
		return isCost
	}
	if c.Fallback != nil {
		return c.Fallback.IsCost(account)
	}
	return false
}
