package model

import "sort"

// UnknownCode is assigned to labels an encoder was not fitted on.
const UnknownCode = 0

// LabelEncoder maps a fixed set of string labels to integer codes in sorted
// label order.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder builds an encoder over the given labels. Duplicates are
// collapsed.
func NewLabelEncoder(labels []string) *LabelEncoder {
	uniq := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		uniq[l] = struct{}{}
	}
	classes := make([]string, 0, len(uniq))
	for l := range uniq {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, l := range classes {
		index[l] = i
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Encode returns the code for label, or UnknownCode when it was never seen.
func (e *LabelEncoder) Encode(label string) int {
	if code, ok := e.index[label]; ok {
		return code
	}
	return UnknownCode
}

// Classes returns the fitted labels in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}
