package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	QualityBest  = "best"
	QualityWorst = "worst"
)

// Choose picks a label from labels. pref is an exact label ("720p"), a bare
// height ("720"), "best" or "worst"; empty means best.
func Choose(labels []string, pref string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("no qualities to choose from")
	}

	pref = strings.ToLower(strings.TrimSpace(pref))
	switch pref {
	case "", QualityBest:
		return lo.MaxBy(labels, func(a, b string) bool { return height(a) > height(b) }), nil
	case QualityWorst:
		return lo.MinBy(labels, func(a, b string) bool { return height(a) < height(b) }), nil
	}

	if !strings.HasSuffix(pref, "p") {
		pref += "p"
	}
	for _, l := range labels {
		if strings.EqualFold(l, pref) {
			return l, nil
		}
	}
	return "", fmt.Errorf("quality %q not available", pref)
}

// height parses "720p" as 720; unparsable labels sort lowest
func height(label string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(label), "p"))
	if err != nil {
		return -1
	}
	return n
}
