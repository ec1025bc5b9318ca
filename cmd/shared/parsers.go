package shared

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var scenarioRange = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)

// ParseScenarios parses scenario selections such as "3", "1,2" or "5-7"
// into a sorted list of unique scenario numbers between 1 and 10.
func ParseScenarios(specs []string) ([]int, error) {
	var out []int

	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			matches := scenarioRange.FindStringSubmatch(part)
			if matches == nil {
				return nil, parsingError(part)
			}

			from, err := strconv.Atoi(matches[1])
			if err != nil {
				return nil, parsingError(part)
			}
			to := from
			if matches[2] != "" {
				if to, err = strconv.Atoi(matches[2]); err != nil {
					return nil, parsingError(part)
				}
			}

			if from < 1 || to > 10 || from > to {
				return nil, parsingError(part)
			}
			for n := from; n <= to; n++ {
				out = append(out, n)
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no scenario selected")
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: scenarios are numbers from 1 to 10, or ranges like 5-7", s)
}
