package plans

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var suffixPattern = regexp.MustCompile(`^(.*)\((\d+)\)$`)

// UniqueName returns base if no existing name equals it, otherwise base(n+1)
// where n is the largest suffix among names of the form base(n).
func UniqueName(existing []string, base string) string {
	used := false
	highest := 0
	for _, name := range existing {
		if name == base {
			used = true
			continue
		}
		m := suffixPattern.FindStringSubmatch(name)
		if m == nil || m[1] != base {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > highest {
			highest = n
		}
	}
	if !used {
		return base
	}
	return fmt.Sprintf("%s(%d)", base, highest+1)
}

// bumpName turns "x(n)" into "x(n+1)" and anything else into "x(1)".
func bumpName(name string) string {
	if m := suffixPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			return fmt.Sprintf("%s(%d)", m[1], n+1)
		}
	}
	return name + "(1)"
}

// DefaultName is used when a plan is saved without a name, e.g.
// "北京旅行-2025/3/9".
func DefaultName(destination string, now time.Time) string {
	if destination == "" {
		destination = "未知"
	}
	return fmt.Sprintf("%s旅行-%d/%d/%d", destination, now.Year(), int(now.Month()), now.Day())
}
