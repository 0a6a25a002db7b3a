package bim

import (
	"regexp"
	"strconv"
)

var (
	levelRe    = regexp.MustCompile(`(?i)(level|floor)\s*(-?\d+)`)
	basementRe = regexp.MustCompile(`(?i)basement\s*(\d+)?`)
	integerRe  = regexp.MustCompile(`-?\d+`)
)

// ParseLevelToFloor reads a floor number out of a level label. "Level 3" is 3,
// "Basement 2" is -2, a bare "Basement" is -1, otherwise the first integer
// wins. Nil when nothing numeric is found.
func ParseLevelToFloor(s string) *int {
	if m := levelRe.FindStringSubmatch(s); m != nil {
		return atoi(m[2])
	}
	if m := basementRe.FindStringSubmatch(s); m != nil {
		n := 1
		if m[1] != "" {
			if v := atoi(m[1]); v != nil {
				n = *v
			}
		}
		n = -n
		return &n
	}
	if m := integerRe.FindString(s); m != "" {
		return atoi(m)
	}
	return nil
}

func atoi(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
