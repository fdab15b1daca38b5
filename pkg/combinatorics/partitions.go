package combinatorics

import "fmt"

// MaxEnumeration bounds the number of results the enumerators will build.
const MaxEnumeration = 1 << 20

// Distributions enumerates every way to spread total units across groups
// sequences of slots non-negative integers. The grand sum of each result is
// total. Results are ordered with larger leading values first.
func Distributions(total, slots, groups int) ([][][]int, error) {
	if total < 0 || slots < 1 || groups < 1 {
		return nil, fmt.Errorf("distributions of %d over %dx%d: %w", total, groups, slots, ErrInvalidArgument)
	}

	parts := slots * groups
	count, err := Binomial(total+parts-1, parts-1)
	if err != nil {
		return nil, err
	}
	if count > MaxEnumeration {
		return nil, fmt.Errorf("distributions of %d over %dx%d yields %d results: %w", total, groups, slots, count, ErrOverflow)
	}

	out := make([][][]int, 0, count)
	flat := make([]int, parts)
	var walk func(pos, left int)
	walk = func(pos, left int) {
		if pos == parts-1 {
			flat[pos] = left
			out = append(out, split(flat, slots, groups))
			return
		}
		for v := left; v >= 0; v-- {
			flat[pos] = v
			walk(pos+1, left-v)
		}
	}
	walk(0, total)
	return out, nil
}

func split(flat []int, slots, groups int) [][]int {
	res := make([][]int, groups)
	for g := 0; g < groups; g++ {
		row := make([]int, slots)
		copy(row, flat[g*slots:(g+1)*slots])
		res[g] = row
	}
	return res
}

// IntegerPartitions returns the partitions of total into non-increasing
// positive parts no larger than maxPart, using at most maxParts parts.
// Partitions are ordered by descending leading part.
func IntegerPartitions(total, maxPart, maxParts int) ([][]int, error) {
	if total < 0 || maxPart < 0 || maxParts < 0 {
		return nil, fmt.Errorf("partitions of %d (maxPart=%d, maxParts=%d): %w", total, maxPart, maxParts, ErrInvalidArgument)
	}

	var out [][]int
	current := make([]int, 0, maxParts)
	var walk func(left, ceiling int) bool
	walk = func(left, ceiling int) bool {
		if left == 0 {
			p := make([]int, len(current))
			copy(p, current)
			out = append(out, p)
			return len(out) <= MaxEnumeration
		}
		if len(current) == maxParts {
			return true
		}
		for part := min(left, ceiling); part >= 1; part-- {
			current = append(current, part)
			ok := walk(left-part, part)
			current = current[:len(current)-1]
			if !ok {
				return false
			}
		}
		return true
	}
	if !walk(total, maxPart) {
		return nil, fmt.Errorf("partitions of %d exceed %d results: %w", total, MaxEnumeration, ErrOverflow)
	}
	return out, nil
}
