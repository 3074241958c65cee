package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Compare orders two scalars. Numbers sort before times, booleans and text;
// nulls sort last. Values of the same kind compare naturally.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNumber:
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankNull:
		return 0
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

const (
	rankNumber = iota
	rankTime
	rankBool
	rankText
	rankNull
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case int64, float64:
		return rankNumber
	case time.Time:
		return rankTime
	case bool:
		return rankBool
	default:
		return rankText
	}
}

// Key returns a comparable grouping key for a scalar.
func Key(v any) string {
	if v == nil {
		return "\x00null"
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return fmt.Sprintf("n:%d", int64(f))
	}
	if i, ok := v.(int64); ok {
		return fmt.Sprintf("n:%d", i)
	}
	return fmt.Sprintf("%T:%s", v, FormatValue(v))
}

// Numbers returns the numeric values among vs and whether all of them are integers.
func Numbers(vs []any) (nums []float64, allInts bool) {
	allInts = true
	for _, v := range vs {
		switch n := v.(type) {
		case int64:
			nums = append(nums, float64(n))
		case float64:
			nums = append(nums, n)
			allInts = false
		}
	}
	return nums, allInts
}

// Sum adds the numeric values of vs.
func Sum(vs []any) float64 {
	nums, _ := Numbers(vs)
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}

// Mean averages the numeric values of vs. ok is false when there are none.
func Mean(vs []any) (mean float64, ok bool) {
	nums, _ := Numbers(vs)
	if len(nums) == 0 {
		return 0, false
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums)), true
}

// Median returns the median of the numeric values of vs.
func Median(vs []any) (float64, bool) {
	nums, _ := Numbers(vs)
	if len(nums) == 0 {
		return 0, false
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid], true
	}
	return (nums[mid-1] + nums[mid]) / 2, true
}

// Extremes returns the smallest and largest non-null values of vs.
func Extremes(vs []any) (lo, hi any) {
	for _, v := range vs {
		if v == nil {
			continue
		}
		if lo == nil || Compare(v, lo) < 0 {
			lo = v
		}
		if hi == nil || Compare(v, hi) > 0 {
			hi = v
		}
	}
	return lo, hi
}

// Count is one entry of a value frequency table.
type Count struct {
	Value any
	N     int
}

// ValueCounts tallies the non-null values of vs, most frequent first.
// Ties are ordered by value so the result is deterministic.
func ValueCounts(vs []any) []Count {
	groups := Group(vs)
	out := make([]Count, 0, len(groups))
	for _, g := range groups {
		if g.Key == nil {
			continue
		}
		out = append(out, Count{Value: g.Key, N: len(g.Rows)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return Compare(out[i].Value, out[j].Value) < 0
	})
	return out
}

// Grouping is the set of row positions sharing one key.
type Grouping struct {
	Key  any
	Rows []int
}

// Group partitions positions of vs by value, ordered by key.
func Group(vs []any) []Grouping {
	index := make(map[string]int)
	var groups []Grouping
	for i, v := range vs {
		k := Key(v)
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, Grouping{Key: v})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return Compare(groups[i].Key, groups[j].Key) < 0
	})
	return groups
}
