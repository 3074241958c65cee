package starlark

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TabularModule is the "tab" global: numeric and calendar helpers that
// complement the frame methods. It is frozen and shared by every run.
var TabularModule = newTabularModule()

func newTabularModule() *starlarkstruct.Module {
	m := &starlarkstruct.Module{
		Name: TabularBinding,
		Members: starlark.StringDict{
			"days_between": starlark.NewBuiltin("days_between", tabDaysBetween),
			"frame":        starlark.NewBuiltin("frame", tabFrame),
			"max_by":       starlark.NewBuiltin("max_by", tabExtremeBy(true)),
			"mean":         starlark.NewBuiltin("mean", tabReduce(meanValue)),
			"median":       starlark.NewBuiltin("median", tabReduce(medianValue)),
			"min_by":       starlark.NewBuiltin("min_by", tabExtremeBy(false)),
			"month":        starlark.NewBuiltin("month", tabMonth),
			"percent":      starlark.NewBuiltin("percent", tabPercent),
			"round":        starlark.NewBuiltin("round", tabRound),
			"sorted_items": starlark.NewBuiltin("sorted_items", tabSortedItems),
			"sum":          starlark.NewBuiltin("sum", tabReduce(sumValue)),
			"weekday":      starlark.NewBuiltin("weekday", tabWeekday),
		},
	}
	m.Freeze()
	return m
}

// iterableToGo converts any Starlark iterable of scalars.
func iterableToGo(fn string, v starlark.Value) ([]any, error) {
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: want an iterable, got %s", fn, v.Type())
	}
	it := iter.Iterate()
	defer it.Done()

	var out []any
	var x starlark.Value
	for it.Next(&x) {
		gv, err := ToGo(x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		out = append(out, gv)
	}
	return out, nil
}

func tabReduce(reduce func([]any) starlark.Value) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var values starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &values); err != nil {
			return nil, err
		}
		vs, err := iterableToGo(b.Name(), values)
		if err != nil {
			return nil, err
		}
		return reduce(vs), nil
	}
}

func number(fn string, v starlark.Value) (float64, error) {
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: want a number, got %s", fn, v.Type())
	}
	return f, nil
}

func roundTo(x float64, ndigits int) float64 {
	p := math.Pow(10, float64(ndigits))
	return math.Round(x*p) / p
}

func tabRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x       starlark.Value
		ndigits = 0
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	f, err := number(b.Name(), x)
	if err != nil {
		return nil, err
	}
	return starlark.Float(roundTo(f, ndigits)), nil
}

func tabPercent(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		part, whole starlark.Value
		ndigits     = 1
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "part", &part, "whole", &whole, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	p, err := number(b.Name(), part)
	if err != nil {
		return nil, err
	}
	w, err := number(b.Name(), whole)
	if err != nil {
		return nil, err
	}
	if w == 0 {
		return nil, fmt.Errorf("%s: whole is zero", b.Name())
	}
	return starlark.Float(roundTo(p/w*100, ndigits)), nil
}

func dateArg(fn string, v starlark.Value) (time.Time, error) {
	s, ok := starlark.AsString(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: want a date string, got %s", fn, v.Type())
	}
	t, ok := dataset.AsTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: cannot parse date %q", fn, s)
	}
	return t, nil
}

func tabWeekday(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var date starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &date); err != nil {
		return nil, err
	}
	d, err := dateArg(b.Name(), date)
	if err != nil {
		return nil, err
	}
	return starlark.String(dataset.WeekdayName(d.Weekday())), nil
}

func tabMonth(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var date starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &date); err != nil {
		return nil, err
	}
	d, err := dateArg(b.Name(), date)
	if err != nil {
		return nil, err
	}
	return starlark.String(d.Format("2006-01")), nil
}

func tabDaysBetween(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, end starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &start, &end); err != nil {
		return nil, err
	}
	s, err := dateArg(b.Name(), start)
	if err != nil {
		return nil, err
	}
	e, err := dateArg(b.Name(), end)
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(int(math.Round(e.Sub(s).Hours() / 24))), nil
}

func tabFrame(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rows starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &rows); err != nil {
		return nil, err
	}
	items, err := iterableToGo(b.Name(), rows)
	if err != nil {
		return nil, err
	}
	records := make([]map[string]any, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: row %d is not a dict with string keys", b.Name(), i)
		}
		records[i] = rec
	}
	return NewFrame(dataset.FromRecords(records)), nil
}

type dictEntry struct {
	key   starlark.Value
	value starlark.Value
	num   float64
}

func dictEntries(fn string, v starlark.Value) ([]dictEntry, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: want a dict, got %s", fn, v.Type())
	}
	entries := make([]dictEntry, 0, d.Len())
	for _, item := range d.Items() {
		n, err := number(fn, item[1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, dictEntry{key: item[0], value: item[1], num: n})
	}
	return entries, nil
}

// lessKey orders dict keys for deterministic tie breaking.
func lessKey(a, b starlark.Value) bool {
	ga, _ := ToGo(a)
	gb, _ := ToGo(b)
	return dataset.Compare(ga, gb) < 0
}

func tabExtremeBy(largest bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var d starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &d); err != nil {
			return nil, err
		}
		entries, err := dictEntries(b.Name(), d)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return starlark.None, nil
		}
		best := entries[0]
		for _, e := range entries[1:] {
			better := e.num < best.num
			if largest {
				better = e.num > best.num
			}
			if better || (e.num == best.num && lessKey(e.key, best.key)) {
				best = e
			}
		}
		return best.key, nil
	}
}

func tabSortedItems(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		d       starlark.Value
		reverse = true
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "d", &d, "reverse?", &reverse); err != nil {
		return nil, err
	}
	entries, err := dictEntries(b.Name(), d)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].num != entries[j].num {
			if reverse {
				return entries[i].num > entries[j].num
			}
			return entries[i].num < entries[j].num
		}
		return lessKey(entries[i].key, entries[j].key)
	})
	out := make([]starlark.Value, len(entries))
	for i, e := range entries {
		out[i] = starlark.Tuple{e.key, e.value}
	}
	return starlark.NewList(out), nil
}
