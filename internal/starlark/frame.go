package starlark

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
	"go.starlark.net/starlark"
)

// Frame exposes a dataset to scripts. It is immutable: every operation
// returns a new value, and the row dicts it hands out are frozen.
type Frame struct {
	ds   *dataset.Dataset
	rows []*starlark.Dict
}

var (
	_ starlark.Value    = (*Frame)(nil)
	_ starlark.HasAttrs = (*Frame)(nil)
	_ starlark.Sequence = (*Frame)(nil)
	_ starlark.Mapping  = (*Frame)(nil)
)

// NewFrame wraps ds. The caller must not modify ds afterwards.
func NewFrame(ds *dataset.Dataset) *Frame {
	if ds == nil {
		ds, _ = dataset.New(nil, nil)
	}
	names := ds.ColumnNames()
	rows := make([]*starlark.Dict, ds.Len())
	for i := range rows {
		vals := ds.Values(i)
		d := starlark.NewDict(len(names))
		for c, name := range names {
			_ = d.SetKey(starlark.String(name), scalar(vals[c]))
		}
		d.Freeze()
		rows[i] = d
	}
	return &Frame{ds: ds, rows: rows}
}

// Dataset returns the wrapped dataset.
func (f *Frame) Dataset() *dataset.Dataset { return f.ds }

func (f *Frame) String() string {
	return fmt.Sprintf("<frame %d rows x %d columns>", f.ds.Len(), len(f.ds.ColumnNames()))
}
func (f *Frame) Type() string          { return "frame" }
func (f *Frame) Freeze()               {}
func (f *Frame) Truth() starlark.Bool  { return f.ds.Len() > 0 }
func (f *Frame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }
func (f *Frame) Len() int              { return len(f.rows) }

func (f *Frame) Iterate() starlark.Iterator {
	return &frameIterator{rows: f.rows}
}

type frameIterator struct {
	rows []*starlark.Dict
	i    int
}

func (it *frameIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.rows) {
		return false
	}
	*p = it.rows[it.i]
	it.i++
	return true
}

func (it *frameIterator) Done() {}

// Get implements df[i] for rows and df["column"] for column values.
func (f *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch key := k.(type) {
	case starlark.Int:
		i, err := starlark.AsInt32(key)
		if err != nil {
			return nil, false, err
		}
		if i < 0 {
			i += len(f.rows)
		}
		if i < 0 || i >= len(f.rows) {
			return nil, false, fmt.Errorf("frame index %s out of range [0:%d]", key, len(f.rows))
		}
		return f.rows[i], true, nil
	case starlark.String:
		list, err := f.columnList(string(key))
		if err != nil {
			return nil, false, err
		}
		return list, true, nil
	default:
		return nil, false, fmt.Errorf("frame index must be int or string, got %s", k.Type())
	}
}

var frameMethods = map[string]*starlark.Builtin{
	"agg":          starlark.NewBuiltin("agg", frameAgg),
	"column":       starlark.NewBuiltin("column", frameColumn),
	"count":        starlark.NewBuiltin("count", frameCount),
	"filter":       starlark.NewBuiltin("filter", frameFilter),
	"group_by":     starlark.NewBuiltin("group_by", frameGroupBy),
	"head":         starlark.NewBuiltin("head", frameHead),
	"max":          starlark.NewBuiltin("max", frameMax),
	"mean":         starlark.NewBuiltin("mean", frameMean),
	"median":       starlark.NewBuiltin("median", frameMedian),
	"min":          starlark.NewBuiltin("min", frameMin),
	"nunique":      starlark.NewBuiltin("nunique", frameNunique),
	"select":       starlark.NewBuiltin("select", frameSelect),
	"sort_by":      starlark.NewBuiltin("sort_by", frameSortBy),
	"sum":          starlark.NewBuiltin("sum", frameSum),
	"to_string":    starlark.NewBuiltin("to_string", frameToString),
	"unique":       starlark.NewBuiltin("unique", frameUnique),
	"value_counts": starlark.NewBuiltin("value_counts", frameValueCounts),
	"where":        starlark.NewBuiltin("where", frameWhere),
}

var frameAttrs = []string{"columns", "dtypes", "rows", "shape"}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := f.ds.ColumnNames()
		out := make([]starlark.Value, len(names))
		for i, n := range names {
			out[i] = starlark.String(n)
		}
		return starlark.NewList(out), nil
	case "dtypes":
		d := starlark.NewDict(len(f.ds.ColumnNames()))
		for _, c := range f.ds.Columns() {
			_ = d.SetKey(starlark.String(c.Name), starlark.String(string(c.Type)))
		}
		return d, nil
	case "rows":
		out := make([]starlark.Value, len(f.rows))
		for i, r := range f.rows {
			out[i] = r
		}
		return starlark.NewList(out), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.ds.Len()), starlark.MakeInt(len(f.ds.ColumnNames()))}, nil
	}
	if b, ok := frameMethods[name]; ok {
		return b.BindReceiver(f), nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	names := append([]string{}, frameAttrs...)
	for name := range frameMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Frame) values(fn, column string) ([]any, error) {
	vs, err := f.ds.ColumnValues(column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return vs, nil
}

func (f *Frame) columnList(column string) (*starlark.List, error) {
	vs, err := f.values("column", column)
	if err != nil {
		return nil, err
	}
	out := make([]starlark.Value, len(vs))
	for i, v := range vs {
		out[i] = scalar(v)
	}
	return starlark.NewList(out), nil
}

func (f *Frame) take(fn string, positions []int) (*Frame, error) {
	ds, err := f.ds.Take(positions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return NewFrame(ds), nil
}

func receiver(b *starlark.Builtin) *Frame {
	return b.Receiver().(*Frame)
}

func frameColumn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &column); err != nil {
		return nil, err
	}
	return receiver(b).columnList(column)
}

func frameHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return NewFrame(receiver(b).ds.Head(n)), nil
}

func frameFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fn); err != nil {
		return nil, err
	}
	f := receiver(b)
	var keep []int
	for i, row := range f.rows {
		ok, err := starlark.Call(thread, fn, starlark.Tuple{row}, nil)
		if err != nil {
			return nil, err
		}
		if ok.Truth() {
			keep = append(keep, i)
		}
	}
	return f.take(b.Name(), keep)
}

func frameWhere(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		column, op string
		want       starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &column, &op, &want); err != nil {
		return nil, err
	}
	pred, err := predicate(op, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	f := receiver(b)
	vs, err := f.values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i, v := range vs {
		if pred(v) {
			keep = append(keep, i)
		}
	}
	return f.take(b.Name(), keep)
}

func frameSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	names := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: column names must be strings, got %s", b.Name(), a.Type())
		}
		names[i] = s
	}
	ds, err := receiver(b).ds.Select(names...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewFrame(ds), nil
}

func frameSortBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		column  string
		reverse bool
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "reverse?", &reverse); err != nil {
		return nil, err
	}
	f := receiver(b)
	vs, err := f.values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	order := make([]int, len(vs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, z := vs[order[i]], vs[order[j]]
		// Nulls stay last in both directions.
		if a == nil || z == nil {
			return z == nil && a != nil
		}
		if reverse {
			return dataset.Compare(a, z) > 0
		}
		return dataset.Compare(a, z) < 0
	})
	return f.take(b.Name(), order)
}

func frameGroupBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &column); err != nil {
		return nil, err
	}
	f := receiver(b)
	vs, err := f.values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	groups := dataset.Group(vs)
	out := starlark.NewDict(len(groups))
	for _, g := range groups {
		sub, err := f.take(b.Name(), g.Rows)
		if err != nil {
			return nil, err
		}
		if err := out.SetKey(scalar(g.Key), sub); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func frameAgg(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by, column string
	fn := "sum"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "column", &column, "fn?", &fn); err != nil {
		return nil, err
	}
	reduce, ok := reducers[fn]
	if !ok {
		return nil, fmt.Errorf("%s: unknown aggregation %q (want one of %s)", b.Name(), fn, strings.Join(reducerNames(), ", "))
	}
	f := receiver(b)
	keys, err := f.values(b.Name(), by)
	if err != nil {
		return nil, err
	}
	vs, err := f.values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	groups := dataset.Group(keys)
	out := starlark.NewDict(len(groups))
	for _, g := range groups {
		sub := make([]any, len(g.Rows))
		for i, r := range g.Rows {
			sub[i] = vs[r]
		}
		if err := out.SetKey(scalar(g.Key), reduce(sub)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// reducers aggregate a column slice into one Starlark value.
var reducers = map[string]func([]any) starlark.Value{
	"sum":    sumValue,
	"mean":   meanValue,
	"median": medianValue,
	"count":  func(vs []any) starlark.Value { return starlark.MakeInt(countNonNull(vs)) },
	"min": func(vs []any) starlark.Value {
		lo, _ := dataset.Extremes(vs)
		return scalar(lo)
	},
	"max": func(vs []any) starlark.Value {
		_, hi := dataset.Extremes(vs)
		return scalar(hi)
	},
	"nunique": func(vs []any) starlark.Value { return starlark.MakeInt(len(dataset.ValueCounts(vs))) },
}

func reducerNames() []string {
	names := make([]string, 0, len(reducers))
	for n := range reducers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// sumValue adds integer cells exactly, without overflow. Any float cell
// makes the sum a float.
func sumValue(vs []any) starlark.Value {
	total := starlark.MakeInt(0)
	for _, v := range vs {
		switch n := v.(type) {
		case int64:
			total = total.Add(starlark.MakeInt64(n))
		case float64:
			return starlark.Float(dataset.Sum(vs))
		}
	}
	return total
}

func meanValue(vs []any) starlark.Value {
	m, ok := dataset.Mean(vs)
	if !ok {
		return starlark.None
	}
	return starlark.Float(m)
}

func medianValue(vs []any) starlark.Value {
	m, ok := dataset.Median(vs)
	if !ok {
		return starlark.None
	}
	return starlark.Float(m)
}

func countNonNull(vs []any) int {
	n := 0
	for _, v := range vs {
		if v != nil {
			n++
		}
	}
	return n
}

// columnReducer builds a method that reduces one column.
func columnReducer(name string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var column string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &column); err != nil {
			return nil, err
		}
		vs, err := receiver(b).values(b.Name(), column)
		if err != nil {
			return nil, err
		}
		return reducers[name](vs), nil
	}
}

var (
	frameSum     = columnReducer("sum")
	frameMean    = columnReducer("mean")
	frameMedian  = columnReducer("median")
	frameMin     = columnReducer("min")
	frameMax     = columnReducer("max")
	frameNunique = columnReducer("nunique")
)

func frameCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column?", &column); err != nil {
		return nil, err
	}
	f := receiver(b)
	if column == "" {
		return starlark.MakeInt(f.ds.Len()), nil
	}
	vs, err := f.values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(countNonNull(vs)), nil
}

func frameUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &column); err != nil {
		return nil, err
	}
	vs, err := receiver(b).values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	var out []starlark.Value
	for _, g := range dataset.Group(vs) {
		if g.Key != nil {
			out = append(out, scalar(g.Key))
		}
	}
	return starlark.NewList(out), nil
}

func frameValueCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &column); err != nil {
		return nil, err
	}
	vs, err := receiver(b).values(b.Name(), column)
	if err != nil {
		return nil, err
	}
	counts := dataset.ValueCounts(vs)
	out := starlark.NewDict(len(counts))
	for _, c := range counts {
		if err := out.SetKey(scalar(c.Value), starlark.MakeInt(c.N)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func frameToString(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := -1
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	ds := receiver(b).ds
	if n >= 0 {
		ds = ds.Head(n)
	}
	return starlark.String(dataset.RenderText(ds)), nil
}

// predicate compiles a where() operator into a test on dataset cells.
func predicate(op string, want starlark.Value) (func(any) bool, error) {
	target, err := ToGo(want)
	if err != nil {
		return nil, err
	}
	switch op {
	case "==", "!=":
		eq := op == "=="
		return func(v any) bool { return cellEquals(v, target) == eq }, nil
	case "<", "<=", ">", ">=":
		return func(v any) bool {
			c, ok := cellCompare(v, target)
			if !ok {
				return false
			}
			switch op {
			case "<":
				return c < 0
			case "<=":
				return c <= 0
			case ">":
				return c > 0
			}
			return c >= 0
		}, nil
	case "in":
		items, ok := target.([]any)
		if !ok {
			return nil, fmt.Errorf("operator \"in\" needs a list, got %s", want.Type())
		}
		return func(v any) bool {
			for _, item := range items {
				if cellEquals(v, item) {
					return true
				}
			}
			return false
		}, nil
	case "contains":
		needle, ok := target.(string)
		if !ok {
			return nil, fmt.Errorf("operator \"contains\" needs a string, got %s", want.Type())
		}
		return func(v any) bool {
			s, ok := v.(string)
			return ok && strings.Contains(s, needle)
		}, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func cellEquals(cell, target any) bool {
	if cell == nil || target == nil {
		return cell == nil && target == nil
	}
	c, ok := cellCompare(cell, target)
	return ok && c == 0
}

// cellCompare orders a cell against a script value. Date cells accept ISO text.
func cellCompare(cell, target any) (int, bool) {
	if cell == nil || target == nil {
		return 0, false
	}
	if _, isTime := cell.(time.Time); isTime {
		if t, ok := dataset.AsTime(target); ok {
			target = t
		}
	}
	_, cellNum := dataset.AsFloat(cell)
	_, targetNum := dataset.AsFloat(target)
	_, cellBool := cell.(bool)
	_, targetBool := target.(bool)
	if cellNum && !cellBool && targetNum && !targetBool {
		return dataset.Compare(cell, target), true
	}
	if fmt.Sprintf("%T", cell) != fmt.Sprintf("%T", target) {
		return 0, false
	}
	return dataset.Compare(cell, target), true
}
