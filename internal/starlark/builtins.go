package starlark

import (
	"sort"

	"github.com/kingdombarber/insight/pkg/dataset"
	"go.starlark.net/starlark"
)

// Names of the only two globals a script can reference.
const (
	DatasetBinding = "df"
	TabularBinding = "tab"
)

// Predeclared returns the complete global environment of a script run:
// the dataset bound to "df" and the tabular module bound to "tab".
// The frame wraps ds directly, so callers pass a private copy.
func Predeclared(ds *dataset.Dataset) starlark.StringDict {
	globals := starlark.StringDict{
		DatasetBinding: NewFrame(ds),
		TabularBinding: TabularModule,
	}
	globals.Freeze()
	return globals
}

// Bindings lists the names scripts may reference, sorted.
func Bindings() []string {
	names := []string{DatasetBinding, TabularBinding}
	sort.Strings(names)
	return names
}
