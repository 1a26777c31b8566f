package sctype

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestSymbolTableLookup(t *testing.T) {
	tab := NewSymbolTable([]Symbol{
		{Canonical: "MS4A1", Aliases: []string{"CD20"}},
		{Canonical: "CD3E"},
	})
	got, ok := tab.Lookup("MS4A1")
	expect.True(t, ok)
	expect.EQ(t, got, "MS4A1")

	got, ok = tab.Lookup("ms4a1") // case-insensitive
	expect.True(t, ok)
	expect.EQ(t, got, "MS4A1")

	got, ok = tab.Lookup("cd20") // alias
	expect.True(t, ok)
	expect.EQ(t, got, "MS4A1")

	_, ok = tab.Lookup("GZMB")
	expect.False(t, ok)
}

func TestSymbolTableFromGenes(t *testing.T) {
	tab := NewSymbolTableFromGenes([]string{"Cd19", "CD3E"})
	expect.EQ(t, tab.Len(), 2)
	got, ok := tab.Lookup("CD19")
	expect.True(t, ok)
	expect.EQ(t, got, "Cd19") // canonical form is the matrix spelling
}

func TestSymbolTableSuggest(t *testing.T) {
	tab := NewSymbolTable([]Symbol{{Canonical: "CD3E"}, {Canonical: "CD19"}})
	got, ok := tab.Suggest("CD3E1", 2)
	expect.True(t, ok)
	expect.EQ(t, got, "CD3E")

	_, ok = tab.Suggest("TOTALLYWRONG", 2)
	expect.False(t, ok)

	_, ok = tab.Suggest("CD3E1", 0) // disabled
	expect.False(t, ok)
}
