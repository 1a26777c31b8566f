package sctype

import (
	"fmt"
	"sort"
)

// TypeID is a dense sequence number (1, 2, 3, ...) assigned to a cell type
// (e.g., "Naive CD4+ T cells"). IDs are valid only within one process
// invocation.
type TypeID int32

const invalidTypeID = TypeID(0)

// MarkerSet holds the marker evidence for one cell type within one tissue.
type MarkerSet struct {
	// ID is a dense sequence number (1, 2, ...). It is valid only during the
	// current run.
	ID TypeID
	// CellType is the full cell-type name, unique within Tissue.
	CellType string
	// ShortName is an optional display abbreviation.
	ShortName string
	// Tissue is the tissue category this entry belongs to.
	Tissue string
	// Positive lists gene symbols whose expression is evidence for the type.
	Positive []string
	// Negative lists gene symbols whose expression is evidence against the
	// type. May be empty.
	Negative []string
}

type tissueType struct{ tissue, cellType string }

// MarkerDB stores the marker sets for all tissues. It is loaded once (see
// encoding/markers) and immutable afterwards. Thread compatible.
type MarkerDB struct {
	// names maps (tissue, cellType) to dense IDs.
	names map[tissueType]TypeID
	sets  []*MarkerSet // indexed by TypeID
}

// NewMarkerDB creates an empty MarkerDB.
func NewMarkerDB() *MarkerDB {
	return &MarkerDB{
		names: map[tissueType]TypeID{},
		sets:  []*MarkerSet{{CellType: "invalid"}},
	}
}

// TypeIDRange returns the range of type IDs registered in this object. The
// low end is closed, high end is open.
func (m *MarkerDB) TypeIDRange() (TypeID, TypeID) { return 1, TypeID(len(m.sets)) }

// MarkerSet gets the marker set given an ID. It always returns a non-nil set.
//
// REQUIRES: ID is valid.
func (m *MarkerDB) MarkerSet(id TypeID) *MarkerSet {
	if id == invalidTypeID {
		panic(id)
	}
	return m.sets[id]
}

// Add registers one marker set and assigns it a TypeID. It rejects a
// duplicate cell type within the same tissue, and a set whose positive and
// negative lists share a symbol (contradictory evidence).
func (m *MarkerDB) Add(set MarkerSet) error {
	key := tissueType{set.Tissue, set.CellType}
	if _, ok := m.names[key]; ok {
		return fmt.Errorf("duplicate cell type %q in tissue %q", set.CellType, set.Tissue)
	}
	pos := make(map[string]struct{}, len(set.Positive))
	for _, g := range set.Positive {
		pos[g] = struct{}{}
	}
	for _, g := range set.Negative {
		if _, ok := pos[g]; ok {
			return fmt.Errorf("cell type %q in tissue %q lists %q as both positive and negative marker",
				set.CellType, set.Tissue, g)
		}
	}
	id := TypeID(len(m.sets))
	set.ID = id
	m.names[key] = id
	m.sets = append(m.sets, &set)
	return nil
}

// Tissues returns the distinct tissue categories in the database, sorted.
func (m *MarkerDB) Tissues() []string {
	seen := map[string]struct{}{}
	var tissues []string
	for _, set := range m.sets[1:] {
		if _, ok := seen[set.Tissue]; !ok {
			seen[set.Tissue] = struct{}{}
			tissues = append(tissues, set.Tissue)
		}
	}
	sort.Strings(tissues)
	return tissues
}

// TissueSets returns the marker sets for one tissue, sorted by cell-type
// name. The result is empty if the tissue is unknown.
func (m *MarkerDB) TissueSets(tissue string) []*MarkerSet {
	var sets []*MarkerSet
	for _, set := range m.sets[1:] {
		if set.Tissue == tissue {
			sets = append(sets, set)
		}
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].CellType < sets[j].CellType })
	return sets
}
