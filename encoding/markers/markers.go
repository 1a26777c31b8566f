// Package markers contains code for parsing marker-database and gene-symbol
// TSV files. A marker database has one row per (tissue, cell type) pair:
//
//	tissue	cellType	positiveMarkers	negativeMarkers	shortName
//	Immune system	B cells	CD19,MS4A1,CD79A		B
//
// Marker lists are comma-delimited; the negative list and the short name may
// be empty. A symbol table has one row per canonical symbol:
//
//	symbol	aliases
//	MS4A1	CD20
package markers

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"github.com/scbio/scrna/sctype"
)

type markerRow struct {
	Tissue          string `tsv:"tissue"`
	CellType        string `tsv:"cellType"`
	PositiveMarkers string `tsv:"positiveMarkers"`
	NegativeMarkers string `tsv:"negativeMarkers"`
	ShortName       string `tsv:"shortName"`
}

// splitMarkers splits a comma-delimited marker list, dropping empty tokens.
func splitMarkers(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Read parses a marker-database TSV from the given reader.
func Read(r io.Reader) (*sctype.MarkerDB, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.HasHeaderRow = true
	tsvReader.UseHeaderNames = true

	db := sctype.NewMarkerDB()
	nRow := 0
	for {
		var row markerRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "marker database row %d", nRow+1)
		}
		nRow++
		if row.Tissue == "" || row.CellType == "" {
			return nil, errors.Errorf("marker database row %d: tissue and cellType are required", nRow)
		}
		set := sctype.MarkerSet{
			Tissue:    row.Tissue,
			CellType:  row.CellType,
			ShortName: row.ShortName,
			Positive:  splitMarkers(row.PositiveMarkers),
			Negative:  splitMarkers(row.NegativeMarkers),
		}
		if err := db.Add(set); err != nil {
			return nil, errors.Wrapf(err, "marker database row %d", nRow)
		}
	}
	if nRow == 0 {
		return nil, errors.New("marker database is empty")
	}
	return db, nil
}

// ReadFile reads a marker-database TSV from a path, transparently
// decompressing by file extension.
func ReadFile(ctx context.Context, path string) (db *sctype.MarkerDB, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return Read(r)
}

type symbolRow struct {
	Symbol  string `tsv:"symbol"`
	Aliases string `tsv:"aliases"`
}

// ReadSymbols parses a gene-symbol table TSV from the given reader.
func ReadSymbols(r io.Reader) (*sctype.SymbolTable, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.HasHeaderRow = true
	tsvReader.UseHeaderNames = true

	var symbols []sctype.Symbol
	nRow := 0
	for {
		var row symbolRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "symbol table row %d", nRow+1)
		}
		nRow++
		if row.Symbol == "" {
			return nil, errors.Errorf("symbol table row %d: symbol is required", nRow)
		}
		symbols = append(symbols, sctype.Symbol{
			Canonical: row.Symbol,
			Aliases:   splitMarkers(row.Aliases),
		})
	}
	return sctype.NewSymbolTable(symbols), nil
}

// ReadSymbolsFile reads a gene-symbol table TSV from a path.
func ReadSymbolsFile(ctx context.Context, path string) (tab *sctype.SymbolTable, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return ReadSymbols(r)
}
