package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/layoutdetect"
	"github.com/docpipeline/core/internal/table"
)

// LoadJSON decodes a reference JSON file into dst, mirroring
// baseline_loaders.rs::load_json's generic-file-to-struct contract.
func LoadJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// PageSize is the reference page-size baseline shape.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LoadPageSize loads baseline_data/<doc>/page_<n>/preprocessing/page_size.json.
func LoadPageSize(root, doc string, pageNo int) (PageSize, error) {
	var ps PageSize
	path := filepath.Join(root, doc, pageDir(pageNo), "preprocessing", "page_size.json")
	err := LoadJSON(path, &ps)
	return ps, err
}

// RawClusterJSON mirrors the labelled-cluster JSON shape emitted at
// stage 3/stage 4 boundaries under baseline_data_modular.
type RawClusterJSON struct {
	ID         int     `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       struct {
		L float64 `json:"l"`
		T float64 `json:"t"`
		R float64 `json:"r"`
		B float64 `json:"b"`
	} `json:"bbox"`
	ClassID int `json:"class_id"`
}

// LoadStageClusters loads baseline_data_modular/<doc>/page_<n>/stage0N_<name>.json,
// per §6's "Persisted state layout" filename contract.
func LoadStageClusters(root, doc string, pageNo int, stageFile string) ([]layoutdetect.RawCluster, error) {
	path := filepath.Join(root, doc, pageDir(pageNo), stageFile)
	var raw []RawClusterJSON
	if err := LoadJSON(path, &raw); err != nil {
		return nil, err
	}

	out := make([]layoutdetect.RawCluster, len(raw))
	for i, r := range raw {
		out[i] = layoutdetect.RawCluster{
			Label:      layoutdetect.Label(r.Label),
			Confidence: r.Confidence,
			BBox:       geometry.NewBBox(r.BBox.L, r.BBox.T, r.BBox.R, r.BBox.B, geometry.TopLeft),
		}
	}
	return out, nil
}

// TableCellJSON is one cell of a reference table-structure baseline,
// supporting both the old TableFormer-raw format (row/col, -1 for
// header) and the Python-final format (precomputed offset indices),
// matching baseline_loaders.rs::BaselineTableCell exactly.
type TableCellJSON struct {
	Row      *int `json:"row"`
	Col      *int `json:"col"`
	RowSpan  int  `json:"row_span"`
	ColSpan  int  `json:"col_span"`
	BBox     struct {
		L float64 `json:"l"`
		T float64 `json:"t"`
		R float64 `json:"r"`
		B float64 `json:"b"`
	} `json:"bbox"`
	Text                string `json:"text"`
	StartRowOffsetIdx   *int   `json:"start_row_offset_idx"`
	EndRowOffsetIdx     *int   `json:"end_row_offset_idx"`
	StartColOffsetIdx   *int   `json:"start_col_offset_idx"`
	EndColOffsetIdx     *int   `json:"end_col_offset_idx"`
	ColumnHeader        *bool  `json:"column_header"`
	RowHeader           *bool  `json:"row_header"`
}

// TableStructureJSON is the reference table-structure baseline, with
// "cells" accepted as an alias for "table_cells" for the older format.
type TableStructureJSON struct {
	NumRows     int             `json:"num_rows"`
	NumCols     int             `json:"num_cols"`
	TableCells  []TableCellJSON `json:"table_cells"`
	CellsLegacy []TableCellJSON `json:"cells"`
}

func (t TableStructureJSON) cells() []TableCellJSON {
	if len(t.TableCells) > 0 {
		return t.TableCells
	}
	return t.CellsLegacy
}

// LoadTableStructure loads a table-structure baseline and converts it
// to this package's table.Structure, resolving offset indices from
// either the Python-final or TableFormer-raw format the same way
// baseline_loaders.rs::convert_to_table_element does.
func LoadTableStructure(path string) (table.Structure, error) {
	var raw TableStructureJSON
	if err := LoadJSON(path, &raw); err != nil {
		return table.Structure{}, err
	}

	cells := raw.cells()
	out := make([]table.Cell, len(cells))
	for i, c := range cells {
		startRow, endRow, startCol, endCol := resolveOffsets(c)
		out[i] = table.Cell{
			RowStart: startRow,
			RowEnd:   endRow + 1,
			ColStart: startCol,
			ColEnd:   endCol + 1,
			BBox:     geometry.NewBBox(c.BBox.L, c.BBox.T, c.BBox.R, c.BBox.B, geometry.TopLeft),
			Header:   boolOr(c.ColumnHeader, false) || boolOr(c.RowHeader, false),
			Empty:    c.Text == "",
			Text:     c.Text,
		}
	}

	return table.Structure{
		Rows:  raw.NumRows,
		Cols:  raw.NumCols,
		Cells: out,
	}, nil
}

func resolveOffsets(c TableCellJSON) (startRow, endRow, startCol, endCol int) {
	if c.StartRowOffsetIdx != nil && c.EndRowOffsetIdx != nil && c.StartColOffsetIdx != nil && c.EndColOffsetIdx != nil {
		return *c.StartRowOffsetIdx, *c.EndRowOffsetIdx, *c.StartColOffsetIdx, *c.EndColOffsetIdx
	}
	row := intOr(c.Row, -1)
	col := intOr(c.Col, -1)
	if row < 0 {
		row = 0
	}
	if col < 0 {
		col = 0
	}
	rowSpan := c.RowSpan
	if rowSpan == 0 {
		rowSpan = 1
	}
	colSpan := c.ColSpan
	if colSpan == 0 {
		colSpan = 1
	}
	return row, row + rowSpan - 1, col, col + colSpan - 1
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// LoadTableStructures loads every table_<i>_python_final.json (or its
// legacy table/table_<i>/output_table_structure.json fallback) for a
// page and maps each onto the table cluster at the matching sorted
// index, per baseline_loaders.rs::load_table_structures.
func LoadTableStructures(root, doc string, pageNo int, tableClusterIDs []string) (map[string]table.Structure, error) {
	sorted := append([]string(nil), tableClusterIDs...)
	sort.Strings(sorted)

	out := make(map[string]table.Structure)
	pageRoot := filepath.Join(root, doc, pageDir(pageNo))
	for i, id := range sorted {
		pythonFinal := filepath.Join(pageRoot, fmt.Sprintf("table_%d_python_final.json", i))
		legacy := filepath.Join(pageRoot, "table", fmt.Sprintf("table_%d", i), "output_table_structure.json")

		path := pythonFinal
		if _, err := os.Stat(path); err != nil {
			path = legacy
			if _, err := os.Stat(path); err != nil {
				continue
			}
		}

		structure, err := LoadTableStructure(path)
		if err != nil {
			return nil, err
		}
		out[id] = structure
	}
	return out, nil
}

// AssemblyElementJSON is the reference per-page assembly baseline shape.
type AssemblyElementJSON struct {
	Kind           string `json:"kind"`
	ClusterID      int    `json:"cluster_id"`
	Label          string `json:"label"`
	Text           string `json:"text"`
	EnrichedLang   string `json:"enriched_language,omitempty"`
}

// AssemblyBaseline mirrors baseline_loaders.rs::AssemblyBaseline.
type AssemblyBaseline struct {
	Elements []AssemblyElementJSON `json:"elements"`
	Body     []AssemblyElementJSON `json:"body"`
	Headers  []AssemblyElementJSON `json:"headers"`
}

// LoadAssemblyBaseline loads baseline_data/<doc>/page_<n>/assembly/{elements,body,headers}.json.
func LoadAssemblyBaseline(root, doc string, pageNo int) (AssemblyBaseline, error) {
	base := filepath.Join(root, doc, pageDir(pageNo), "assembly")
	var out AssemblyBaseline
	if err := LoadJSON(filepath.Join(base, "elements.json"), &out.Elements); err != nil {
		return out, err
	}
	if err := LoadJSON(filepath.Join(base, "body.json"), &out.Body); err != nil {
		return out, err
	}
	if err := LoadJSON(filepath.Join(base, "headers.json"), &out.Headers); err != nil {
		return out, err
	}
	return out, nil
}

// NativeCellJSON is the reference native-cell-pool baseline shape,
// used by stage tests that need a real cell pool without running C1.
type NativeCellJSON struct {
	Text string `json:"text"`
	BBox struct {
		L float64 `json:"l"`
		T float64 `json:"t"`
		R float64 `json:"r"`
		B float64 `json:"b"`
	} `json:"bbox"`
	Confidence float64 `json:"confidence"`
	FromOCR    bool    `json:"from_ocr"`
}

// LoadCells loads a flat list of reference TextCells from path.
func LoadCells(path string) ([]cell.TextCell, error) {
	var raw []NativeCellJSON
	if err := LoadJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make([]cell.TextCell, len(raw))
	for i, c := range raw {
		src := cell.SourceNative
		if c.FromOCR {
			src = cell.SourceOCR
		}
		out[i] = cell.TextCell{
			Text:       c.Text,
			BBox:       geometry.NewBBox(c.BBox.L, c.BBox.T, c.BBox.R, c.BBox.B, geometry.TopLeft),
			Source:     src,
			Confidence: c.Confidence,
		}
	}
	return out, nil
}

func pageDir(pageNo int) string {
	return fmt.Sprintf("page_%d", pageNo)
}
