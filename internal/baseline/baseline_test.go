package baseline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/resize"
	"github.com/stretchr/testify/require"
)

// writeNpyF32 hand-assembles a minimal v1.0 .npy file, mirroring what
// numpy.save actually emits for a float32 array, so LoadNumpy can be
// tested without a real baseline corpus checked into the repo.
func writeNpyF32(t *testing.T, path string, shape []int, data []float32, fortran bool) {
	t.Helper()

	shapeStr := ""
	for i, d := range shape {
		if i > 0 {
			shapeStr += ", "
		}
		shapeStr += fmt.Sprintf("%d", d)
	}
	if len(shape) == 1 {
		shapeStr += ","
	}

	order := "False"
	if fortran {
		order = "True"
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': %s, 'shape': (%s), }", order, shapeStr)
	// Pad so magic(6)+version(2)+headerlen(2)+header is a multiple of 64.
	total := 6 + 2 + 2 + len(header) + 1
	pad := (64 - total%64) % 64
	header += string(bytes.Repeat([]byte{' '}, pad)) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	if fortran {
		// Re-layout C-order `data` (given in C order for shape `shape`)
		// into Fortran (column-major) order for the on-disk payload.
		fdata := toFortranOrder(data, shape)
		for _, v := range fdata {
			binary.Write(&buf, binary.LittleEndian, v)
		}
	} else {
		for _, v := range data {
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func toFortranOrder(data []float32, shape []int) []float32 {
	ndims := len(shape)
	cStride := make([]int, ndims)
	s := 1
	for d := ndims - 1; d >= 0; d-- {
		cStride[d] = s
		s *= shape[d]
	}
	n := len(data)
	out := make([]float32, n)
	idx := make([]int, ndims)
	for flat := 0; flat < n; flat++ {
		rem := flat
		for d := 0; d < ndims; d++ {
			idx[d] = rem / cStride[d]
			rem %= cStride[d]
		}
		// Fortran offset: first axis varies fastest.
		fOffset := 0
		fStride := 1
		for d := 0; d < ndims; d++ {
			fOffset += idx[d] * fStride
			fStride *= shape[d]
		}
		out[fOffset] = data[flat]
	}
	return out
}

func TestLoadNumpyCOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c_order.npy")
	data := []float32{1, 2, 3, 4, 5, 6}
	writeNpyF32(t, path, []int{2, 3}, data, false)

	arr, err := LoadNumpy(path)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, arr.Shape)
	require.Equal(t, 1.0, arr.At(0, 0))
	require.Equal(t, 6.0, arr.At(1, 2))
	require.Equal(t, 4.0, arr.At(1, 0))
}

func TestLoadNumpyFortranOrderTransposedBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f_order.npy")
	// Same logical C-order values as the C-order test, but persisted in
	// Fortran layout on disk: LoadNumpy must transpose back so both
	// tests see an identical logical array.
	data := []float32{1, 2, 3, 4, 5, 6}
	writeNpyF32(t, path, []int{2, 3}, data, true)

	arr, err := LoadNumpy(path)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, arr.Shape)
	require.Equal(t, 1.0, arr.At(0, 0))
	require.Equal(t, 2.0, arr.At(0, 1))
	require.Equal(t, 6.0, arr.At(1, 2))
}

func TestLoadNumpyRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.npy")
	require.NoError(t, os.WriteFile(path, []byte("not an npy file"), 0o644))

	_, err := LoadNumpy(path)
	require.Error(t, err)
}

func TestMaxAbsDiffAndTolerance(t *testing.T) {
	got := Array{Shape: []int{3}, Data: []float64{1.0, 2.0005, 3.0}}
	want := Array{Shape: []int{3}, Data: []float64{1.0, 2.0, 3.0}}

	diff, err := MaxAbsDiff(got, want)
	require.NoError(t, err)
	require.InDelta(t, 0.0005, diff, 1e-9)

	require.NoError(t, WithinTolerance(got, want, 1e-2))
	require.Error(t, WithinTolerance(got, want, 1e-4))
}

func TestMaxAbsDiffLengthMismatch(t *testing.T) {
	_, err := MaxAbsDiff(Array{Data: []float64{1}}, Array{Data: []float64{1, 2}})
	require.Error(t, err)
}

func TestLevenshteinSimilarity(t *testing.T) {
	require.Equal(t, 1.0, LevenshteinSimilarity("same", "same"))
	require.Equal(t, 1.0, LevenshteinSimilarity("", ""))

	sim := LevenshteinSimilarity("func main() {}", "func main(){}")
	require.InDelta(t, 1.0-1.0/14.0, sim, 1e-9) // one deletion over 14 runes

	sim = LevenshteinSimilarity("abcdefgh", "zzzzzzzz")
	require.Less(t, sim, 0.1)
}

func TestPositionErrorAndOCRReport(t *testing.T) {
	a := geometry.NewBBox(0, 0, 10, 10, geometry.TopLeft)
	b := geometry.NewBBox(5, 0, 15, 10, geometry.TopLeft)
	require.InDelta(t, 5.0, PositionError(a, b), 1e-9)

	pairs := [][2]geometry.BBox{
		{geometry.NewBBox(0, 0, 10, 10, geometry.TopLeft), geometry.NewBBox(0, 0, 10, 10, geometry.TopLeft)},
		{geometry.NewBBox(0, 0, 10, 10, geometry.TopLeft), geometry.NewBBox(100, 0, 110, 10, geometry.TopLeft)},
	}
	report := EvaluateOCRPositions(pairs, 50)
	require.Equal(t, 2, report.Matched)
	require.Equal(t, 1, report.WithinTolerance)
	require.InDelta(t, 0.5, report.FractionWithinTolerance(), 1e-9)
}

func TestTokensEqual(t *testing.T) {
	require.True(t, TokensEqual([]string{"fcel", "nl"}, []string{"fcel", "nl"}))
	require.False(t, TokensEqual([]string{"fcel", "nl"}, []string{"fcel"}))
}

func TestCompareResizeExactDetectsMismatch(t *testing.T) {
	img := resize.NewImage(1, 1, 1)
	img.Pix[0] = 5
	want := Array{Shape: []int{1, 1, 1}, Data: []float64{6}}
	err := CompareResizeExact(img, want)
	require.Error(t, err)

	want.Data[0] = 5
	require.NoError(t, CompareResizeExact(img, want))
}

func TestLoadPageSizeAndTableStructure(t *testing.T) {
	dir := t.TempDir()
	doc := "sample_doc"
	pageDirPath := filepath.Join(dir, doc, "page_0", "preprocessing")
	require.NoError(t, os.MkdirAll(pageDirPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pageDirPath, "page_size.json"),
		[]byte(`{"width": 612.0, "height": 792.0}`), 0o644))

	ps, err := LoadPageSize(dir, doc, 0)
	require.NoError(t, err)
	require.Equal(t, 612.0, ps.Width)
	require.Equal(t, 792.0, ps.Height)

	tablePath := filepath.Join(dir, doc, "page_0", "table_0_python_final.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(tablePath), 0o755))
	require.NoError(t, os.WriteFile(tablePath, []byte(`{
		"num_rows": 2, "num_cols": 2,
		"table_cells": [
			{"row_span":1,"col_span":1,"bbox":{"l":0,"t":0,"r":10,"b":10},"text":"A",
			 "start_row_offset_idx":0,"end_row_offset_idx":0,"start_col_offset_idx":0,"end_col_offset_idx":0,
			 "column_header":true,"row_header":false}
		]
	}`), 0o644))

	structure, err := LoadTableStructures(dir, doc, 0, []string{"t1"})
	require.NoError(t, err)
	got, ok := structure["t1"]
	require.True(t, ok)
	require.Equal(t, 2, got.Rows)
	require.Equal(t, 2, got.Cols)
	require.Len(t, got.Cells, 1)
	require.Equal(t, "A", got.Cells[0].Text)
	require.True(t, got.Cells[0].Header)
	require.Equal(t, 0, got.Cells[0].RowStart)
	require.Equal(t, 1, got.Cells[0].RowEnd)
}

func TestLoadTableStructureLegacyRowColFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"num_rows": 1, "num_cols": 1,
		"cells": [
			{"row": -1, "col": -1, "row_span": 1, "col_span": 1,
			 "bbox": {"l":0,"t":0,"r":1,"b":1}, "text": "H"}
		]
	}`), 0o644))

	structure, err := LoadTableStructure(path)
	require.NoError(t, err)
	require.Len(t, structure.Cells, 1)
	require.Equal(t, 0, structure.Cells[0].RowStart)
	require.Equal(t, 0, structure.Cells[0].ColStart)
}

func TestLoadAssemblyBaseline(t *testing.T) {
	dir := t.TempDir()
	doc := "sample_doc"
	base := filepath.Join(dir, doc, "page_0", "assembly")
	require.NoError(t, os.MkdirAll(base, 0o755))

	elements := `[{"kind":"text","cluster_id":1,"label":"text","text":"hello"}]`
	require.NoError(t, os.WriteFile(filepath.Join(base, "elements.json"), []byte(elements), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "body.json"), []byte(elements), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "headers.json"), []byte(`[]`), 0o644))

	baseline, err := LoadAssemblyBaseline(dir, doc, 0)
	require.NoError(t, err)
	require.Len(t, baseline.Elements, 1)
	require.Equal(t, "hello", baseline.Elements[0].Text)
	require.Empty(t, baseline.Headers)
}

func TestLoadStageClustersAndCells(t *testing.T) {
	dir := t.TempDir()
	doc := "sample_doc"
	pageRoot := filepath.Join(dir, doc, "page_0")
	require.NoError(t, os.MkdirAll(pageRoot, 0o755))

	clustersJSON := `[{"id":0,"label":"text","confidence":0.9,"bbox":{"l":0,"t":0,"r":100,"b":20},"class_id":9}]`
	require.NoError(t, os.WriteFile(filepath.Join(pageRoot, "stage03_labelled.json"), []byte(clustersJSON), 0o644))

	clusters, err := LoadStageClusters(dir, doc, 0, "stage03_labelled.json")
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Equal(t, "text", string(clusters[0].Label))
	require.InDelta(t, 0.9, clusters[0].Confidence, 1e-9)

	cellsPath := filepath.Join(pageRoot, "native_cells.json")
	cellsJSON := `[{"text":"hi","bbox":{"l":0,"t":0,"r":10,"b":10},"confidence":1.0,"from_ocr":false}]`
	require.NoError(t, os.WriteFile(cellsPath, []byte(cellsJSON), 0o644))

	cells, err := LoadCells(cellsPath)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, "hi", cells[0].Text)
}

func TestArrayLenAndFloatBits(t *testing.T) {
	a := Array{Shape: []int{2, 3}}
	require.Equal(t, 6, a.Len())

	require.Equal(t, float32(1.5), math.Float32frombits(math.Float32bits(1.5)))
}
