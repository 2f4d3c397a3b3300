// Package raster turns a PDF page into the two inputs every downstream
// component needs: a rasterized page image and the pool of native text
// cells recoverable from the page's text layer (C1). It mirrors the
// reference PDF pipeline's split between a shell-out rasterizer
// (poppler's pdftoppm, when available) and a pure-Go text extractor
// (github.com/ledongthuc/pdf), generalized from single-document
// translation to per-page cell/image extraction for the layout
// pipeline.
package raster

import (
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	pdfcpuapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/logger"
	"github.com/docpipeline/core/internal/mupdf"
)

// Page bundles one page's rasterized image with its native text cells
// and pixel dimensions, the unit the pipeline (C13) hands into cascade
// routing and cluster resolution.
type Page struct {
	Number int
	Image  image.Image
	Cells  []cell.TextCell
	Width  float64
	Height float64
}

// Config tunes rasterization.
type Config struct {
	DPI int // rasterization resolution; the reference default is 200
}

// DefaultConfig mirrors the reference converter's default DPI.
func DefaultConfig() Config {
	return Config{DPI: 200}
}

// Extractor rasterizes pages and extracts native text cells from a PDF
// file. It shells out to pdftoppm when available, the way the
// reference converter does, and falls back to reporting an IO error
// asking the operator to install poppler-utils otherwise — pure-Go PDF
// rendering is out of scope the same way it was for the reference
// implementation's fallback path.
type Extractor struct {
	cfg        Config
	tempDir    string
	usePoppler bool
}

// NewExtractor builds an Extractor with the given config.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg, usePoppler: popplerAvailable()}
}

func popplerAvailable() bool {
	cmd := exec.Command("pdftoppm", "-v")
	hideWindowOnWindows(cmd)
	return cmd.Run() == nil
}

// PageCount returns the PDF's page count via pdfcpu, the lightweight
// path used just for enumeration (rasterization and text extraction go
// through ledongthuc/pdf and pdftoppm instead).
func PageCount(pdfPath string) (int, error) {
	ctx, err := pdfcpuapi.ReadContextFile(pdfPath)
	if err != nil {
		return 0, docerrors.IO(fmt.Errorf("reading pdf context: %w", err))
	}
	return ctx.PageCount, nil
}

// ExtractPage rasterizes one page and pulls its native text cells.
// Page numbers are 1-indexed, matching the PDF spec's convention.
func (e *Extractor) ExtractPage(pdfPath string, pageNum int) (Page, error) {
	logger.Debug("rasterizing page",
		logger.String("pdf", filepath.Base(pdfPath)),
		logger.Int("page", pageNum),
		logger.Int("dpi", e.cfg.DPI))

	img, err := e.rasterize(pdfPath, pageNum)
	if err != nil {
		return Page{}, err
	}

	cells, pageHeight, err := e.extractCells(pdfPath, pageNum)
	if err != nil {
		return Page{}, err
	}

	// Cells come out in PDF points; scale them into the raster's pixel
	// frame so they share units with Image, Width and Height.
	topLeft := toTopLeftCells(cells, pageHeight)
	scale := float64(e.cfg.DPI) / 72.0
	for i := range topLeft {
		b := topLeft[i].BBox
		topLeft[i].BBox = geometry.NewBBox(b.Left*scale, b.Top*scale, b.Right*scale, b.Bottom*scale, geometry.TopLeft)
	}

	bounds := img.Bounds()
	return Page{
		Number: pageNum,
		Image:  img,
		Cells:  topLeft,
		Width:  float64(bounds.Dx()),
		Height: float64(bounds.Dy()),
	}, nil
}

func (e *Extractor) rasterize(pdfPath string, pageNum int) (image.Image, error) {
	if e.usePoppler {
		return e.rasterizeWithPoppler(pdfPath, pageNum)
	}
	return nil, docerrors.IO(fmt.Errorf(
		"poppler-utils not found; install pdftoppm (Ubuntu/Debian: apt-get install poppler-utils, macOS: brew install poppler)"))
}

func (e *Extractor) rasterizeWithPoppler(pdfPath string, pageNum int) (image.Image, error) {
	if e.tempDir == "" {
		dir, err := os.MkdirTemp("", "docpipeline_raster_*")
		if err != nil {
			return nil, docerrors.IO(fmt.Errorf("creating temp dir: %w", err))
		}
		e.tempDir = dir
	}

	outputPrefix := filepath.Join(e.tempDir, fmt.Sprintf("page_%d", pageNum))
	args := []string{
		"-f", fmt.Sprintf("%d", pageNum),
		"-l", fmt.Sprintf("%d", pageNum),
		"-png",
		"-r", fmt.Sprintf("%d", e.cfg.DPI),
		"-singlefile",
		pdfPath,
		outputPrefix,
	}

	cmd := exec.Command("pdftoppm", args...)
	hideWindowOnWindows(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, docerrors.IO(fmt.Errorf("pdftoppm failed: %w, output: %s", err, out))
	}

	imgPath := outputPrefix + ".png"
	defer os.Remove(imgPath)

	f, err := os.Open(imgPath)
	if err != nil {
		return nil, docerrors.IO(fmt.Errorf("opening rasterized page: %w", err))
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, docerrors.IO(fmt.Errorf("decoding rasterized page: %w", err))
	}
	return img, nil
}

// Cleanup removes any temp directory created during rasterization.
func (e *Extractor) Cleanup() {
	if e.tempDir != "" {
		os.RemoveAll(e.tempDir)
		e.tempDir = ""
	}
}

// extractCells pulls one page's native text cells in PDF (bottom-left
// origin) coordinates, plus the page height needed to flip them to
// top-left. It prefers the cgo MuPDF backend when the binary was built
// with it (richer per-block font-size info than the pure-Go path), and
// falls back to ledongthuc/pdf otherwise — mirroring the teacher's own
// cgo-gated-with-stub pattern for optional native dependencies.
func (e *Extractor) extractCells(pdfPath string, pageNum int) ([]cell.TextCell, float64, error) {
	if mupdf.IsAvailable() {
		if cells, pageHeight, ok := extractCellsMuPDF(pdfPath, pageNum); ok {
			return cells, pageHeight, nil
		}
	}
	return extractCells(pdfPath, pageNum)
}

// extractCellsMuPDF extracts native text cells via the cgo MuPDF
// binding's structured text extraction. Returns ok=false on any
// failure so the caller transparently falls back to the pure-Go path.
func extractCellsMuPDF(pdfPath string, pageNum int) ([]cell.TextCell, float64, bool) {
	ctx, err := mupdf.NewContext()
	if err != nil {
		return nil, 0, false
	}
	defer ctx.Close()

	doc, err := ctx.OpenDocument(pdfPath)
	if err != nil {
		return nil, 0, false
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.PageCount() {
		return nil, 0, false
	}

	x0, y0, x1, y1 := doc.PageBounds(pageNum - 1)
	pageHeight := y1 - y0
	if pageHeight <= 0 {
		pageHeight = 792.0
	}
	_ = x0
	_ = x1

	blocks, err := doc.ExtractTextBlocks(pageNum - 1)
	if err != nil {
		return nil, 0, false
	}

	cells := make([]cell.TextCell, 0, len(blocks))
	for _, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" || hasExcessiveNonPrintable(text) {
			continue
		}
		cells = append(cells, cell.TextCell{
			Text:     text,
			BBox:     geometry.NewBBox(b.X, b.Y, b.X+b.Width, b.Y+b.Height, geometry.BottomLeft),
			Source:   cell.SourceNative,
			FontSize: b.FontSize,
		})
	}

	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].BBox.Top > cells[j].BBox.Top
	})

	return cells, pageHeight, true
}

func extractCells(pdfPath string, pageNum int) ([]cell.TextCell, float64, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, 0, docerrors.IO(fmt.Errorf("opening pdf: %w", err))
	}
	defer f.Close()

	if pageNum < 1 || pageNum > r.NumPage() {
		return nil, 0, docerrors.Preprocessing(pageNum, "page number out of range")
	}

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return nil, 0, nil
	}

	mediaBox := page.V.Key("MediaBox")
	pageHeight := 792.0 // US Letter default, matching the reference extractor's fallback
	if mediaBox.Len() == 4 {
		pageHeight = mediaBox.Index(3).Float64() - mediaBox.Index(1).Float64()
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, pageHeight, nil
	}

	var cells []cell.TextCell
	for _, row := range rows {
		c, ok := rowToCell(row)
		if ok {
			cells = append(cells, c)
		}
	}

	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].BBox.Top > cells[j].BBox.Top // higher Y first in bottom-left coords
	})

	return cells, pageHeight, nil
}

func rowToCell(row pdf.Row) (cell.TextCell, bool) {
	if len(row.Content) == 0 {
		return cell.TextCell{}, false
	}

	var text strings.Builder
	var minX, maxX, minY, maxY float64
	var totalFontSize float64
	var fontName string
	var bold, italic bool
	first := true

	for _, t := range row.Content {
		if t.S == "" || isPostScriptCode(t.S) {
			continue
		}
		text.WriteString(t.S)

		if first {
			minX, maxX, minY, maxY = t.X, t.X, t.Y, t.Y
			fontName = t.Font
			first = false
		} else {
			minX = minFloat(minX, t.X)
			maxX = maxFloat(maxX, t.X)
			minY = minFloat(minY, t.Y)
			maxY = maxFloat(maxY, t.Y)
		}
		totalFontSize += t.FontSize

		lower := strings.ToLower(t.Font)
		if strings.Contains(lower, "bold") {
			bold = true
		}
		if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
			italic = true
		}
	}

	content := strings.TrimSpace(text.String())
	if content == "" || isPostScriptCode(content) || hasExcessiveNonPrintable(content) {
		return cell.TextCell{}, false
	}

	avgFontSize := totalFontSize / float64(len(row.Content))
	if avgFontSize <= 0 {
		avgFontSize = 10.0
	}

	estimatedWidth := float64(len(content)) * avgFontSize * 0.5
	if maxX > minX {
		actualWidth := maxX - minX + avgFontSize
		if actualWidth > estimatedWidth {
			estimatedWidth = actualWidth
		}
	}
	estimatedHeight := avgFontSize * 1.2

	return cell.TextCell{
		Text:     content,
		BBox:     geometry.NewBBox(minX, minY+estimatedHeight, minX+estimatedWidth, minY, geometry.BottomLeft),
		Source:   cell.SourceNative,
		FontName: fontName,
		FontSize: avgFontSize,
		Bold:     bold,
		Italic:   italic,
	}, true
}

// toTopLeftCells converts every cell's bbox to top-left coordinates so
// downstream code (cluster resolution, assembly) never has to reason
// about origin.
func toTopLeftCells(cells []cell.TextCell, pageHeight float64) []cell.TextCell {
	out := make([]cell.TextCell, len(cells))
	for i, c := range cells {
		c.BBox = c.BBox.ToTopLeft(pageHeight)
		out[i] = c
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// isPostScriptCode filters the stray PDF content-stream operators that
// some malformed PDFs leak into the text layer.
func isPostScriptCode(s string) bool {
	if len(s) == 0 {
		return false
	}
	opCount := 0
	for _, tok := range strings.Fields(s) {
		switch tok {
		case "BT", "ET", "Tf", "Td", "TD", "Tj", "TJ", "re", "f", "S", "cm", "q", "Q":
			opCount++
		}
	}
	return opCount > 0 && opCount >= len(strings.Fields(s))/2
}

// hasExcessiveNonPrintable rejects text dominated by control characters
// or replacement glyphs, a sign the row decoded garbage.
func hasExcessiveNonPrintable(s string) bool {
	if len(s) == 0 {
		return false
	}
	nonPrintable := 0
	total := 0
	for _, r := range s {
		total++
		if r == unicode.ReplacementChar || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			nonPrintable++
		}
	}
	return total > 0 && float64(nonPrintable)/float64(total) > 0.3
}
