// Package pipeline wires the per-page components (C1–C11) into the
// document-level orchestrator (C13): rasterize, route, detect, cluster,
// enrich, and assemble, fanned out across pages by a bounded worker
// pool the way the reference batch translator fans work across text
// blocks (internal/pdf/batch_translator.go's semaphore + sync.WaitGroup
// + index-ordered results slice), generalized here to a page-scoped
// error that only aborts one page instead of the whole batch.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strconv"
	"sync"

	"github.com/docpipeline/core/internal/assemble"
	"github.com/docpipeline/core/internal/cascade"
	"github.com/docpipeline/core/internal/cluster"
	"github.com/docpipeline/core/internal/codeformula"
	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/inference"
	"github.com/docpipeline/core/internal/layoutdetect"
	"github.com/docpipeline/core/internal/logger"
	"github.com/docpipeline/core/internal/ocr"
	"github.com/docpipeline/core/internal/preprocess"
	"github.com/docpipeline/core/internal/raster"
	"github.com/docpipeline/core/internal/resize"
	"github.com/docpipeline/core/internal/table"
)

// FailurePolicy decides what a page-scoped failure leaves behind in the
// assembled document.
type FailurePolicy int

const (
	// FailurePlaceholder keeps the page in the output with no elements
	// and its Err populated, preserving page_no continuity.
	FailurePlaceholder FailurePolicy = iota
	// FailureOmit drops the page entirely from Document.Pages.
	FailureOmit
)

// Config is the orchestrator's construction-time configuration. The
// stage sub-configs mirror the closed configuration set (§6); the
// vocabularies are deliberately not defaulted here — an OTSL token
// order or a generative decoder's token-to-string table is tied to
// whichever model export is actually loaded, so invention would be a
// silent correctness bug instead of a calibration choice.
type Config struct {
	Concurrency int

	CascadeMode      cascade.Mode
	Thresholds       cascade.Thresholds
	HeuristicConfig  cascade.HeuristicConfig
	LayoutResolution int
	LayoutConfig     layoutdetect.Config
	ClusterConfig    cluster.Config
	AssembleConfig   assemble.Config

	OCREnabled            bool
	TableStructureEnabled bool
	CodeFormulaEnabled    bool

	OCRCharset       []rune
	TableVocab       []table.Token
	CodeFormulaVocab []string

	FailurePolicy FailurePolicy
}

// DefaultConfig returns calibrated stage defaults with every optional
// stage enabled and a modest worker pool. Callers must still supply
// OCRCharset/TableVocab/CodeFormulaVocab before constructing a Pipeline
// with any of those stages enabled.
func DefaultConfig() Config {
	return Config{
		Concurrency:           4,
		CascadeMode:           cascade.ModeAuto,
		Thresholds:            cascade.DefaultThresholds(),
		HeuristicConfig:       cascade.DefaultHeuristicConfig(),
		LayoutResolution:      640,
		LayoutConfig:          layoutdetect.DefaultConfig(),
		ClusterConfig:         cluster.DefaultConfig(),
		AssembleConfig:        assemble.DefaultConfig(),
		OCREnabled:            true,
		TableStructureEnabled: true,
		CodeFormulaEnabled:    true,
		FailurePolicy:         FailurePlaceholder,
	}
}

// PageResult is one page's outcome. Err is set only for page-scoped
// failures (§7); Elements is empty in that case under both failure
// policies, and the page is omitted from Document.Pages entirely under
// FailureOmit.
type PageResult struct {
	PageNumber int
	Route      cascade.Route
	Elements   []assemble.PageElement
	Err        error
}

// Stats summarizes a document run, exposing the cascade router's
// routing counts per §4.5's contract.
type Stats struct {
	MLCount        int
	HeuristicCount int
	FailedPages    int
}

// Document is the final, page_no-ordered result of processing one PDF.
type Document struct {
	Pages []PageResult
	Stats Stats
}

// Pipeline owns the stage components and drives them across a
// document's pages.
type Pipeline struct {
	cfg            Config
	extractor      *raster.Extractor
	backend        inference.Backend
	ocrEngine      ocr.Engine
	cfPreprocessor *preprocess.CodeFormulaPreprocessor
}

// New builds a Pipeline. extractor and backend are required; an OCR
// engine is constructed internally from backend and cfg.OCRCharset when
// cfg.OCREnabled is set, since RecognizeRegion's cascade is itself just
// a caller of the same Backend every other stage shares (§5's single
// session cache).
func New(cfg Config, extractor *raster.Extractor, backend inference.Backend) (*Pipeline, error) {
	if extractor == nil {
		return nil, docerrors.Config("pipeline requires a raster.Extractor")
	}
	if backend == nil {
		return nil, docerrors.Config("pipeline requires an inference.Backend")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	var ocrEngine ocr.Engine
	if cfg.OCREnabled {
		if len(cfg.OCRCharset) == 0 {
			return nil, docerrors.Config("ocr_enabled requires a non-empty OCRCharset")
		}
		var err error
		ocrEngine, err = ocr.NewCascadeEngine(backend, cfg.OCRCharset, ocr.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}
	if cfg.TableStructureEnabled && len(cfg.TableVocab) == 0 {
		return nil, docerrors.Config("table_structure_enabled requires a non-empty TableVocab")
	}
	if cfg.CodeFormulaEnabled && len(cfg.CodeFormulaVocab) == 0 {
		return nil, docerrors.Config("code_formula_enabled requires a non-empty CodeFormulaVocab")
	}

	return &Pipeline{
		cfg:            cfg,
		extractor:      extractor,
		backend:        backend,
		ocrEngine:      ocrEngine,
		cfPreprocessor: preprocess.NewCodeFormulaPreprocessor(),
	}, nil
}

// pageJob is one unit of fan-out, mirroring batch_translator.go's
// indexed batchResult: the index (pageNum-1) is what lets results be
// collected out of completion order and still come back ascending.
type pageJob struct {
	index  int
	result PageResult
	fatal  error
}

// ProcessDocument rasterizes and processes every page of pdfPath
// concurrently (bounded by cfg.Concurrency), then joins the per-page
// results in page_no order and renumbers every element ID to a single
// document-wide sequence, per §5's ordering guarantee.
func (p *Pipeline) ProcessDocument(ctx context.Context, pdfPath string) (*Document, error) {
	n, err := raster.PageCount(pdfPath)
	if err != nil {
		return nil, err
	}

	jobs := make([]pageJob, n)
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		pageNum := i + 1
		wg.Add(1)
		go func(idx, pageNum int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				jobs[idx] = pageJob{index: idx}
				return
			}
			defer func() { <-sem }()

			result, fatal := p.processPage(ctx, pdfPath, pageNum)
			jobs[idx] = pageJob{index: idx, result: result, fatal: fatal}
		}(i, pageNum)
	}
	wg.Wait()

	for _, j := range jobs {
		if j.fatal != nil {
			logger.Error("document processing aborted", j.fatal, logger.Int("page", j.result.PageNumber))
			return nil, j.fatal
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return join(jobs, p.cfg.FailurePolicy), nil
}

// join orders results by page_no, applies the failure policy, and
// renumbers every surviving element's ID to a document-wide sequence
// (cluster IDs are page-local by construction; §5 requires a global
// renumbering at join time).
func join(jobs []pageJob, policy FailurePolicy) *Document {
	doc := &Document{Pages: make([]PageResult, 0, len(jobs))}

	seq := 0
	for _, j := range jobs {
		r := j.result
		if r.Err != nil {
			doc.Stats.FailedPages++
			if policy == FailureOmit {
				continue
			}
		}
		switch r.Route {
		case cascade.RouteML:
			doc.Stats.MLCount++
		case cascade.RouteHeuristic:
			doc.Stats.HeuristicCount++
		}

		for i := range r.Elements {
			seq++
			r.Elements[i].ID = "e" + strconv.Itoa(seq)
		}
		doc.Pages = append(doc.Pages, r)
	}

	sort.SliceStable(doc.Pages, func(i, j int) bool {
		return doc.Pages[i].PageNumber < doc.Pages[j].PageNumber
	})
	return doc
}

// processPage runs one page through C1, C6, C5/heuristic, C7, C8, C9,
// C10, and C11 in sequence. A returned fatal error aborts the whole
// document (docerrors.PageScoped is false); any other failure is
// recorded on the returned PageResult.Err and leaves fatal nil, per the
// propagation rule in §7. ctx is checked at each stage boundary; a
// cancelled page returns a PageResult with no elements, never a partial
// one.
func (p *Pipeline) processPage(ctx context.Context, pdfPath string, pageNum int) (result PageResult, fatal error) {
	result.PageNumber = pageNum

	var stageErr error
	defer func() {
		if stageErr == nil {
			return
		}
		if docerrors.PageScoped(stageErr) {
			result = PageResult{PageNumber: pageNum, Route: result.Route, Err: stageErr}
			fatal = nil
			return
		}
		fatal = stageErr
	}()

	if ctx.Err() != nil {
		result = PageResult{PageNumber: pageNum}
		return
	}

	page, err := p.extractor.ExtractPage(pdfPath, pageNum)
	if err != nil {
		stageErr = err
		return
	}

	fp := cascade.ComputeFingerprint(page.Cells, page.Width, page.Height)
	route := cascade.Decide(p.cfg.CascadeMode, fp, p.cfg.Thresholds)
	result.Route = route

	if ctx.Err() != nil {
		result = PageResult{PageNumber: pageNum}
		return
	}

	raw, err := p.detectLayout(ctx, page, route)
	if err != nil {
		stageErr = err
		return
	}

	clusters := cluster.Resolve(raw, page.Cells, p.cfg.ClusterConfig)

	if p.cfg.OCREnabled {
		if ctx.Err() != nil {
			result = PageResult{PageNumber: pageNum}
			return
		}
		clusters, err = p.runOCR(ctx, page, clusters)
		if err != nil {
			stageErr = err
			return
		}
	}

	var tables map[string]table.Structure
	if p.cfg.TableStructureEnabled {
		if ctx.Err() != nil {
			result = PageResult{PageNumber: pageNum}
			return
		}
		tables, err = p.runTableStructure(ctx, page, clusters)
		if err != nil {
			stageErr = err
			return
		}
	}

	var enrichments map[string]assemble.Enrichment
	if p.cfg.CodeFormulaEnabled {
		if ctx.Err() != nil {
			result = PageResult{PageNumber: pageNum}
			return
		}
		enrichments, err = p.runCodeFormula(ctx, page, clusters)
		if err != nil {
			stageErr = err
			return
		}
	}

	if ctx.Err() != nil {
		result = PageResult{PageNumber: pageNum}
		return
	}

	result.Elements = assemble.Page(clusters, enrichments, tables, p.cfg.AssembleConfig)
	return
}

// detectLayout runs either the ML layout detector or the heuristic fast
// path, per the cascade's routing decision for the page.
func (p *Pipeline) detectLayout(ctx context.Context, page raster.Page, route cascade.Route) ([]layoutdetect.RawCluster, error) {
	if route == cascade.RouteHeuristic {
		return cascade.Heuristic(page.Cells, page.Width, page.Height, p.cfg.HeuristicConfig), nil
	}

	img := resize.FromStdImage(page.Image, 3)
	tensor, err := preprocess.LayoutPreprocess(img, p.cfg.LayoutResolution)
	if err != nil {
		return nil, err
	}

	outputs, err := p.backend.Run(ctx, string(inference.ModelLayout), map[string]preprocess.Tensor{"images": tensor})
	if err != nil {
		return nil, docerrors.Inference(string(inference.ModelLayout), page.Number, err)
	}
	return layoutdetect.Decode(outputs, page.Width, page.Height, p.cfg.LayoutConfig), nil
}

// runOCR fills in text for clusters that carry no native cells — the
// scanned-page case (§4.1) and any orphan/table/picture region the
// native text layer couldn't see — merging recognized cells back into
// each cluster's cell list so downstream stages see one unified pool.
func (p *Pipeline) runOCR(ctx context.Context, page raster.Page, clusters []cluster.Cluster) ([]cluster.Cluster, error) {
	out := make([]cluster.Cluster, len(clusters))
	copy(out, clusters)

	for i := range out {
		if len(out[i].Cells) > 0 {
			continue
		}
		if out[i].Label == layoutdetect.LabelPicture {
			continue // pictures legitimately carry no text
		}

		region := bboxToRect(out[i].BBox)
		recognized, err := p.ocrEngine.RecognizeRegion(ctx, page.Image, region)
		if err != nil {
			return nil, docerrors.Inference(string(inference.ModelOCRRecognizer), page.Number, err)
		}
		out[i].Cells = recognized
	}
	return out, nil
}

// runTableStructure decodes each table cluster's OTSL token sequence
// and bbox head, keyed by cluster ID for assemble.Page.
func (p *Pipeline) runTableStructure(ctx context.Context, page raster.Page, clusters []cluster.Cluster) (map[string]table.Structure, error) {
	var tables map[string]table.Structure

	for _, c := range clusters {
		if c.Label != layoutdetect.LabelTable {
			continue
		}

		region := bboxToRect(c.BBox)
		tensor, err := preprocess.TableStructurePreprocess(page.Image, region, preprocess.DefaultTableStructureSize)
		if err != nil {
			return nil, err
		}

		outputs, err := p.backend.Run(ctx, string(inference.ModelTableStructure), map[string]preprocess.Tensor{"pixel_values": tensor})
		if err != nil {
			return nil, docerrors.Inference(string(inference.ModelTableStructure), page.Number, err)
		}
		logits, ok := outputs["tags"]
		if !ok {
			return nil, docerrors.Inference(string(inference.ModelTableStructure), page.Number,
				fmt.Errorf("table structure output missing %q tensor", "tags"))
		}
		boxes, ok := outputs["cell_bboxes"]
		if !ok {
			return nil, docerrors.Inference(string(inference.ModelTableStructure), page.Number,
				fmt.Errorf("table structure output missing %q tensor", "cell_bboxes"))
		}

		structure, err := table.Decode(logits, p.cfg.TableVocab, boxes, c.BBox, c.Cells)
		if err != nil {
			return nil, err
		}
		if tables == nil {
			tables = make(map[string]table.Structure)
		}
		tables[c.ID] = structure
	}
	return tables, nil
}

// runCodeFormula decodes each code/formula cluster's enrichment text,
// keyed by cluster ID for assemble.Page. Clusters are cropped with a
// 0.18 expansion factor before preprocessing, per §4.9.
func (p *Pipeline) runCodeFormula(ctx context.Context, page raster.Page, clusters []cluster.Cluster) (map[string]assemble.Enrichment, error) {
	var enrichments map[string]assemble.Enrichment

	for _, c := range clusters {
		var label codeformula.Label
		switch c.Label {
		case layoutdetect.LabelCode:
			label = codeformula.LabelCode
		case layoutdetect.LabelFormula:
			label = codeformula.LabelFormula
		default:
			continue
		}

		expanded := preprocess.ExpandBBox(c.BBox, page.Width, page.Height)
		region := bboxToRect(expanded)

		tensor, err := p.cfPreprocessor.Preprocess(page.Image, region)
		if err != nil {
			return nil, err
		}

		prompt, err := codeformula.PromptFor(label)
		if err != nil {
			return nil, err
		}

		modelInputs := map[string]preprocess.Tensor{
			"pixel_values": tensor,
			"prompt":       promptTensor(prompt),
		}
		outputs, err := p.backend.Run(ctx, string(inference.ModelCodeFormula), modelInputs)
		if err != nil {
			return nil, docerrors.Inference(string(inference.ModelCodeFormula), page.Number, err)
		}
		logits, ok := outputs["logits"]
		if !ok {
			return nil, docerrors.Inference(string(inference.ModelCodeFormula), page.Number,
				fmt.Errorf("code/formula output missing %q tensor", "logits"))
		}

		decoded, err := codeformula.DecodeFromLogits(logits, p.cfg.CodeFormulaVocab)
		if err != nil {
			return nil, err
		}

		if enrichments == nil {
			enrichments = make(map[string]assemble.Enrichment)
		}
		enrichments[c.ID] = assemble.Enrichment{Text: decoded.Text, Language: decoded.Language}
	}
	return enrichments, nil
}

// promptTensor carries a chat-template prompt string to the code/formula
// backend as a degenerate one-element tensor; tokenization is the
// backend's concern, the same boundary inference.Backend draws for
// every other model family (it owns everything past the adapter's
// tensor contract).
func promptTensor(prompt string) preprocess.Tensor {
	data := make([]float32, len(prompt))
	for i, r := range prompt {
		data[i] = float32(r)
	}
	return preprocess.Tensor{Data: data, Shape: []int64{int64(len(prompt))}}
}

// bboxToRect converts a page-pixel BBox (assumed TopLeft-origin, as
// every cluster bbox is by the time it reaches the pipeline) to the
// integer image.Rectangle the preprocessors crop against.
func bboxToRect(b geometry.BBox) image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom))
}
