package service

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/markbunyevacz/HR-AI-website/internal/config"
)

// PageBreak separates page texts in a combined multi-page document so
// downstream parsing can still regex across boundaries.
const PageBreak = "\n---PAGE BREAK---\n"

// RecognitionLine is one recognized text line with its engine confidence.
type RecognitionLine struct {
	Text       string `json:"text"`
	Confidence int    `json:"confidence"`
}

// RecognitionResult is the outcome of recognizing a single image.
type RecognitionResult struct {
	Text       string            `json:"text"`
	Confidence int               `json:"confidence"` // 0-100, engine aggregate
	Lines      []RecognitionLine `json:"lines"`
}

// PageResult is the outcome for one PDF page. A failed page carries empty
// text, zero confidence and the error message; it never aborts the document.
type PageResult struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	Confidence int    `json:"confidence"`
	Error      string `json:"error,omitempty"`
}

// PDFRecognitionResult aggregates per-page recognition of a PDF document.
type PDFRecognitionResult struct {
	Text       string       `json:"text"`
	Confidence int          `json:"confidence"` // mean over successfully recognized pages
	Pages      []PageResult `json:"pages"`
}

// Recognizer is the contract the pipeline consumes; *OCRService implements it.
type Recognizer interface {
	RecognizeImage(ctx context.Context, path string) (*RecognitionResult, error)
	RecognizePDF(ctx context.Context, path string, pageRange ...int) (*PDFRecognitionResult, error)
}

// OCRService wraps the external Tesseract engine. The engine check runs
// lazily before first use; Terminate tears the service down.
type OCRService struct {
	binary     string
	lang       string
	maxDim     uint
	preprocess bool

	runner   Runner
	renderer pdfRenderer

	mu          sync.Mutex
	initialized bool
}

func NewOCRService() *OCRService {
	cfg := config.LoadOCRConfig()
	return &OCRService{
		binary:     cfg.Tesseract,
		lang:       cfg.Lang,
		maxDim:     uint(cfg.MaxImageDim),
		preprocess: cfg.Preprocess,
		runner:     execRunner{},
		renderer:   fitzRenderer{},
	}
}

// Initialize verifies the engine once. Recognition calls trigger it lazily
// when it has not run yet.
func (s *OCRService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	out, _, err := s.runner.Run(ctx, s.binary, "-v")
	if err != nil {
		return fmt.Errorf("tesseract not found or not executable: %w", err)
	}
	version := strings.Split(strings.TrimSpace(string(out)), "\n")[0]
	log.Printf("[OCR] engine ready: %s", version)
	s.initialized = true
	return nil
}

// Terminate resets the service; the next call re-initializes.
func (s *OCRService) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		s.initialized = false
		log.Println("[OCR] service terminated")
	}
}

// RecognizeImage runs OCR over a single image file. Preprocessing failures
// fall back to recognizing the untouched original.
func (s *OCRService) RecognizeImage(ctx context.Context, path string) (*RecognitionResult, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	target := path
	if s.preprocess {
		if tmp, cleanup, err := preprocessImageFile(path, s.maxDim); err == nil {
			defer cleanup()
			target = tmp
		} else {
			log.Printf("[OCR] preprocessing failed, using original: %v", err)
		}
	}
	return s.recognizeFile(ctx, target)
}

// RecognizePDF renders each selected page to an image and delegates to the
// image path. pageRange is an optional 1-based [start, end] pair; default is
// all pages. A page failure yields an error entry, not a document abort.
func (s *OCRService) RecognizePDF(ctx context.Context, path string, pageRange ...int) (*PDFRecognitionResult, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	pages, err := s.renderer.renderPages(path, pageRange)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	result := &PDFRecognitionResult{}
	var texts []string
	totalConfidence, recognized := 0, 0

	for _, page := range pages {
		if page.err != nil {
			log.Printf("[OCR] page %d render failed: %v", page.number, page.err)
			result.Pages = append(result.Pages, PageResult{PageNumber: page.number, Error: page.err.Error()})
			texts = append(texts, "")
			continue
		}
		pageResult, err := s.recognizeRendered(ctx, page.img)
		if err != nil {
			log.Printf("[OCR] page %d recognition failed: %v", page.number, err)
			result.Pages = append(result.Pages, PageResult{PageNumber: page.number, Error: err.Error()})
			texts = append(texts, "")
			continue
		}
		result.Pages = append(result.Pages, PageResult{
			PageNumber: page.number,
			Text:       pageResult.Text,
			Confidence: pageResult.Confidence,
		})
		texts = append(texts, pageResult.Text)
		totalConfidence += pageResult.Confidence
		recognized++
	}

	result.Text = strings.TrimSpace(strings.Join(texts, PageBreak))
	if recognized > 0 {
		result.Confidence = int(math.Round(float64(totalConfidence) / float64(recognized)))
	}
	return result, nil
}

func (s *OCRService) recognizeRendered(ctx context.Context, img image.Image) (*RecognitionResult, error) {
	if s.preprocess {
		img = preprocessImage(img, s.maxDim)
	}
	tmp, cleanup, err := writeTempPNG(img)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return s.recognizeFile(ctx, tmp)
}

// recognizeFile runs the engine twice: once for layout-preserving text and
// once in TSV mode for word confidences. A TSV failure degrades to zero
// confidence instead of failing the call.
func (s *OCRService) recognizeFile(ctx context.Context, path string) (*RecognitionResult, error) {
	out, errb, err := s.runner.Run(ctx, s.binary, path, "stdout", "-l", s.lang)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w, output: %s", err, string(errb))
	}
	result := &RecognitionResult{Text: strings.TrimSpace(string(out))}

	tsv, _, err := s.runner.Run(ctx, s.binary, path, "stdout", "-l", s.lang, "tsv")
	if err != nil {
		log.Printf("[OCR] TSV confidence pass failed: %v", err)
		return result, nil
	}
	result.Confidence, result.Lines = parseTSVConfidence(string(tsv))
	return result, nil
}

// parseTSVConfidence computes the rounded mean word confidence and per-line
// confidences from Tesseract TSV output. Word rows have level 5 and a
// non-negative conf column.
func parseTSVConfidence(tsv string) (int, []RecognitionLine) {
	type lineAgg struct {
		words []string
		sum   float64
		n     int
	}
	var order []string
	agg := make(map[string]*lineAgg)
	var sum float64
	var n int

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 || row == "" {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		sum += conf
		n++

		key := cols[1] + ":" + cols[2] + ":" + cols[3] + ":" + cols[4]
		la, ok := agg[key]
		if !ok {
			la = &lineAgg{}
			agg[key] = la
			order = append(order, key)
		}
		la.words = append(la.words, cols[11])
		la.sum += conf
		la.n++
	}

	if n == 0 {
		return 0, nil
	}
	lines := make([]RecognitionLine, 0, len(order))
	for _, key := range order {
		la := agg[key]
		lines = append(lines, RecognitionLine{
			Text:       strings.Join(la.words, " "),
			Confidence: int(math.Round(la.sum / float64(la.n))),
		})
	}
	return int(math.Round(sum / float64(n))), lines
}
