package service

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// pdfRenderer rasterizes PDF pages; stubbed in tests.
type pdfRenderer interface {
	renderPages(path string, pageRange []int) ([]renderedPage, error)
}

// renderedPage carries either the rasterized page or its render error.
type renderedPage struct {
	number int // 1-based
	img    image.Image
	err    error
}

type fitzRenderer struct{}

func (fitzRenderer) renderPages(path string, pageRange []int) ([]renderedPage, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	first, last := 1, doc.NumPage()
	if len(pageRange) == 2 {
		if pageRange[0] > first {
			first = pageRange[0]
		}
		if pageRange[1] < last {
			last = pageRange[1]
		}
	}
	if first > last {
		return nil, fmt.Errorf("empty page range [%d, %d]", first, last)
	}

	pages := make([]renderedPage, 0, last-first+1)
	for n := first; n <= last; n++ {
		img, err := doc.Image(n - 1)
		pages = append(pages, renderedPage{number: n, img: img, err: err})
	}
	return pages, nil
}
