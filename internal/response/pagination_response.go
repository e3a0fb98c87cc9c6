package response

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
	HasMore    bool  `json:"has_more"`
	From       int   `json:"from"`
	To         int   `json:"to"`
}

// NewPagination derives page metadata from the total row count and the number
// of rows on the current page.
func NewPagination(page, pageSize int, totalItems int64, rowsOnPage int) *Pagination {
	totalPages := (totalItems + int64(pageSize) - 1) / int64(pageSize)
	offset := (page - 1) * pageSize
	p := &Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: totalItems,
		HasMore:    int64(page) < totalPages,
		From:       offset + 1,
		To:         offset + rowsOnPage,
	}
	if rowsOnPage == 0 {
		p.From = 0
		p.To = 0
	}
	return p
}
