package utils

// Pagination helpers shared by every list endpoint.  Page numbers are
// 1-based.  Inputs are clamped before they reach the database: pageNum to
// >=1 and pageSize to the range [1,100], so a caller can never request an
// unbounded page.

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page describes a validated pagination request.
type Page struct {
	Num  int
	Size int
}

// PageResult is the uniform shape of a paginated response body.
type PageResult struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	PageNum    int         `json:"pageNum"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
	HasNext    bool        `json:"hasNext"`
	HasPrev    bool        `json:"hasPrev"`
}

// ClampPage validates and corrects raw pagination parameters.  Zero or
// negative values fall back to the defaults before clamping.
func ClampPage(pageNum, pageSize int) Page {
	if pageNum < 1 {
		pageNum = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Page{Num: pageNum, Size: pageSize}
}

// Offset returns the number of rows to skip for this page.
func (p Page) Offset() int {
	return (p.Num - 1) * p.Size
}

// NewPageResult assembles the pagination envelope around a page of data.
func NewPageResult(data interface{}, total int64, p Page) PageResult {
	totalPages := int(total) / p.Size
	if int(total)%p.Size > 0 {
		totalPages++
	}
	return PageResult{
		Data:       data,
		Total:      total,
		PageNum:    p.Num,
		PageSize:   p.Size,
		TotalPages: totalPages,
		HasNext:    p.Num < totalPages,
		HasPrev:    p.Num > 1,
	}
}
