package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is returned alongside list responses.
type Pagination struct {
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPagination derives page counts from the total row count.
func NewPagination(page, size, total int) *Pagination {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + size - 1) / size
	}
	return &Pagination{
		Page:        page,
		Size:        size,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// PageQuery carries paging and sorting input for list endpoints.
type PageQuery struct {
	Page  int
	Size  int
	Sort  string
	Order string
}

// Normalize clamps paging values and defaults the sort order.
func (q *PageQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	if q.Order != "asc" && q.Order != "desc" {
		q.Order = "asc"
	}
}

// Offset returns the row offset for the requested page.
func (q PageQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Size
}
