package shared

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filter is the common list-query shape: pagination, ordering and an
// optional search term.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter lists newest first, twenty per page.
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: defaultPageSize, OrderBy: "created_at", OrderDir: "desc"}
}

// Normalize clamps pagination into range so a hostile query string cannot
// request page zero or ten thousand rows.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// Paginated is one page of results plus the totals the client needs to
// render paging controls.
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated assembles a page, deriving the page count from the total.
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
