package model

import "encoding/json"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PagedRequest selects one page of a filtered post listing.
type PagedRequest struct {
	Page     int
	PageSize int
	Search   string
	Tag      string
}

// Normalize clamps page to >= 1 and page size to [1, MaxPageSize],
// substituting DefaultPageSize when unset.
func (r PagedRequest) Normalize() PagedRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

// PagedResult is one page of items plus the totals needed to navigate.
type PagedResult[T any] struct {
	Items       []T `json:"items"`
	TotalCount  int `json:"totalCount"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
}

// TotalPages is ceil(TotalCount / PageSize).
func (r PagedResult[T]) TotalPages() int {
	if r.PageSize <= 0 || r.TotalCount <= 0 {
		return 0
	}
	return (r.TotalCount-1)/r.PageSize + 1
}

func (r PagedResult[T]) HasPreviousPage() bool {
	return r.CurrentPage > 1
}

func (r PagedResult[T]) HasNextPage() bool {
	return r.CurrentPage < r.TotalPages()
}

// Paginate slices items for the requested page. A page past the end yields
// an empty item list with the totals intact.
func Paginate[T any](items []T, page, pageSize int) PagedResult[T] {
	res := PagedResult[T]{
		Items:       []T{},
		TotalCount:  len(items),
		CurrentPage: page,
		PageSize:    pageSize,
	}
	if page < 1 || pageSize < 1 || len(items) == 0 || page-1 > (len(items)-1)/pageSize {
		return res
	}
	start := (page - 1) * pageSize
	end := len(items)
	if pageSize < end-start {
		end = start + pageSize
	}
	res.Items = items[start:end]
	return res
}

// MarshalJSON includes the derived navigation fields.
func (r PagedResult[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Items           []T  `json:"items"`
		TotalCount      int  `json:"totalCount"`
		CurrentPage     int  `json:"currentPage"`
		PageSize        int  `json:"pageSize"`
		TotalPages      int  `json:"totalPages"`
		HasPreviousPage bool `json:"hasPreviousPage"`
		HasNextPage     bool `json:"hasNextPage"`
	}{
		Items:           r.Items,
		TotalCount:      r.TotalCount,
		CurrentPage:     r.CurrentPage,
		PageSize:        r.PageSize,
		TotalPages:      r.TotalPages(),
		HasPreviousPage: r.HasPreviousPage(),
		HasNextPage:     r.HasNextPage(),
	})
}
