package model

// PageInfo describes the position of a Page within a server-side collection.
type PageInfo struct {
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	HasNext       bool `json:"hasNext"`
	HasPrevious   bool `json:"hasPrevious"`
}

// Page is one window of a paginated collection returned by the portal API.
type Page[T any] struct {
	Content  []T      `json:"content"`
	PageInfo PageInfo `json:"pageInfo"`
}

// PageQuery holds the pagination and search parameters sent with list requests.
type PageQuery struct {
	Page   int
	Size   int
	Search string
	Sort   string
	Desc   bool
	// Filters holds resource-specific query parameters (e.g. status).
	Filters map[string]string
}
