package paging

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage 保证 (page-1)*limit 不会溢出。
	MaxPage = math.MaxInt32
)

// Meta 是列表接口返回的分页信息。
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// Normalize 把非正数的 page/limit 回落到默认值，并限制单页上限。
func Normalize(page, limit int) (int, int) {
	if page <= 0 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Offset 返回第 page 页的起始偏移。
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// NewMeta 计算 pages = ceil(total/limit)。
func NewMeta(page, limit int, total int64) Meta {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Meta{Page: page, Limit: limit, Total: total, Pages: pages}
}

func (m Meta) HasNext() bool { return m.Page < m.Pages }
func (m Meta) HasPrev() bool { return m.Page > 1 }
