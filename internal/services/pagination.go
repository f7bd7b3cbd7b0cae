package services

import (
	"strings"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// Keeps (page-1)*limit well inside int range.
	maxPage = 1_000_000
)

// ListParams are the common paging and filtering inputs of list endpoints.
type ListParams struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// Page is a paginated result.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func (p ListParams) normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	p.Status = strings.TrimSpace(p.Status)
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// paginate counts the filtered query, then loads one page newest first.
// Scopes apply to the page load only, so preloads never reach the count.
func paginate[T any](query *gorm.DB, params ListParams, scopes ...func(*gorm.DB) *gorm.DB) (*Page[T], error) {
	params = params.normalized()

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]T, 0, params.Limit)
	err := query.Session(&gorm.Session{}).
		Scopes(scopes...).
		Order("created_at DESC").
		Order("id DESC").
		Offset((params.Page - 1) * params.Limit).
		Limit(params.Limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

// likePattern builds a case-insensitive substring pattern; columns are
// compared through LOWER().
func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
