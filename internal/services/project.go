package services

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/domain"
)

// AssetStore hosts slide images.
type AssetStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (domain.Slide, error)
	Delete(ctx context.Context, publicID string) error
}

var slideContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ProjectPayload creates a project.
type ProjectPayload struct {
	Title        string   `json:"title" validate:"notblank,max=200"`
	Description  string   `json:"description" validate:"notblank,max=10000"`
	Category     *string  `json:"category" validate:"omitempty,max=100"`
	Client       *string  `json:"client" validate:"omitempty,max=200"`
	URL          *string  `json:"url" validate:"omitempty,url"`
	Technologies []string `json:"technologies" validate:"omitempty,max=50,dive,max=50"`
	Status       string   `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Featured     bool     `json:"featured"`
}

// ProjectUpdatePayload edits a project. Nil fields are left as is.
type ProjectUpdatePayload struct {
	Title        *string   `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string   `json:"description" validate:"omitempty,notblank,max=10000"`
	Category     *string   `json:"category" validate:"omitempty,max=100"`
	Client       *string   `json:"client" validate:"omitempty,max=200"`
	URL          *string   `json:"url" validate:"omitempty,url"`
	Technologies *[]string `json:"technologies" validate:"omitempty,max=50,dive,max=50"`
	Status       *string   `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Featured     *bool     `json:"featured"`
}

// ProjectFilter narrows the project list.
type ProjectFilter struct {
	ListParams
	Category string
	Featured *bool
}

// ProjectService implements the project portfolio
type ProjectService struct {
	db     *gorm.DB
	assets AssetStore
	log    *zap.Logger
}

// NewProjectService creates a new project service
func NewProjectService(db *gorm.DB, assets AssetStore, log *zap.Logger) *ProjectService {
	return &ProjectService{db: db, assets: assets, log: log.Named("project")}
}

// List returns one page of projects, newest first.
func (s *ProjectService) List(ctx context.Context, f ProjectFilter) (*Page[domain.Project], error) {
	params := f.ListParams.normalized()
	query := s.db.WithContext(ctx).Model(&domain.Project{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if category := strings.TrimSpace(f.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if f.Featured != nil {
		query = query.Where("featured = ?", *f.Featured)
	}
	if params.Search != "" {
		like := likePattern(params.Search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(client) LIKE ?", like, like, like)
	}

	page, err := paginate[domain.Project](query, params)
	if err != nil {
		return nil, internalError("failed to list projects", err)
	}
	return page, nil
}

// Get returns one project.
func (s *ProjectService) Get(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, lookupError(err, "project")
	}
	return &project, nil
}

// Create adds a project. Titles are unique and compared case-sensitively.
func (s *ProjectService) Create(ctx context.Context, p *ProjectPayload) (*domain.Project, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(p.Title)
	if err := s.checkTitle(ctx, title, 0); err != nil {
		return nil, err
	}

	project := &domain.Project{
		Title:        title,
		Description:  strings.TrimSpace(p.Description),
		Category:     trimmedOrNil(p.Category),
		Client:       trimmedOrNil(p.Client),
		URL:          trimmedOrNil(p.URL),
		Technologies: cleanList(p.Technologies),
		Slides:       []domain.Slide{},
		Status:       p.Status,
		Featured:     p.Featured,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, conflict("a project with this title already exists")
		}
		return nil, internalError("failed to create project", err)
	}
	s.log.Info("project created", zap.Uint("id", project.ID), zap.String("title", project.Title))
	return project, nil
}

// Update applies a partial edit.
func (s *ProjectService) Update(ctx context.Context, id uint, p *ProjectUpdatePayload) (*domain.Project, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title != project.Title {
			if err := s.checkTitle(ctx, title, project.ID); err != nil {
				return nil, err
			}
		}
		project.Title = title
	}
	if p.Description != nil {
		project.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		project.Category = trimmedOrNil(p.Category)
	}
	if p.Client != nil {
		project.Client = trimmedOrNil(p.Client)
	}
	if p.URL != nil {
		project.URL = trimmedOrNil(p.URL)
	}
	if p.Technologies != nil {
		project.Technologies = cleanList(*p.Technologies)
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
	if p.Featured != nil {
		project.Featured = *p.Featured
	}

	if err := s.db.WithContext(ctx).Save(project).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, conflict("a project with this title already exists")
		}
		return nil, internalError("failed to update project", err)
	}
	s.log.Info("project updated", zap.Uint("id", project.ID))
	return project, nil
}

// Delete removes a project and, best effort, its slide images.
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(project).Error; err != nil {
		return internalError("failed to delete project", err)
	}
	for _, slide := range project.Slides {
		s.removeAsset(ctx, slide.PublicID)
	}
	s.log.Info("project deleted", zap.Uint("id", id), zap.Int("slides", len(project.Slides)))
	return nil
}

// AddSlide uploads an image and appends it to the project's slides.
func (s *ProjectService) AddSlide(ctx context.Context, id uint, data []byte) (*domain.Project, error) {
	if len(data) == 0 {
		return nil, validationError("file is required")
	}
	contentType := http.DetectContentType(data)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if !slideContentTypes[contentType] {
		return nil, validationError("file must be a JPEG, PNG, GIF or WebP image")
	}

	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	slide, err := s.assets.Upload(ctx, data, contentType)
	if err != nil {
		return nil, internalError("failed to upload slide", err)
	}

	project.Slides = append(project.Slides, slide)
	if err := s.db.WithContext(ctx).Model(project).Select("slides").Updates(project).Error; err != nil {
		s.removeAsset(ctx, slide.PublicID)
		return nil, internalError("failed to save slide", err)
	}
	s.log.Info("slide added", zap.Uint("project", project.ID), zap.String("public_id", slide.PublicID))
	return project, nil
}

// RemoveSlide drops a slide from the project and deletes its image.
func (s *ProjectService) RemoveSlide(ctx context.Context, id uint, publicID string) (*domain.Project, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.RemoveSlide(publicID) {
		return nil, notFound("slide not found")
	}

	if err := s.db.WithContext(ctx).Model(project).Select("slides").Updates(project).Error; err != nil {
		return nil, internalError("failed to remove slide", err)
	}
	s.removeAsset(ctx, publicID)
	s.log.Info("slide removed", zap.Uint("project", project.ID), zap.String("public_id", publicID))
	return project, nil
}

func (s *ProjectService) removeAsset(ctx context.Context, publicID string) {
	if err := s.assets.Delete(context.WithoutCancel(ctx), publicID); err != nil {
		s.log.Warn("failed to delete slide asset", zap.String("public_id", publicID), zap.Error(err))
	}
}

// checkTitle returns a conflict when another project already uses title.
func (s *ProjectService) checkTitle(ctx context.Context, title string, exceptID uint) error {
	var count int64
	query := s.db.WithContext(ctx).Model(&domain.Project{}).Where("title = ?", title)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return internalError("failed to check project title", err)
	}
	if count > 0 {
		return conflict("a project with this title already exists")
	}
	return nil
}

// cleanList trims entries and drops blanks and duplicates.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
