package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/domain"
	apperrors "pixelforge/pkg/errors"
)

type fakeAssets struct {
	mu        sync.Mutex
	next      int
	stored    map[string]string
	uploadErr error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{stored: map[string]string{}}
}

func (a *fakeAssets) Upload(_ context.Context, _ []byte, contentType string) (domain.Slide, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.uploadErr != nil {
		return domain.Slide{}, a.uploadErr
	}
	a.next++
	id := fmt.Sprintf("projects/slide-%d", a.next)
	a.stored[id] = contentType
	return domain.Slide{URL: "https://cdn.pixelforge.test/" + id, PublicID: id}, nil
}

func (a *fakeAssets) Delete(_ context.Context, publicID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.stored, publicID)
	return nil
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestProjectCreateAndTitleUniqueness(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.db, newFakeAssets(), f.log)

	p, err := svc.Create(context.Background(), &ProjectPayload{
		Title:        "Harbor Analytics",
		Description:  "Dashboard for port logistics.",
		Category:     strPtr("web"),
		Technologies: []string{"Go", " Go ", "", "Postgres"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectActive, p.Status)
	assert.Equal(t, []string{"Go", "Postgres"}, p.Technologies)
	assert.Equal(t, []domain.Slide{}, p.Slides)

	_, err = svc.Create(context.Background(), &ProjectPayload{Title: "Harbor Analytics", Description: "Copy"})
	requireCode(t, err, apperrors.ErrCodeConflict)

	lower, err := svc.Create(context.Background(), &ProjectPayload{Title: "harbor analytics", Description: "Different case"})
	require.NoError(t, err, "titles are compared case-sensitively")

	_, err = svc.Update(context.Background(), lower.ID, &ProjectUpdatePayload{Title: strPtr("Harbor Analytics")})
	requireCode(t, err, apperrors.ErrCodeConflict)

	featured := true
	updated, err := svc.Update(context.Background(), p.ID, &ProjectUpdatePayload{Featured: &featured, Status: strPtr(domain.ProjectDraft)})
	require.NoError(t, err)
	assert.True(t, updated.Featured)
	assert.Equal(t, domain.ProjectDraft, updated.Status)

	_, err = svc.Create(context.Background(), &ProjectPayload{Title: "Bad", Description: "x", Status: "archived"})
	requireCode(t, err, apperrors.ErrCodeValidation)
}

func TestProjectList(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.db, newFakeAssets(), f.log)
	for i, c := range []string{"web", "mobile", "web"} {
		_, err := svc.Create(context.Background(), &ProjectPayload{
			Title:       fmt.Sprintf("Project %d", i),
			Description: "Work",
			Category:    strPtr(c),
			Featured:    i == 2,
		})
		require.NoError(t, err)
	}

	page, err := svc.List(context.Background(), ProjectFilter{Category: "web"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, "Project 2", page.Items[0].Title, "newest first")

	featured := true
	page, err = svc.List(context.Background(), ProjectFilter{Featured: &featured})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Project 2", page.Items[0].Title)
}

func TestProjectSlides(t *testing.T) {
	f := newFixture(t)
	assets := newFakeAssets()
	svc := NewProjectService(f.db, assets, f.log)
	p, err := svc.Create(context.Background(), &ProjectPayload{Title: "Gallery", Description: "Images"})
	require.NoError(t, err)

	_, err = svc.AddSlide(context.Background(), p.ID, nil)
	requireCode(t, err, apperrors.ErrCodeValidation)
	_, err = svc.AddSlide(context.Background(), p.ID, []byte("plain text, not an image"))
	requireCode(t, err, apperrors.ErrCodeValidation)
	_, err = svc.AddSlide(context.Background(), 999, pngBytes)
	requireCode(t, err, apperrors.ErrCodeNotFound)

	withOne, err := svc.AddSlide(context.Background(), p.ID, pngBytes)
	require.NoError(t, err)
	withTwo, err := svc.AddSlide(context.Background(), p.ID, pngBytes)
	require.NoError(t, err)
	require.Len(t, withTwo.Slides, 2)
	assert.Equal(t, withOne.Slides[0], withTwo.Slides[0])
	assert.Equal(t, "image/png", assets.stored[withTwo.Slides[1].PublicID])

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, withTwo.Slides, stored.Slides)

	first := withTwo.Slides[0].PublicID
	after, err := svc.RemoveSlide(context.Background(), p.ID, first)
	require.NoError(t, err)
	require.Len(t, after.Slides, 1)
	assert.NotContains(t, assets.stored, first)

	_, err = svc.RemoveSlide(context.Background(), p.ID, first)
	requireCode(t, err, apperrors.ErrCodeNotFound)

	require.NoError(t, svc.Delete(context.Background(), p.ID))
	assert.Empty(t, assets.stored)
	requireCode(t, svc.Delete(context.Background(), p.ID), apperrors.ErrCodeNotFound)
}

func TestProjectSlideUploadFailure(t *testing.T) {
	f := newFixture(t)
	assets := newFakeAssets()
	assets.uploadErr = errors.New("bucket unavailable")
	svc := NewProjectService(f.db, assets, f.log)
	p, err := svc.Create(context.Background(), &ProjectPayload{Title: "Gallery", Description: "Images"})
	require.NoError(t, err)

	_, err = svc.AddSlide(context.Background(), p.ID, pngBytes)
	requireCode(t, err, apperrors.ErrCodeInternalError)

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Slides)
}
