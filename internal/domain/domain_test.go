package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleManager, NormalizeRole(" Web-Manager "))
	assert.Equal(t, RoleClient, NormalizeRole("user"))
	assert.Equal(t, RoleITSupport, NormalizeRole("it-support"))
	assert.Equal(t, "owner", NormalizeRole("OWNER"))
}

func TestUserLockAndRole(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	u := &User{Role: RoleManager, AccountStatus: AccountActive, LockUntil: &until}

	assert.True(t, u.IsLocked(now))
	assert.False(t, u.IsLocked(until.Add(time.Second)))
	assert.True(t, u.IsActive())
	assert.True(t, u.HasRole(RoleAdmin, RoleManager))
	assert.False(t, u.HasRole(RoleAdmin))

	u.AccountStatus = AccountSuspended
	assert.False(t, u.IsActive())
}

func TestMergeTags(t *testing.T) {
	s := &Subscriber{Tags: []string{"launches"}}
	s.MergeTags([]string{"tips", " launches ", "", "tips", "events"})
	assert.Equal(t, []string{"launches", "tips", "events"}, s.Tags)
}

func TestMergeTagsCapped(t *testing.T) {
	s := &Subscriber{}
	first := make([]string, 0, MaxSubscriberTags)
	for i := 0; i < MaxSubscriberTags; i++ {
		first = append(first, fmt.Sprintf("tag-%d", i))
	}
	s.MergeTags(first)
	require.Len(t, s.Tags, MaxSubscriberTags)

	s.MergeTags([]string{"tag-0", "overflow"})
	assert.Len(t, s.Tags, MaxSubscriberTags)
	assert.NotContains(t, s.Tags, "overflow")
}

func TestRemoveSlide(t *testing.T) {
	p := &Project{Slides: []Slide{{PublicID: "projects/a"}, {PublicID: "projects/b"}}}
	assert.False(t, p.RemoveSlide("projects/c"))
	assert.True(t, p.RemoveSlide("projects/a"))
	assert.Equal(t, []Slide{{PublicID: "projects/b"}}, p.Slides)
}

func TestEnsureReplies(t *testing.T) {
	q := &Quote{}
	q.EnsureReplies()
	assert.NotNil(t, q.Replies)
	assert.Empty(t, q.Replies)
}

func TestNewsletterEditable(t *testing.T) {
	assert.True(t, (&Newsletter{Status: CampaignDraft}).IsEditable())
	assert.False(t, (&Newsletter{Status: CampaignScheduled}).IsEditable())
	assert.False(t, (&Newsletter{Status: CampaignSent}).IsEditable())
}
