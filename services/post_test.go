package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/testutil"
)

func TestCreatePost(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	u := testutil.MustCreateUser(t, db, "writer")

	p, err := svc.Create(ctx, u.ID, PostInput{
		Title:   "Hello World",
		Content: strings.Repeat("a", 450),
		Tags:    []string{"go", "#go", " blog "},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Nil(t, p.PubDate)
	assert.Equal(t, 2, p.ReadingDuration)
	assert.Regexp(t, `^hello-world-\d{4}$`, p.Slug)
	assert.Equal(t, "writer", p.User.Username)
	names := []string{}
	for _, tag := range p.Tags {
		names = append(names, tag.TagName)
	}
	assert.ElementsMatch(t, []string{"#go", "#blog"}, names)

	_, err = svc.Create(ctx, u.ID, PostInput{Title: "", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, u.ID, PostInput{Title: "t", Content: "x", Status: "NOPE"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, 0, PostInput{Title: "t", Content: "x"})
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
}

func TestDraftVisibilityAndPublish(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	owner := testutil.MustCreateUser(t, db, "owner")
	reader := testutil.MustCreateUser(t, db, "reader")

	draft, err := svc.Create(ctx, owner.ID, PostInput{Title: "Secret", Content: "wip"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, draft.ID, reader.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, draft.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetBySlug(ctx, draft.Slug, reader.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := svc.Get(ctx, draft.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Slug, got.Slug)

	_, err = svc.Update(ctx, draft.ID, reader.ID, PostInput{Title: "Mine", Content: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	published, err := svc.Update(ctx, draft.ID, owner.ID, PostInput{Title: "Public", Content: "done", Status: "pub"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, published.Status)
	require.NotNil(t, published.PubDate)
	assert.Equal(t, draft.Slug, published.Slug, "slug is stable across edits")
	assert.Len(t, published.Tags, 0)

	got, err = svc.GetBySlug(ctx, draft.Slug, 0)
	require.NoError(t, err)
	assert.Equal(t, "Public", got.Title)
}

func TestUpdateKeepsTagsWhenOmitted(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	u := testutil.MustCreateUser(t, db, "u")

	p, err := svc.Create(ctx, u.ID, PostInput{Title: "t", Content: "c", Tags: []string{"keep"}})
	require.NoError(t, err)

	p, err = svc.Update(ctx, p.ID, u.ID, PostInput{Title: "t2", Content: "c2"})
	require.NoError(t, err)
	require.Len(t, p.Tags, 1)

	p, err = svc.Update(ctx, p.ID, u.ID, PostInput{Title: "t3", Content: "c3", Tags: []string{}})
	require.NoError(t, err)
	assert.Empty(t, p.Tags)
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	u := testutil.MustCreateUser(t, db, "u")
	v := testutil.MustCreateUser(t, db, "v")
	p := testutil.MustCreatePost(t, db, u.ID, "viewed")

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.MarkViewed(ctx, p.ID, v.ID))
	}
	require.NoError(t, svc.MarkViewed(ctx, p.ID, u.ID))
	require.NoError(t, svc.MarkViewed(ctx, p.ID, 0))

	st, err := svc.Stats(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Viewers)
}

func TestDeletePostCascades(t *testing.T) {
	db := testutil.CreateTempDB(t)
	logger := zaptest.NewLogger(t)
	svc := NewPostService(db, logger)
	comments := NewCommentService(db, logger)
	reactions := NewReactionService(db, nil, logger)
	ctx := context.Background()

	owner := testutil.MustCreateUser(t, db, "owner")
	fan := testutil.MustCreateUser(t, db, "fan")
	p, err := svc.Create(ctx, owner.ID, PostInput{Title: "doomed", Content: "c", Status: "PUB", Tags: []string{"x"}})
	require.NoError(t, err)
	survivor := testutil.MustCreatePost(t, db, owner.ID, "survivor")

	c, err := comments.Add(ctx, p.ID, fan.ID, "nice", nil)
	require.NoError(t, err)
	_, err = comments.Add(ctx, p.ID, owner.ID, "thanks", &c.ID)
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, fan.ID, "post", p.ID)
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, owner.ID, "comment", c.ID)
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, fan.ID, "post", survivor.ID)
	require.NoError(t, err)
	require.NoError(t, svc.MarkViewed(ctx, p.ID, fan.ID))

	assert.ErrorIs(t, svc.Delete(ctx, p.ID, fan.ID, false), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, p.ID, owner.ID, false))

	count := func(model interface{}, where string, args ...interface{}) int64 {
		var n int64
		require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
		return n
	}
	assert.Zero(t, count(&models.Post{}, "id = ?", p.ID))
	assert.Zero(t, count(&models.Comment{}, "post_id = ?", p.ID))
	assert.Zero(t, count(&models.Reaction{}, "target_type = ?", "comment"))
	assert.Zero(t, count(&models.Reaction{}, "target_type = ? AND target_id = ?", "post", p.ID))
	assert.Zero(t, count(&models.PostViewer{}, "post_id = ?", p.ID))
	assert.EqualValues(t, 1, count(&models.Reaction{}, "target_id = ?", survivor.ID))

	var links int64
	require.NoError(t, db.Table("post_tags").Where("post_id = ?", p.ID).Count(&links).Error)
	assert.Zero(t, links)

	assert.ErrorIs(t, svc.Delete(ctx, p.ID, owner.ID, false), ErrNotFound)
}

func TestAdminMayDeleteAnyPost(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	owner := testutil.MustCreateUser(t, db, "owner")
	admin := testutil.MustCreateUser(t, db, "admin")
	p := testutil.MustCreatePost(t, db, owner.ID, "p")

	require.NoError(t, svc.Delete(context.Background(), p.ID, admin.ID, true))
}

func TestListPosts(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := testutil.MustCreateUser(t, db, "a")
	b := testutil.MustCreateUser(t, db, "b")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(author uint, title, status string, offset time.Duration, tags ...string) models.Post {
		p, err := svc.Create(ctx, author, PostInput{Title: title, Content: "c", Status: status, Tags: tags})
		require.NoError(t, err)
		at := base.Add(offset)
		require.NoError(t, db.Model(&models.Post{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"created_at": at, "pub_date": at}).Error)
		return *p
	}
	old := mk(a.ID, "Old golang tips", models.StatusPublished, 0, "go")
	mid := mk(b.ID, "Middle", models.StatusPublished, time.Hour)
	mk(a.ID, "Draft golang", models.StatusDraft, 2*time.Hour, "go")
	newest := mk(a.ID, "Newest", models.StatusPublished, 3*time.Hour)

	ids := func(posts []models.Post) []uint {
		out := []uint{}
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	posts, total, err := svc.List(ctx, PostFilter{Status: models.StatusPublished})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []uint{newest.ID, mid.ID, old.ID}, ids(posts))

	posts, total, err = svc.List(ctx, PostFilter{Status: models.StatusPublished, Page: Page{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []uint{old.ID}, ids(posts))

	posts, _, err = svc.List(ctx, PostFilter{Tag: "go"})
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, _, err = svc.List(ctx, PostFilter{Status: models.StatusPublished, Tag: "#go", Search: "golang"})
	require.NoError(t, err)
	assert.Equal(t, []uint{old.ID}, ids(posts))

	posts, total, err = svc.List(ctx, PostFilter{AuthorID: b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []uint{mid.ID}, ids(posts))
}

func TestPostStatsUnknown(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewPostService(db, zaptest.NewLogger(t))
	_, err := svc.Stats(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
