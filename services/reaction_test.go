package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/testutil"
)

func TestToggleAddsThenRemoves(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewReactionService(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "alice")
	bob := testutil.MustCreateUser(t, db, "bob")
	post := testutil.MustCreatePost(t, db, alice.ID, "first")

	res, err := svc.Toggle(ctx, bob.ID, "post", post.ID)
	require.NoError(t, err)
	assert.Equal(t, ReactionResult{Reacted: true, Total: 1}, res)

	res, err = svc.Toggle(ctx, alice.ID, "POST ", post.ID)
	require.NoError(t, err)
	assert.Equal(t, ReactionResult{Reacted: true, Total: 2}, res)

	res, err = svc.Toggle(ctx, bob.ID, "post", post.ID)
	require.NoError(t, err)
	assert.Equal(t, ReactionResult{Reacted: false, Total: 1}, res)

	status, err := svc.Status(ctx, bob.ID, "post", post.ID)
	require.NoError(t, err)
	assert.False(t, status.Reacted)
	assert.EqualValues(t, 1, status.Total)

	status, err = svc.Status(ctx, 0, "post", post.ID)
	require.NoError(t, err)
	assert.False(t, status.Reacted)
}

func TestToggleErrors(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewReactionService(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	u := testutil.MustCreateUser(t, db, "u")
	post := testutil.MustCreatePost(t, db, u.ID, "p")

	_, err := svc.Toggle(ctx, 0, "post", post.ID)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = svc.Toggle(ctx, u.ID, "user", u.ID)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = svc.Toggle(ctx, u.ID, "comment", 999)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = svc.Status(ctx, u.ID, "post", 999)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Reaction{}).Count(&n).Error)
	assert.Zero(t, n, "failed toggles must not leave rows behind")
}

func TestToggleKindsAreIndependent(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewReactionService(db, nil, zaptest.NewLogger(t))
	comments := NewCommentService(db, zaptest.NewLogger(t))
	ctx := context.Background()

	u := testutil.MustCreateUser(t, db, "u")
	post := testutil.MustCreatePost(t, db, u.ID, "p")
	c, err := comments.Add(ctx, post.ID, u.ID, "hi", nil)
	require.NoError(t, err)
	// Same numeric id on both kinds must not collide.
	require.Equal(t, post.ID, c.ID)

	_, err = svc.Toggle(ctx, u.ID, "post", post.ID)
	require.NoError(t, err)
	res, err := svc.Toggle(ctx, u.ID, "comment", c.ID)
	require.NoError(t, err)
	assert.True(t, res.Reacted)
	assert.EqualValues(t, 1, res.Total)

	counts, err := svc.CountMany(ctx, registry.KindComment, []uint{c.ID, c.ID, 42})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{c.ID: 1}, counts)
}

func TestConcurrentTogglesKeepOneRowPerPair(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewReactionService(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	author := testutil.MustCreateUser(t, db, "author")
	post := testutil.MustCreatePost(t, db, author.ID, "hot")

	const rounds = 9
	var wg sync.WaitGroup
	errs := make(chan error, rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Toggle(ctx, author.ID, "post", post.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows int64
	require.NoError(t, db.Model(&models.Reaction{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", author.ID, "post", post.ID).
		Count(&rows).Error)
	assert.EqualValues(t, rounds%2, rows)
}

func TestConcurrentTogglesFromManyUsers(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewReactionService(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	author := testutil.MustCreateUser(t, db, "author")
	post := testutil.MustCreatePost(t, db, author.ID, "hot")
	users := make([]models.User, 8)
	for i := range users {
		users[i] = testutil.MustCreateUser(t, db, "fan"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := svc.Toggle(ctx, id, "post", post.ID)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()

	total, err := svc.Count(ctx, "post", post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, len(users), total)
}

func TestHiddenPostsAreNotTargets(t *testing.T) {
	db := testutil.CreateTempDB(t)
	logger := zaptest.NewLogger(t)
	svc := NewReactionService(db, nil, logger)
	comments := NewCommentService(db, logger)
	ctx := context.Background()

	author := testutil.MustCreateUser(t, db, "author")
	reader := testutil.MustCreateUser(t, db, "reader")
	draft := models.Post{UserID: author.ID, Title: "secret", Content: "unpublished", Status: models.StatusDraft}
	require.NoError(t, db.Create(&draft).Error)

	note, err := comments.Add(ctx, draft.ID, author.ID, "note to self", nil)
	require.NoError(t, err, "authors may comment on their own drafts")

	_, err = comments.Add(ctx, draft.ID, reader.ID, "sneaky", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Toggle(ctx, reader.ID, "post", draft.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)
	_, err = svc.Toggle(ctx, reader.ID, "comment", note.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)
	_, err = svc.Status(ctx, reader.ID, "post", draft.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)
	_, err = svc.Status(ctx, 0, "comment", note.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	res, err := svc.Toggle(ctx, author.ID, "post", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ReactionResult{Reacted: true, Total: 1}, res)

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
