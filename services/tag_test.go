package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cppla/aiblog/testutil"
)

func TestTagLifecycle(t *testing.T) {
	db := testutil.CreateTempDB(t)
	svc := NewTagService(db, zaptest.NewLogger(t))
	posts := NewPostService(db, zaptest.NewLogger(t))
	ctx := context.Background()

	tag, err := svc.Create(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, "#golang", tag.TagName)

	_, err = svc.Create(ctx, "#golang")
	assert.ErrorIs(t, err, ErrConflict)

	for _, bad := range []string{"", "  ", "#", strings.Repeat("x", 79)} {
		_, err = svc.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidInput, "name %q", bad)
	}
	_, err = svc.Create(ctx, strings.Repeat("y", 78))
	require.NoError(t, err)

	u := testutil.MustCreateUser(t, db, "u")
	p, err := posts.Create(ctx, u.ID, PostInput{Title: "t", Content: "c", Tags: []string{"golang", "new"}})
	require.NoError(t, err)
	require.Len(t, p.Tags, 2)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, svc.Delete(ctx, tag.ID))
	assert.ErrorIs(t, svc.Delete(ctx, tag.ID), ErrNotFound)

	got, err := posts.Get(ctx, p.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "#new", got.Tags[0].TagName)
}
