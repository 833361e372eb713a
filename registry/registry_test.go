package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/testutil"
)

func TestResolve(t *testing.T) {
	reg := registry.Default()

	for _, tag := range []string{"post", "POST", "  Post "} {
		e, err := reg.Resolve(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, registry.KindPost, e.Kind)
	}
	e, err := reg.Resolve("comment")
	require.NoError(t, err)
	assert.Equal(t, registry.KindComment, e.Kind)

	_, err = reg.Resolve("user")
	assert.ErrorIs(t, err, registry.ErrUnknownType)
	_, err = reg.Resolve("")
	assert.ErrorIs(t, err, registry.ErrUnknownType)
}

func TestKindOf(t *testing.T) {
	reg := registry.Default()

	k, err := reg.KindOf(models.Post{})
	require.NoError(t, err)
	assert.Equal(t, registry.KindPost, k)

	k, err = reg.KindOf(&models.Comment{})
	require.NoError(t, err)
	assert.Equal(t, registry.KindComment, k)

	_, err = reg.KindOf(&models.User{})
	assert.ErrorIs(t, err, registry.ErrUnknownType)
	_, err = reg.KindOf(nil)
	assert.ErrorIs(t, err, registry.ErrUnknownType)
}

func TestKindsSorted(t *testing.T) {
	assert.Equal(t, []registry.Kind{registry.KindComment, registry.KindPost}, registry.Default().Kinds())
}

func TestDuplicateKindPanics(t *testing.T) {
	assert.Panics(t, func() {
		registry.New(
			registry.Entry{Kind: "a", Model: &models.Post{}},
			registry.Entry{Kind: "a", Model: &models.Comment{}},
		)
	})
	assert.Panics(t, func() {
		registry.New(
			registry.Entry{Kind: "a", Model: &models.Post{}},
			registry.Entry{Kind: "b", Model: models.Post{}},
		)
	})
}

func TestExistsAndFetch(t *testing.T) {
	db := testutil.CreateTempDB(t)
	u := testutil.MustCreateUser(t, db, "alice")
	p := testutil.MustCreatePost(t, db, u.ID, "Hello")

	e, err := registry.Default().Resolve("post")
	require.NoError(t, err)

	ok, err := e.Exists(db, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Exists(db, p.ID+100)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := e.Fetch(db, p.ID)
	require.NoError(t, err)
	post, isPost := got.(*models.Post)
	require.True(t, isPost)
	assert.Equal(t, "Hello", post.Title)

	_, err = e.Fetch(db, p.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
