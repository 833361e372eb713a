package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/testutil"
)

type shape struct {
	ID      uint
	Likes   int64
	Replies []shape
}

func shapeOf(nodes []*CommentNode) []shape {
	out := []shape{}
	for _, n := range nodes {
		out = append(out, shape{ID: n.ID, Likes: n.LikeCount, Replies: shapeOf(n.Replies)})
	}
	return out
}

type commentFixture struct {
	db     *gorm.DB
	svc    *CommentService
	reacts *ReactionService
	author models.User
	other  models.User
	post   models.Post
	ctx    context.Context
}

func newCommentFixture(t *testing.T) *commentFixture {
	db := testutil.CreateTempDB(t)
	logger := zaptest.NewLogger(t)
	author := testutil.MustCreateUser(t, db, "author")
	return &commentFixture{
		db:     db,
		svc:    NewCommentService(db, logger),
		reacts: NewReactionService(db, nil, logger),
		author: author,
		other:  testutil.MustCreateUser(t, db, "other"),
		post:   testutil.MustCreatePost(t, db, author.ID, "thread"),
		ctx:    context.Background(),
	}
}

func (f *commentFixture) add(t *testing.T, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	var parentID *uint
	if parent != nil {
		parentID = &parent.ID
	}
	c, err := f.svc.Add(f.ctx, f.post.ID, f.author.ID, content, parentID)
	require.NoError(t, err)
	return c
}

func TestAddValidates(t *testing.T) {
	f := newCommentFixture(t)

	_, err := f.svc.Add(f.ctx, f.post.ID, 0, "hi", nil)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = f.svc.Add(f.ctx, f.post.ID, f.author.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Add(f.ctx, f.post.ID, f.author.ID, strings.Repeat("x", models.MaxCommentLength+1), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Add(f.ctx, 999, f.author.ID, "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	missing := uint(999)
	_, err = f.svc.Add(f.ctx, f.post.ID, f.author.ID, "hi", &missing)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := f.svc.Add(f.ctx, f.post.ID, f.author.ID, strings.Repeat("x", models.MaxCommentLength), nil)
	require.NoError(t, err)
	assert.Equal(t, "author", c.User.Username)
}

func TestAddRejectsParentOnAnotherPost(t *testing.T) {
	f := newCommentFixture(t)
	elsewhere := testutil.MustCreatePost(t, f.db, f.author.ID, "elsewhere")
	foreign, err := f.svc.Add(f.ctx, elsewhere.ID, f.author.ID, "over there", nil)
	require.NoError(t, err)

	_, err = f.svc.Add(f.ctx, f.post.ID, f.author.ID, "reply", &foreign.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddSanitizes(t *testing.T) {
	f := newCommentFixture(t)
	c := f.add(t, nil, `hello <script>alert(1)</script><b>world</b>`)
	assert.NotContains(t, c.Content, "<script>")
	assert.Contains(t, c.Content, "<b>world</b>")
}

func TestListTreeOrdersEveryLevel(t *testing.T) {
	f := newCommentFixture(t)
	a := f.add(t, nil, "a")
	b := f.add(t, nil, "b")
	a1 := f.add(t, a, "a1")
	a2 := f.add(t, a, "a2")
	a1x := f.add(t, a1, "a1x")
	b1 := f.add(t, b, "b1")

	_, err := f.reacts.Toggle(f.ctx, f.other.ID, "comment", a1.ID)
	require.NoError(t, err)
	_, err = f.reacts.Toggle(f.ctx, f.author.ID, "comment", a1.ID)
	require.NoError(t, err)
	_, err = f.reacts.Toggle(f.ctx, f.other.ID, "comment", b.ID)
	require.NoError(t, err)

	tree, err := f.svc.ListTree(f.ctx, f.post.ID)
	require.NoError(t, err)

	want := []shape{
		{ID: a.ID, Replies: []shape{
			{ID: a1.ID, Likes: 2, Replies: []shape{{ID: a1x.ID, Replies: []shape{}}}},
			{ID: a2.ID, Replies: []shape{}},
		}},
		{ID: b.ID, Likes: 1, Replies: []shape{{ID: b1.ID, Replies: []shape{}}}},
	}
	if diff := cmp.Diff(want, shapeOf(tree)); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "author", tree[0].User.Username)
}

func TestListTreeEmpty(t *testing.T) {
	f := newCommentFixture(t)
	tree, err := f.svc.ListTree(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Empty(t, tree)
	assert.NotNil(t, tree)
}

func TestListTreeToleratesCorruptParents(t *testing.T) {
	f := newCommentFixture(t)
	root := f.add(t, nil, "root")
	child := f.add(t, root, "child")
	loopA := f.add(t, nil, "loop a")
	loopB := f.add(t, nil, "loop b")
	self := f.add(t, nil, "self")
	orphan := f.add(t, nil, "orphan")

	setParent := func(c *models.Comment, parent uint) {
		require.NoError(t, f.db.Model(&models.Comment{}).Where("id = ?", c.ID).Update("parent_id", parent).Error)
	}
	setParent(loopA, loopB.ID)
	setParent(loopB, loopA.ID)
	setParent(self, self.ID)
	setParent(orphan, 9999)

	tree, err := f.svc.ListTree(f.ctx, f.post.ID)
	require.NoError(t, err)

	want := []shape{
		{ID: root.ID, Replies: []shape{{ID: child.ID, Replies: []shape{}}}},
		{ID: orphan.ID, Replies: []shape{}},
	}
	if diff := cmp.Diff(want, shapeOf(tree)); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}

	n, err := f.svc.Delete(f.ctx, loopA.ID, f.author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeleteCascadesToReplies(t *testing.T) {
	f := newCommentFixture(t)
	top := f.add(t, nil, "top")
	r1 := f.add(t, top, "r1")
	r2 := f.add(t, top, "r2")
	r1a := f.add(t, r1, "r1a")
	keep := f.add(t, nil, "keep")

	for _, id := range []uint{top.ID, r1a.ID, keep.ID} {
		_, err := f.reacts.Toggle(f.ctx, f.other.ID, "comment", id)
		require.NoError(t, err)
	}

	_, err := f.svc.Delete(f.ctx, top.ID, f.other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	n, err := f.svc.Delete(f.ctx, top.ID, f.author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	var left []uint
	require.NoError(t, f.db.Model(&models.Comment{}).Pluck("id", &left).Error)
	assert.Equal(t, []uint{keep.ID}, left)

	var orphans int64
	require.NoError(t, f.db.Model(&models.Reaction{}).
		Where("target_type = ? AND target_id IN ?", "comment", []uint{top.ID, r1.ID, r2.ID, r1a.ID}).
		Count(&orphans).Error)
	assert.Zero(t, orphans)

	kept, err := f.reacts.Count(f.ctx, "comment", keep.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, kept)

	_, err = f.svc.Delete(f.ctx, top.ID, f.author.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLeafReturnsOne(t *testing.T) {
	f := newCommentFixture(t)
	c := f.add(t, nil, "leaf")
	n, err := f.svc.Delete(f.ctx, c.ID, f.author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpdateComment(t *testing.T) {
	f := newCommentFixture(t)
	c := f.add(t, nil, "before")

	_, err := f.svc.Update(f.ctx, c.ID, f.other.ID, "hijack")
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.Update(f.ctx, c.ID, f.author.ID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)

	got, err := f.svc.Get(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Content)
}
