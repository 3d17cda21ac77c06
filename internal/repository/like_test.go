package repository

import (
	"context"
	"testing"

	"warbler/internal/models"
	"warbler/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_Toggle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	msg := testutil.CreateMessage(t, db, author, "likeable")

	liked, err := repo.Toggle(ctx, fan.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	var rows []models.Like
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, fan.ID, rows[0].UserID)
	assert.Equal(t, msg.ID, rows[0].MessageID)

	liked, err = repo.Toggle(ctx, fan.ID, msg.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).Count(&count).Error)
	assert.Zero(t, count, "toggling twice returns the edge to absent")
}

func TestLikeRepository_OwnMessageMayBeLiked(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)

	author := testutil.CreateUser(t, db, "author")
	msg := testutil.CreateMessage(t, db, author, "mine")

	liked, err := repo.Toggle(context.Background(), author.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestLikeRepository_ToggleMissingMessageFails(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)

	fan := testutil.CreateUser(t, db, "fan")
	_, err := repo.Toggle(context.Background(), fan.ID, 4242)
	assert.True(t, models.HasCode(err, models.CodeInternal))
}

func TestLikeRepository_Queries(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	other := testutil.CreateUser(t, db, "other")
	m1 := testutil.CreateMessage(t, db, author, "one")
	m2 := testutil.CreateMessage(t, db, author, "two")
	m3 := testutil.CreateMessage(t, db, author, "three")

	testutil.Like(t, db, fan, m1)
	testutil.Like(t, db, fan, m2)
	testutil.Like(t, db, other, m1)

	n, err := repo.Count(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err := repo.CountByMessages(ctx, []uint{m1.ID, m2.ID, m3.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{m1.ID: 2, m2.ID: 1}, counts)

	empty, err := repo.CountByMessages(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	isLiked, err := repo.IsLiked(ctx, fan.ID, m2.ID)
	require.NoError(t, err)
	assert.True(t, isLiked)
	isLiked, err = repo.IsLiked(ctx, other.ID, m2.ID)
	require.NoError(t, err)
	assert.False(t, isLiked)

	ids, err := repo.LikedIDs(ctx, fan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{m1.ID, m2.ID}, ids)

	msgs, err := repo.LikedMessages(ctx, fan.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, texts(msgs))
	for _, m := range msgs {
		require.NotNil(t, m.User)
		assert.Equal(t, "author", m.User.Username)
	}

	none, err := repo.LikedMessages(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
