package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Ajay-css/chatify/database"
	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
)

// newTestMongo connects to MONGODB_URL and uses a throwaway database.
func newTestMongo(t *testing.T) *database.Mongo {
	t.Helper()
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := database.NewMongo(ctx, database.MongoConfig{
		URI:      url,
		Database: "chatify_test_" + uuid.NewString()[:8],
		MaxRetry: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.DB.Drop(context.Background())
		_ = m.Close(context.Background())
	})
	return m
}

func TestMongoRepos(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()
	users := NewMongoUserRepo(m.DB)
	messages := NewMongoMessageRepo(m.DB)

	a := createUser(t, users, "A", "a@example.com")
	b := createUser(t, users, "B", "b@example.com")

	err := users.Create(ctx, &models.User{FullName: "Dup", Email: "a@example.com"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	_, err = users.GetByID(ctx, "not-an-object-id")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	require.NoError(t, messages.Create(ctx, &models.Message{SenderID: a.ID, ReceiverID: b.ID, Text: "hi", Kind: models.KindText}))
	require.NoError(t, messages.Create(ctx, &models.Message{SenderID: b.ID, ReceiverID: a.ID, Kind: models.KindDocument, FileURL: "/f.pdf"}))

	msgs, err := messages.ListConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, models.KindDocument, msgs[1].Kind)

	n, err := messages.MarkSeen(ctx, a.ID, b.ID, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = messages.ListConversation(ctx, "bad", b.ID)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestMongoLegacyMessageFields(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()
	_, err := m.DB.Collection(messagesCollection).InsertMany(ctx, []any{
		bson.M{"senderId": a, "receiverId": b, "content": "old text", "createdAt": now, "updatedAt": now},
		bson.M{"senderId": a, "receiverId": b, "image": "https://cdn/x.jpg", "createdAt": now.Add(time.Second), "updatedAt": now},
		bson.M{"senderId": b, "receiverId": a, "fileUrl": "https://cdn/y", "fileType": "raw", "createdAt": now.Add(2 * time.Second), "updatedAt": now},
	})
	require.NoError(t, err)

	msgs, err := NewMongoMessageRepo(m.DB).ListConversation(ctx, a.Hex(), b.Hex())
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "old text", msgs[0].Text)
	assert.Equal(t, models.KindText, msgs[0].Kind)
	assert.Equal(t, models.KindImage, msgs[1].Kind)
	assert.Equal(t, "https://cdn/x.jpg", msgs[1].FileURL)
	assert.Equal(t, models.KindOther, msgs[2].Kind)
}
