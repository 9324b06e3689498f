package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
)

const messagesCollection = "messages"

// messageDoc is the stored shape. Image and Content are legacy fields: they
// are read but never written.
type messageDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SenderID   primitive.ObjectID `bson:"senderId"`
	ReceiverID primitive.ObjectID `bson:"receiverId"`
	Text       string             `bson:"text,omitempty"`
	Content    string             `bson:"content,omitempty"`
	Image      string             `bson:"image,omitempty"`
	FileURL    string             `bson:"fileUrl,omitempty"`
	FileType   string             `bson:"fileType,omitempty"`
	Seen       bool               `bson:"seen"`
	SeenAt     *time.Time         `bson:"seenAt,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d *messageDoc) toModel() models.Message {
	text := d.Text
	if text == "" {
		text = d.Content
	}
	kind, url := models.NormalizeAttachment(d.FileType, d.FileURL, d.Image)

	return models.Message{
		ID:         d.ID.Hex(),
		SenderID:   d.SenderID.Hex(),
		ReceiverID: d.ReceiverID.Hex(),
		Text:       text,
		Kind:       kind,
		FileURL:    url,
		Seen:       d.Seen,
		SeenAt:     d.SeenAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type mongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepo(db *mongo.Database) MessageRepository {
	return &mongoMessageRepo{coll: db.Collection(messagesCollection)}
}

func (r *mongoMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	sender, receiver, err := objectIDPair(msg.SenderID, msg.ReceiverID)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := messageDoc{
		ID:         primitive.NewObjectID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       msg.Text,
		Seen:       msg.Seen,
		SeenAt:     msg.SeenAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if msg.Kind != models.KindText && msg.Kind != "" {
		doc.FileURL = msg.FileURL
		doc.FileType = string(msg.Kind)
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert message")
	}

	msg.ID = doc.ID.Hex()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return nil
}

func (r *mongoMessageRepo) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	oa, ob, err := objectIDPair(a, b)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": oa, "receiverId": ob},
		bson.M{"senderId": ob, "receiverId": oa},
	}}
	// _id breaks ties: ObjectIDs grow with insertion time
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find conversation")
	}
	defer cur.Close(ctx)

	messages := []models.Message{}
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode message")
		}
		messages = append(messages, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate conversation")
	}
	return messages, nil
}

func (r *mongoMessageRepo) MarkSeen(ctx context.Context, senderID, receiverID string, seenAt time.Time) (int64, error) {
	sender, receiver, err := objectIDPair(senderID, receiverID)
	if err != nil {
		return 0, err
	}

	seenAt = seenAt.UTC().Truncate(time.Millisecond)
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"senderId": sender, "receiverId": receiver, "seen": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"seen": true, "seenAt": seenAt, "updatedAt": seenAt}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark messages seen")
	}
	return res.ModifiedCount, nil
}

func objectIDPair(a, b string) (primitive.ObjectID, primitive.ObjectID, error) {
	oa, err := primitive.ObjectIDFromHex(a)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, errors.Wrapf(pkg.ErrBadRequest, "invalid user id %q", a)
	}
	ob, err := primitive.ObjectIDFromHex(b)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, errors.Wrapf(pkg.ErrBadRequest, "invalid user id %q", b)
	}
	return oa, ob, nil
}
