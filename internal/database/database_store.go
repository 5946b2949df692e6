package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgarogh/twiiiiter/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DBStore is the MongoDB-backed Store. Per-author append order is
// guaranteed by allocating sequence numbers from an atomic counter document
// per author.
type DBStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var DbStore *DBStore

func NewDatabaseStore() *DBStore {
	if DbStore == nil {
		DbStore = &DBStore{client: Client, db: Database}
	}
	return DbStore
}

func operationContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), OperationTimeout)
}

func (ds *DBStore) SaveAccount(name string, lastOnline int64) error {
	ctx, cancel := operationContext()
	defer cancel()

	if name == "" {
		return UsernameEmptyError
	}

	filter := bson.D{{Key: "name", Value: name}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "last_online", Value: lastOnline}}}}
	opts := options.Update().SetUpsert(true)

	result, err := ds.db.Collection(AccountCollectionName).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}

	if result.UpsertedID != nil {
		logger.InfoF("Account created: name=%s", name)
	}
	return nil
}

func (ds *DBStore) AccountExists(name string) (bool, error) {
	ctx, cancel := operationContext()
	defer cancel()

	if name == "" {
		return false, UsernameEmptyError
	}

	filter := bson.D{{Key: "name", Value: name}}
	err := ds.db.Collection(AccountCollectionName).FindOne(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database operation failed: %w", err)
	}
	return true, nil
}

func (ds *DBStore) Follow(follower, followee string) (bool, error) {
	ctx, cancel := operationContext()
	defer cancel()

	_, err := ds.db.Collection(FollowingCollectionName).InsertOne(ctx, Following{
		Follower: follower,
		Followee: followee,
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database operation failed: %w", err)
	}
	return true, nil
}

func (ds *DBStore) Unfollow(follower, followee string) (bool, error) {
	ctx, cancel := operationContext()
	defer cancel()

	filter := bson.D{{Key: "follower", Value: follower}, {Key: "followee", Value: followee}}
	result, err := ds.db.Collection(FollowingCollectionName).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("database operation failed: %w", err)
	}
	return result.DeletedCount != 0, nil
}

func (ds *DBStore) listEdges(filter bson.D, project string) ([]string, error) {
	ctx, cancel := operationContext()
	defer cancel()

	cursor, err := ds.db.Collection(FollowingCollectionName).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("database operation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var edge Following
		if err := cursor.Decode(&edge); err != nil {
			return nil, fmt.Errorf("database operation failed: %w", err)
		}
		if project == "followee" {
			names = append(names, edge.Followee)
		} else {
			names = append(names, edge.Follower)
		}
	}
	return names, cursor.Err()
}

func (ds *DBStore) ListFollowees(follower string) ([]string, error) {
	return ds.listEdges(bson.D{{Key: "follower", Value: follower}}, "followee")
}

func (ds *DBStore) ListFollowers(followee string) ([]string, error) {
	return ds.listEdges(bson.D{{Key: "followee", Value: followee}}, "follower")
}

// nextSeq atomically allocates the next position in the author's log.
func (ds *DBStore) nextSeq(ctx context.Context, author string) (uint64, error) {
	filter := bson.D{{Key: "author", Value: author}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Author string `bson:"author"`
		Seq    uint64 `bson:"seq"`
	}
	err := ds.db.Collection(CounterCollectionName).
		FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("database operation failed: %w", err)
	}
	return counter.Seq, nil
}

func (ds *DBStore) AppendMessage(author string, date int64, body []byte) (uint64, error) {
	ctx, cancel := operationContext()
	defer cancel()

	seq, err := ds.nextSeq(ctx, author)
	if err != nil {
		return 0, err
	}

	startTime := time.Now()
	_, err = ds.db.Collection(MessageCollectionName).InsertOne(ctx, StoredMessage{
		Author: author,
		Seq:    seq,
		Date:   date,
		Body:   body,
	})
	logger.DebugF("message append cost: %v", time.Since(startTime))

	if err != nil {
		return 0, fmt.Errorf("database operation failed: %w", err)
	}
	return seq, nil
}

func (ds *DBStore) MessagesAfter(author string, after uint64, limit int) ([]StoredMessage, error) {
	ctx, cancel := operationContext()
	defer cancel()

	filter := bson.D{{Key: "author", Value: author}, {Key: "seq", Value: bson.D{{Key: "$gt", Value: after}}}}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}).SetLimit(int64(limit))

	cursor, err := ds.db.Collection(MessageCollectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("database operation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []StoredMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("database operation failed: %w", err)
	}
	return messages, nil
}

func (ds *DBStore) GetCursor(follower, followee string) (uint64, error) {
	ctx, cancel := operationContext()
	defer cancel()

	filter := bson.D{{Key: "follower", Value: follower}, {Key: "followee", Value: followee}}
	var cursor DeliveryCursor

	err := ds.db.Collection(CursorCollectionName).FindOne(ctx, filter).Decode(&cursor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("database operation failed: %w", err)
	}
	return cursor.Position, nil
}

func (ds *DBStore) SetCursor(follower, followee string, position uint64) error {
	ctx, cancel := operationContext()
	defer cancel()

	filter := bson.D{{Key: "follower", Value: follower}, {Key: "followee", Value: followee}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "position", Value: position}}}}
	opts := options.Update().SetUpsert(true)

	_, err := ds.db.Collection(CursorCollectionName).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}

func (ds *DBStore) DeleteCursor(follower, followee string) error {
	ctx, cancel := operationContext()
	defer cancel()

	filter := bson.D{{Key: "follower", Value: follower}, {Key: "followee", Value: followee}}
	_, err := ds.db.Collection(CursorCollectionName).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}
