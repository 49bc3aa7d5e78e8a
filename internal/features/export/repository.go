package export

import (
	"context"
	"errors"
	"time"

	"go-export/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotPending means a claim lost: the export exists but is no longer in
// the pending state, so another worker already picked it up (or it finished).
var ErrNotPending = errors.New("export is not pending")

type ExportRepository interface {
	Create(ctx context.Context, exp *Export) error
	Get(ctx context.Context, id string) (*Export, error)
	List(ctx context.Context) ([]Export, error)
	ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]Export, error)
	Delete(ctx context.Context, id string) error

	// Claim atomically moves a pending export to processing and returns the
	// claimed document. ErrNotPending if the export exists in another state,
	// mongo.ErrNoDocuments if it does not exist at all.
	Claim(ctx context.Context, id primitive.ObjectID, startedAt time.Time) (*Export, error)
	UpdateProgress(ctx context.Context, id primitive.ObjectID, progress int) error
	MarkCompleted(ctx context.Context, id primitive.ObjectID, fileName, filePath string, fileSize int64, recordCount int, completedAt time.Time) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, reason string, completedAt time.Time) error

	// ListOlderThan returns every export created before the cutoff regardless
	// of status, so cleanup also sweeps records stranded in processing by a
	// crashed worker.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Export, error)

	// DetachReport nulls report_id on every export owned by the report,
	// keeping the export records and files intact.
	DetachReport(ctx context.Context, reportID primitive.ObjectID) error
}

type ExportRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewExportRepository(db *database.MongodbDB) ExportRepository {
	return &ExportRepositoryImpl{
		Collection: db.DB.Collection("exports"),
	}
}

func (r *ExportRepositoryImpl) Create(ctx context.Context, exp *Export) error {
	exp.CreatedAt = time.Now()
	exp.UpdatedAt = time.Now()
	_, err := r.Collection.InsertOne(ctx, exp)
	return err
}

func (r *ExportRepositoryImpl) Get(ctx context.Context, id string) (*Export, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var exp Export
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&exp)
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func (r *ExportRepositoryImpl) List(ctx context.Context) ([]Export, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exports []Export
	if err := cursor.All(ctx, &exports); err != nil {
		return nil, err
	}
	return exports, nil
}

func (r *ExportRepositoryImpl) ListByReport(ctx context.Context, reportID primitive.ObjectID) ([]Export, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.Collection.Find(ctx, bson.M{"report_id": reportID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exports []Export
	if err := cursor.All(ctx, &exports); err != nil {
		return nil, err
	}
	return exports, nil
}

func (r *ExportRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (r *ExportRepositoryImpl) Claim(ctx context.Context, id primitive.ObjectID, startedAt time.Time) (*Export, error) {
	filter := bson.M{"_id": id, "status": StatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":     StatusProcessing,
			"started_at": startedAt,
			"updated_at": time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var exp Export
	err := r.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&exp)
	if err == nil {
		return &exp, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// No pending document matched. Distinguish "already claimed" from
	// "does not exist".
	count, cerr := r.Collection.CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return nil, cerr
	}
	if count > 0 {
		return nil, ErrNotPending
	}
	return nil, mongo.ErrNoDocuments
}

func (r *ExportRepositoryImpl) UpdateProgress(ctx context.Context, id primitive.ObjectID, progress int) error {
	update := bson.M{
		"$set": bson.M{
			"progress":   progress,
			"updated_at": time.Now(),
		},
	}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id, "status": StatusProcessing}, update)
	return err
}

func (r *ExportRepositoryImpl) MarkCompleted(ctx context.Context, id primitive.ObjectID, fileName, filePath string, fileSize int64, recordCount int, completedAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":       StatusCompleted,
			"progress":     100,
			"file_name":    fileName,
			"file_path":    filePath,
			"file_size":    fileSize,
			"record_count": recordCount,
			"completed_at": completedAt,
			"updated_at":   time.Now(),
		},
	}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id, "status": StatusProcessing}, update)
	return err
}

func (r *ExportRepositoryImpl) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string, completedAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":       StatusFailed,
			"error":        reason,
			"completed_at": completedAt,
			"updated_at":   time.Now(),
		},
	}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id, "status": StatusProcessing}, update)
	return err
}

func (r *ExportRepositoryImpl) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Export, error) {
	filter := bson.M{"created_at": bson.M{"$lt": cutoff}}
	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exports []Export
	if err := cursor.All(ctx, &exports); err != nil {
		return nil, err
	}
	return exports, nil
}

func (r *ExportRepositoryImpl) DetachReport(ctx context.Context, reportID primitive.ObjectID) error {
	update := bson.M{
		"$unset": bson.M{"report_id": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}
	_, err := r.Collection.UpdateMany(ctx, bson.M{"report_id": reportID}, update)
	return err
}
