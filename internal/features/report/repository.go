package report

import (
	"context"
	"time"

	"go-export/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	GetBySlug(ctx context.Context, slug string) (*Report, error)
	List(ctx context.Context) ([]Report, error)
	Update(ctx context.Context, id string, report *Report) error
	Delete(ctx context.Context, id string) error

	// Due returns enabled, schedule-enabled reports whose next_scheduled_at
	// is at or before now, in creation order so scheduler passes are
	// deterministic.
	Due(ctx context.Context, now time.Time) ([]Report, error)

	// UpdateScheduleState stamps the outcome of one scheduler pass.
	// nextScheduledAt may be nil when the report's schedule is disabled.
	UpdateScheduleState(ctx context.Context, id primitive.ObjectID, lastGeneratedAt time.Time, nextScheduledAt *time.Time) error
}

type ReportRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewReportRepository(db *database.MongodbDB) ReportRepository {
	return &ReportRepositoryImpl{
		Collection: db.DB.Collection("reports"),
	}
}

func (r *ReportRepositoryImpl) Create(ctx context.Context, report *Report) error {
	report.CreatedAt = time.Now()
	report.UpdatedAt = time.Now()
	_, err := r.Collection.InsertOne(ctx, report)
	return err
}

func (r *ReportRepositoryImpl) Get(ctx context.Context, id string) (*Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var report Report
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepositoryImpl) GetBySlug(ctx context.Context, slug string) (*Report, error) {
	var report Report
	err := r.Collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepositoryImpl) List(ctx context.Context) ([]Report, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "sort_order", Value: 1},
		{Key: "created_at", Value: 1},
	})
	cursor, err := r.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReportRepositoryImpl) Update(ctx context.Context, id string, report *Report) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	report.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"name":              report.Name,
			"slug":              report.Slug,
			"source_handle":     report.SourceHandle,
			"entity_ids":        report.EntityIDs,
			"site_id":           report.SiteID,
			"date_range":        report.DateRange,
			"start_date":        report.StartDate,
			"end_date":          report.EndDate,
			"field_handles":     report.FieldHandles,
			"format":            report.Format,
			"mode":              report.Mode,
			"enable_schedule":   report.EnableSchedule,
			"schedule_id":       report.ScheduleID,
			"next_scheduled_at": report.NextScheduledAt,
			"enabled":           report.Enabled,
			"sort_order":        report.SortOrder,
			"updated_at":        report.UpdatedAt,
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}

func (r *ReportRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (r *ReportRepositoryImpl) Due(ctx context.Context, now time.Time) ([]Report, error) {
	filter := bson.M{
		"enabled":           true,
		"enable_schedule":   true,
		"next_scheduled_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReportRepositoryImpl) UpdateScheduleState(ctx context.Context, id primitive.ObjectID, lastGeneratedAt time.Time, nextScheduledAt *time.Time) error {
	set := bson.M{
		"last_generated_at": lastGeneratedAt,
		"updated_at":        time.Now(),
	}
	update := bson.M{"$set": set}
	if nextScheduledAt != nil {
		set["next_scheduled_at"] = *nextScheduledAt
	} else {
		update["$unset"] = bson.M{"next_scheduled_at": ""}
	}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}
