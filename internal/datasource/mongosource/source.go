package mongosource

import (
	"context"
	"fmt"
	"time"

	"go-export/internal/database"
	"go-export/internal/datasource"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sourceHandle = "records"

// entityDef describes one reportable collection. Definitions live in the
// entity_defs collection and are managed out of band (seeding, admin tooling).
type entityDef struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Handle     string             `bson:"handle"`
	Name       string             `bson:"name"`
	Collection string             `bson:"collection"`
	Fields     []fieldDef         `bson:"fields"`
}

type fieldDef struct {
	Handle     string `bson:"handle"`
	Label      string `bson:"label"`
	Type       string `bson:"type"`
	Exportable bool   `bson:"exportable"`
}

// Source exposes Mongo collections as reportable entities.
type Source struct {
	db *mongo.Database
}

func New(db *database.MongodbDB) *Source {
	return &Source{db: db.DB}
}

func (s *Source) Handle() string { return sourceHandle }
func (s *Source) Name() string   { return "Records" }

func (s *Source) Available(ctx context.Context) bool {
	return s.db.Client().Ping(ctx, nil) == nil
}

func (s *Source) Entities(ctx context.Context) ([]datasource.Entity, error) {
	defs, err := s.loadDefs(ctx)
	if err != nil {
		return nil, err
	}

	entities := make([]datasource.Entity, 0, len(defs))
	for _, def := range defs {
		count, err := s.db.Collection(def.Collection).CountDocuments(ctx, bson.M{})
		if err != nil {
			// A missing or unreadable collection degrades to a zero count
			// rather than hiding the entity from listings.
			count = 0
		}
		entities = append(entities, datasource.Entity{
			ID:     def.ID.Hex(),
			Name:   def.Name,
			Handle: def.Handle,
			Count:  count,
		})
	}
	return entities, nil
}

func (s *Source) Entity(ctx context.Context, id string) (*datasource.Entity, error) {
	def, err := s.loadDef(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.db.Collection(def.Collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		count = 0
	}
	return &datasource.Entity{ID: def.ID.Hex(), Name: def.Name, Handle: def.Handle, Count: count}, nil
}

func (s *Source) Fields(ctx context.Context, entityID string) ([]datasource.Field, error) {
	def, err := s.loadDef(ctx, entityID)
	if err != nil {
		return nil, err
	}

	fields := make([]datasource.Field, 0, len(def.Fields))
	for _, f := range def.Fields {
		fields = append(fields, datasource.Field{
			Handle:     f.Handle,
			Label:      f.Label,
			Type:       f.Type,
			Exportable: f.Exportable,
		})
	}
	return fields, nil
}

func (s *Source) Export(ctx context.Context, entityID string, fieldHandles []string, opts datasource.QueryOptions) (*datasource.ExportData, error) {
	def, err := s.loadDef(ctx, entityID)
	if err != nil {
		return nil, err
	}

	fields := selectFields(def.Fields, fieldHandles)

	filter := bson.M{}
	start, end := opts.Window(time.Now())
	window := bson.M{}
	if start != nil {
		window["$gte"] = *start
	}
	if end != nil {
		window["$lt"] = *end
	}
	if len(window) > 0 {
		filter["created_at"] = window
	}
	if opts.SiteID != "" {
		filter["site_id"] = opts.SiteID
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(opts.Offset)
	}

	cursor, err := s.db.Collection(def.Collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", def.Collection, err)
	}
	defer cursor.Close(ctx)

	var docs []map[string]any
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", def.Collection, err)
	}

	data := &datasource.ExportData{
		Headers: make([]string, 0, len(fields)),
		Rows:    make([][]any, 0, len(docs)),
	}
	for _, f := range fields {
		data.Headers = append(data.Headers, f.Label)
	}
	for _, doc := range docs {
		row := make([]any, 0, len(fields))
		for _, f := range fields {
			row = append(row, cellValue(doc[f.Handle]))
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

func (s *Source) loadDefs(ctx context.Context) ([]entityDef, error) {
	cursor, err := s.db.Collection("entity_defs").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "handle", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list entity defs: %w", err)
	}
	defer cursor.Close(ctx)

	var defs []entityDef
	if err := cursor.All(ctx, &defs); err != nil {
		return nil, fmt.Errorf("decode entity defs: %w", err)
	}
	return defs, nil
}

func (s *Source) loadDef(ctx context.Context, entityID string) (*entityDef, error) {
	oid, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", datasource.ErrEntityNotFound, entityID)
	}
	var def entityDef
	err = s.db.Collection("entity_defs").FindOne(ctx, bson.M{"_id": oid}).Decode(&def)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %s", datasource.ErrEntityNotFound, entityID)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func selectFields(defs []fieldDef, handles []string) []fieldDef {
	if len(handles) == 0 {
		exportable := make([]fieldDef, 0, len(defs))
		for _, f := range defs {
			if f.Exportable {
				exportable = append(exportable, f)
			}
		}
		return exportable
	}

	byHandle := make(map[string]fieldDef, len(defs))
	for _, f := range defs {
		byHandle[f.Handle] = f
	}
	selected := make([]fieldDef, 0, len(handles))
	for _, h := range handles {
		if f, ok := byHandle[h]; ok && f.Exportable {
			selected = append(selected, f)
		}
	}
	return selected
}

// cellValue flattens driver types into values every encoder can handle.
func cellValue(val any) any {
	switch v := val.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().Format("2006-01-02 15:04:05")
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case map[string]any:
		if name, ok := v["name"]; ok {
			return fmt.Sprintf("%v", name)
		}
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	default:
		return v
	}
}
