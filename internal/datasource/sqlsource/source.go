package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-export/internal/datasource"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Config selects the driver and the tables exposed as entities. Only the
// allow-listed tables are reportable; the rest of the database stays hidden.
type Config struct {
	Handle     string // data-source handle, e.g. "warehouse"
	Name       string // display name, e.g. "Warehouse"
	DBType     string // "postgres", "postgresql", or "mysql"
	Host       string
	Port       int
	Database   string
	Username   string
	Password   string
	Tables     []string
	DateColumn string // column used for date-range filtering, empty disables it
}

// Source exposes SQL tables as reportable entities. Adapted to the
// datasource contract; schema discovery goes through information_schema.
type Source struct {
	cfg Config
	db  *sql.DB
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func New(cfg Config) (*Source, error) {
	if cfg.Handle == "" || cfg.Database == "" {
		return nil, fmt.Errorf("sql source requires a handle and a database")
	}
	for _, table := range cfg.Tables {
		if !identifierPattern.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	if cfg.DateColumn != "" && !identifierPattern.MatchString(cfg.DateColumn) {
		return nil, fmt.Errorf("invalid date column %q", cfg.DateColumn)
	}

	var driver string
	switch cfg.DBType {
	case "postgres", "postgresql":
		// Canonicalize so the DSN and placeholder branches see one spelling.
		cfg.DBType = "postgresql"
		driver = "postgres"
	case "mysql":
		driver = "mysql"
	default:
		return nil, fmt.Errorf("unsupported sql source driver %q", cfg.DBType)
	}

	db, err := sql.Open(driver, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.DBType, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &Source{cfg: cfg, db: db}, nil
}

func (s *Source) Handle() string { return s.cfg.Handle }
func (s *Source) Name() string   { return s.cfg.Name }

func (s *Source) Available(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) Entities(ctx context.Context) ([]datasource.Entity, error) {
	entities := make([]datasource.Entity, 0, len(s.cfg.Tables))
	for _, table := range s.cfg.Tables {
		var count int64
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
		if err := row.Scan(&count); err != nil {
			count = 0
		}
		entities = append(entities, datasource.Entity{
			ID:     table,
			Name:   displayName(table),
			Handle: table,
			Count:  count,
		})
	}
	return entities, nil
}

func (s *Source) Entity(ctx context.Context, id string) (*datasource.Entity, error) {
	for _, table := range s.cfg.Tables {
		if table == id {
			var count int64
			row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
			if err := row.Scan(&count); err != nil {
				count = 0
			}
			return &datasource.Entity{ID: table, Name: displayName(table), Handle: table, Count: count}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", datasource.ErrEntityNotFound, id)
}

func (s *Source) Fields(ctx context.Context, entityID string) ([]datasource.Field, error) {
	if _, err := s.Entity(ctx, entityID); err != nil {
		return nil, err
	}

	var query string
	if s.cfg.DBType == "postgresql" {
		query = `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = $1
			ORDER BY ordinal_position
		`
	} else { // mysql
		query = `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = ?
			ORDER BY ordinal_position
		`
	}

	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	defer rows.Close()

	var fields []datasource.Field
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		fields = append(fields, datasource.Field{
			Handle:     columnName,
			Label:      displayName(columnName),
			Type:       dataType,
			Exportable: true,
		})
	}
	return fields, rows.Err()
}

func (s *Source) Export(ctx context.Context, entityID string, fieldHandles []string, opts datasource.QueryOptions) (*datasource.ExportData, error) {
	fields, err := s.Fields(ctx, entityID)
	if err != nil {
		return nil, err
	}

	selected := fields
	if len(fieldHandles) > 0 {
		byHandle := make(map[string]datasource.Field, len(fields))
		for _, f := range fields {
			byHandle[f.Handle] = f
		}
		selected = make([]datasource.Field, 0, len(fieldHandles))
		for _, h := range fieldHandles {
			if f, ok := byHandle[h]; ok {
				selected = append(selected, f)
			}
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("entity %s has no exportable fields", entityID)
	}

	query, args := s.buildSelect(entityID, selected, opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute export query: %w", err)
	}
	defer rows.Close()

	data := &datasource.ExportData{Headers: make([]string, 0, len(selected))}
	for _, f := range selected {
		data.Headers = append(data.Headers, f.Label)
	}

	values := make([]any, len(selected))
	scanTargets := make([]any, len(selected))
	for i := range values {
		scanTargets[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		row := make([]any, len(selected))
		for i, v := range values {
			row[i] = cellValue(v)
		}
		data.Rows = append(data.Rows, row)
	}
	return data, rows.Err()
}

func (s *Source) buildSelect(table string, fields []datasource.Field, opts datasource.QueryOptions) (string, []any) {
	var query strings.Builder
	var args []any
	argIndex := 1

	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, f.Handle)
	}

	query.WriteString("SELECT ")
	query.WriteString(strings.Join(columns, ", "))
	query.WriteString(fmt.Sprintf(" FROM %s", table))

	if s.cfg.DateColumn != "" {
		start, end := opts.Window(time.Now())
		var conditions []string
		if start != nil {
			conditions = append(conditions, fmt.Sprintf("%s >= %s", s.cfg.DateColumn, s.placeholder(argIndex)))
			args = append(args, *start)
			argIndex++
		}
		if end != nil {
			conditions = append(conditions, fmt.Sprintf("%s < %s", s.cfg.DateColumn, s.placeholder(argIndex)))
			args = append(args, *end)
			argIndex++
		}
		if len(conditions) > 0 {
			query.WriteString(" WHERE ")
			query.WriteString(strings.Join(conditions, " AND "))
		}
		query.WriteString(fmt.Sprintf(" ORDER BY %s ASC", s.cfg.DateColumn))
	}

	if opts.Limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", opts.Limit))
	}
	if opts.Offset > 0 {
		query.WriteString(fmt.Sprintf(" OFFSET %d", opts.Offset))
	}

	return query.String(), args
}

// placeholder returns the appropriate placeholder for the database type
func (s *Source) placeholder(index int) string {
	if s.cfg.DBType == "postgresql" {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

// buildConnectionString creates a connection string from config
func buildConnectionString(cfg Config) string {
	port := cfg.Port
	if port == 0 {
		if cfg.DBType == "postgresql" {
			port = 5432
		} else {
			port = 3306
		}
	}

	if cfg.DBType == "postgresql" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, port, cfg.Username, cfg.Password, cfg.Database,
		)
	}

	// MySQL
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database,
	)
}

func displayName(identifier string) string {
	parts := strings.Split(identifier, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func cellValue(val any) any {
	switch v := val.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case nil:
		return ""
	default:
		return v
	}
}
