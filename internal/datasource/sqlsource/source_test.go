package sqlsource

import (
	"strings"
	"testing"
	"time"

	"go-export/internal/datasource"
)

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing handle", Config{Database: "db", DBType: "postgresql"}},
		{"missing database", Config{Handle: "sql", DBType: "postgresql"}},
		{"bad table name", Config{Handle: "sql", Database: "db", DBType: "mysql", Tables: []string{"users; DROP"}}},
		{"bad date column", Config{Handle: "sql", Database: "db", DBType: "mysql", DateColumn: "created-at"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("New accepted invalid config")
			}
		})
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(Config{Handle: "sql", Database: "db", DBType: "sqlite"}); err == nil {
		t.Error("New accepted an unsupported driver")
	}
}

func TestNewNormalizesPostgresDriver(t *testing.T) {
	// Both spellings must end up on the lib/pq driver with $n placeholders,
	// not the MySQL DSN and "?" branch.
	for _, dbType := range []string{"postgres", "postgresql"} {
		src, err := New(Config{
			Handle: "sql", Database: "db", DBType: dbType,
			Host: "localhost", Username: "u", Password: "p",
		})
		if err != nil {
			t.Fatalf("New(%q): %v", dbType, err)
		}
		dsn := buildConnectionString(src.cfg)
		if !strings.Contains(dsn, "host=localhost") || !strings.Contains(dsn, "dbname=db") {
			t.Errorf("DBType %q produced a non-postgres dsn: %q", dbType, dsn)
		}
		if got := src.placeholder(1); got != "$1" {
			t.Errorf("DBType %q placeholder = %q, want $1", dbType, got)
		}
		src.Close()
	}
}

func TestBuildConnectionString(t *testing.T) {
	pg := buildConnectionString(Config{
		DBType: "postgresql", Host: "db.internal", Database: "crm",
		Username: "reporter", Password: "secret",
	})
	if !strings.Contains(pg, "port=5432") || !strings.Contains(pg, "dbname=crm") {
		t.Errorf("postgres dsn = %q", pg)
	}

	my := buildConnectionString(Config{
		DBType: "mysql", Host: "db.internal", Database: "crm",
		Username: "reporter", Password: "secret",
	})
	if !strings.Contains(my, ":3306)") || !strings.Contains(my, "/crm") {
		t.Errorf("mysql dsn = %q", my)
	}
}

func TestBuildSelect(t *testing.T) {
	src := &Source{cfg: Config{DBType: "postgresql", DateColumn: "created_at"}}
	fields := []datasource.Field{
		{Handle: "name", Label: "Name"},
		{Handle: "email", Label: "Email"},
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := src.buildSelect("contacts", fields, datasource.QueryOptions{
		StartDate: &start,
		Limit:     100,
		Offset:    50,
	})

	if !strings.HasPrefix(query, "SELECT name, email FROM contacts") {
		t.Errorf("query = %q", query)
	}
	if !strings.Contains(query, "created_at >= $1") {
		t.Errorf("missing date condition: %q", query)
	}
	if !strings.Contains(query, "ORDER BY created_at ASC") {
		t.Errorf("missing order by: %q", query)
	}
	if !strings.Contains(query, "LIMIT 100") || !strings.Contains(query, "OFFSET 50") {
		t.Errorf("missing paging: %q", query)
	}
	if len(args) != 1 {
		t.Errorf("args = %v, want the start bound only", args)
	}
}

func TestBuildSelectMySQLPlaceholders(t *testing.T) {
	src := &Source{cfg: Config{DBType: "mysql", DateColumn: "created_at"}}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	query, args := src.buildSelect("orders", []datasource.Field{{Handle: "id", Label: "ID"}}, datasource.QueryOptions{
		StartDate: &start,
		EndDate:   &end,
	})
	if !strings.Contains(query, "created_at >= ?") || !strings.Contains(query, "created_at < ?") {
		t.Errorf("mysql placeholders missing: %q", query)
	}
	if len(args) != 2 {
		t.Errorf("args = %v, want both bounds", args)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"contacts":    "Contacts",
		"order_items": "Order Items",
		"created_at":  "Created At",
		"id":          "Id",
	}
	for in, want := range cases {
		if got := displayName(in); got != want {
			t.Errorf("displayName(%q) = %q, want %q", in, got, want)
		}
	}
}
