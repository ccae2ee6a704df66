package query

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// schemaCache is shared across FieldSet construction so each model is parsed once per process.
var schemaCache = &sync.Map{}

// FieldSet is the static registry of filterable attributes for one entity type, built from the
// model's declared schema when its repository is constructed. Lookups at query time are plain
// map hits, so unknown-field failures are cheap and exhaustive.
type FieldSet struct {
	table   string
	columns map[string]string
}

// FieldSetFor parses the model schema and registers every declared database column under its
// column name, which doubles as the external filter field name.
func FieldSetFor(db *gorm.DB, model any) (*FieldSet, error) {
	namer := schema.Namer(schema.NamingStrategy{})
	if db != nil && db.NamingStrategy != nil {
		namer = db.NamingStrategy
	}

	s, err := schema.Parse(model, schemaCache, namer)
	if err != nil {
		return nil, fmt.Errorf("query: parse schema for %T: %w", model, err)
	}

	columns := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		if f.DBName == "" {
			continue
		}
		columns[f.DBName] = f.DBName
	}

	return &FieldSet{table: s.Table, columns: columns}, nil
}

// Table returns the database table the field set was built from.
func (fs *FieldSet) Table() string {
	return fs.table
}

// Has reports whether the entity declares the given field.
func (fs *FieldSet) Has(field string) bool {
	_, ok := fs.columns[field]
	return ok
}

// Column resolves a field name to its database column.
func (fs *FieldSet) Column(field string) (string, bool) {
	col, ok := fs.columns[field]
	return col, ok
}
