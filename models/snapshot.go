package models

import (
	"context"

	"github.com/parishops/registry_backend/config"
)

// Register tables are variably shaped: older parishes imported registers
// with whatever columns their paper books had. Nothing here may assume a
// column exists without consulting the probe first.

// ColumnProber reports the set of columns available on a register table.
type ColumnProber interface {
	Columns(ctx context.Context, table string) (map[string]bool, error)
}

type migratorProber struct{}

// NewColumnProber probes through gorm's migrator against the live schema.
func NewColumnProber() ColumnProber {
	return migratorProber{}
}

func (migratorProber) Columns(ctx context.Context, table string) (map[string]bool, error) {
	db := config.GetDB()
	types, err := db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, err
	}
	cols := make(map[string]bool, len(types))
	for _, t := range types {
		cols[t.Name()] = true
	}
	return cols, nil
}

// Fixed-priority field lists for the context snapshot. Canonical name
// fields first, then canonical date fields, then the identifier.
var snapshotNameFields = []string{"full_name", "child_name", "name"}

var snapshotNamePairs = [][2]string{{"first_name", "last_name"}}

var snapshotDateFields = []string{
	"baptism_date",
	"confirmation_date",
	"marriage_date",
	"funeral_date",
	"record_date",
	"date_of_birth",
}

// SelectSnapshotFields picks the columns for an assignment's context
// snapshot from the probed set: at most one name unit plus the first
// available date field, falling back to the identifier when neither
// exists. An empty result means no usable field at all.
func SelectSnapshotFields(available map[string]bool) []string {
	var fields []string

	for _, f := range snapshotNameFields {
		if available[f] {
			fields = append(fields, f)
			break
		}
	}
	if len(fields) == 0 {
		for _, pair := range snapshotNamePairs {
			if available[pair[0]] && available[pair[1]] {
				fields = append(fields, pair[0], pair[1])
				break
			}
		}
	}

	for _, f := range snapshotDateFields {
		if available[f] {
			fields = append(fields, f)
			break
		}
	}

	if len(fields) == 0 && available["id"] {
		fields = append(fields, "id")
	}
	return fields
}

// FetchContextSnapshot reads only the selected fields of one record. The
// snapshot is a small denormalized subset, never the full row.
func FetchContextSnapshot(ctx context.Context, table string, recordId int, fields []string) (map[string]interface{}, error) {
	db := config.GetDB()
	row := map[string]interface{}{}
	err := db.WithContext(ctx).Table(table).Select(fields).Where("id = ?", recordId).Take(&row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}
