package store

import "github.com/neighborhood-lab/care-commons-sub007/internal/model"

// KindSchema is the static description of one entity kind's table, in
// place of the runtime decorators/field annotations the source system
// used to declare schema (spec.md §9: "Runtime decorators / field
// annotations ... become static schema structs in the target").
type KindSchema struct {
	Kind EntityKindTable
	// IndexedColumns lists the columns, beyond the always-indexed
	// organization_id/updated_at, that get a secondary index.
	IndexedColumns []string
}

// EntityKindTable is the table-name-safe form of model.EntityKind.
type EntityKindTable = model.EntityKind

// Schema is the full set of tables the Local Store declares. All time
// fields are indexed (spec.md §4.1: "all time fields are indexed to
// support sync-since-cursor queries"); updated_at is therefore always
// indexed and need not be repeated per kind.
var Schema = []KindSchema{
	{Kind: model.EntityVisit},
	{Kind: model.EntityTimeEntry},
	{Kind: model.EntityEVVRecord, IndexedColumns: []string{"visit_id"}},
	{Kind: model.EntityAttachment, IndexedColumns: []string{"visit_id"}},
	{Kind: model.EntityNote, IndexedColumns: []string{"visit_id"}},
	{Kind: model.EntityGeofence},
	{Kind: model.EntityTemplate},
	{Kind: model.EntityNotification},
}

// SchemaVersion is the current schema version. Migrations (migrations.go)
// walk a database forward from whatever version it was created at, up to
// this one.
const SchemaVersion = 1
