// Package core provides the domain types shared by the loader pipeline.
//
// The package is a leaf: it knows nothing about files, HTTP or the
// database, and every other package builds on it.
//
// # Column Mapping
//
// A [Mapping] is an ordered list of source header → target column entries.
// Order matters because it fixes the column order of the target table:
//
//	m, err := core.ParseMappingJSON([]byte(`{"id":"id","name":"full_name"}`))
//	resolved := m.Resolve([]string{"name", "id", "ignored"})
//	// resolved.Targets() == []string{"id", "full_name"}
//	// resolved.Project([]string{"a", "1", "x"}) == core.Row{"1", "a"}
//
// Entries whose source header is missing from the file are dropped from the
// [Resolved] mapping, so rows are narrower than the mapping in that case.
//
// # Tables
//
// [TableName] derives "data_<sanitized file name>" for an upload. The table
// holds one text column per resolved target.
//
// # Errors
//
// Every failure is an [*Error] with a [Kind] and a stable code. Use [KindOf]
// to branch on the pipeline stage and [MapError] to get user-facing text.
package core
