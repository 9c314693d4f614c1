package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Document tables. The storage layer is schemaless: every table shares the
// same envelope columns and keeps the record itself in the JSON data column.
const (
	TableQuestions   = "quiz_questions"
	TableAttempts    = "quiz_attempts"
	TableProficiency = "user_proficiency"
	TableQuizSets    = "quiz_sets"
)

// DocumentTables lists every table served by a DocumentRepo.
var DocumentTables = []string{
	TableQuestions,
	TableAttempts,
	TableProficiency,
	TableQuizSets,
}

const (
	tableLLMEvents      = "llm_request_events"
	tableGlobalSequence = "global_sequence"
)

var (
	// LLMRequestEventsColumns holds the columns for the "llm_request_events" table.
	LLMRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Default: ""},
		{Name: "response_body", Type: field.TypeString, Default: ""},
	}
	// LLMRequestEventsTable holds the schema information for the "llm_request_events" table.
	LLMRequestEventsTable = &schema.Table{
		Name:       tableLLMEvents,
		Columns:    LLMRequestEventsColumns,
		PrimaryKey: []*schema.Column{LLMRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LLMRequestEventsColumns[5]}},
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{LLMRequestEventsColumns[2]}},
		},
	}

	// GlobalSequenceColumns holds the columns for the "global_sequence" table.
	GlobalSequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	// GlobalSequenceTable holds the single-row counter shared by all tables.
	GlobalSequenceTable = &schema.Table{
		Name:       tableGlobalSequence,
		Columns:    GlobalSequenceColumns,
		PrimaryKey: []*schema.Column{GlobalSequenceColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = append([]*schema.Table{LLMRequestEventsTable, GlobalSequenceTable}, documentTables()...)
)

// documentTables builds the envelope table for each document table.
func documentTables() []*schema.Table {
	tables := make([]*schema.Table, 0, len(DocumentTables))
	for _, name := range DocumentTables {
		columns := []*schema.Column{
			{Name: "id", Type: field.TypeString},
			{Name: "seq", Type: field.TypeInt64, Unique: true},
			{Name: "data", Type: field.TypeJSON},
			{Name: "created_at", Type: field.TypeTime},
			{Name: "updated_at", Type: field.TypeTime},
		}
		tables = append(tables, &schema.Table{
			Name:       name,
			Columns:    columns,
			PrimaryKey: []*schema.Column{columns[0]},
		})
	}
	return tables
}

func isDocumentTable(name string) bool {
	for _, t := range DocumentTables {
		if t == name {
			return true
		}
	}
	return false
}
