package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableKnowledgePoints = "knowledge_points"
	tableWrongQuestions  = "wrong_questions"
	tableRelations       = "question_knowledge_relations"
	tableUserMarks       = "user_marks"
	tableLLMEvents       = "llm_request_events"
)

var (
	knowledgePointsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "subject", Type: field.TypeString},
		{Name: "chapter", Type: field.TypeString},
		{Name: "section", Type: field.TypeString},
		{Name: "item", Type: field.TypeString},
		{Name: "details", Type: field.TypeString, Default: ""},
		{Name: "mark_count", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
	}
	knowledgePointsTable = &schema.Table{
		Name:       tableKnowledgePoints,
		Columns:    knowledgePointsColumns,
		PrimaryKey: []*schema.Column{knowledgePointsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "knowledgepoint_identity",
				Unique:  true,
				Columns: knowledgePointsColumns[1:5],
			},
			{
				Name:    "knowledgepoint_mark_count",
				Columns: []*schema.Column{knowledgePointsColumns[6]},
			},
		},
	}

	wrongQuestionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "question_text", Type: field.TypeString},
		{Name: "correct_answer", Type: field.TypeString, Default: ""},
		{Name: "subject", Type: field.TypeString, Default: ""},
		{Name: "solution", Type: field.TypeString, Default: ""},
		{Name: "review_passed", Type: field.TypeBool, Nullable: true},
		{Name: "review_reason", Type: field.TypeString, Default: ""},
		{Name: "attempts", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	wrongQuestionsTable = &schema.Table{
		Name:       tableWrongQuestions,
		Columns:    wrongQuestionsColumns,
		PrimaryKey: []*schema.Column{wrongQuestionsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "wrongquestion_user_id",
				Columns: []*schema.Column{wrongQuestionsColumns[1]},
			},
		},
	}

	relationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "question_id", Type: field.TypeInt},
		{Name: "knowledge_point_id", Type: field.TypeInt},
		{Name: "created_at", Type: field.TypeTime},
	}
	relationsTable = &schema.Table{
		Name:       tableRelations,
		Columns:    relationsColumns,
		PrimaryKey: []*schema.Column{relationsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "relation_question",
				Columns:    []*schema.Column{relationsColumns[1]},
				RefColumns: []*schema.Column{wrongQuestionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "relation_knowledge_point",
				Columns:    []*schema.Column{relationsColumns[2]},
				RefColumns: []*schema.Column{knowledgePointsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "relation_question_point",
				Unique:  true,
				Columns: relationsColumns[1:3],
			},
		},
	}

	userMarksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "question_id", Type: field.TypeInt},
		{Name: "knowledge_point_id", Type: field.TypeInt},
		{Name: "created_at", Type: field.TypeTime},
	}
	userMarksTable = &schema.Table{
		Name:       tableUserMarks,
		Columns:    userMarksColumns,
		PrimaryKey: []*schema.Column{userMarksColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "usermark_question",
				Columns:    []*schema.Column{userMarksColumns[2]},
				RefColumns: []*schema.Column{wrongQuestionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "usermark_knowledge_point",
				Columns:    []*schema.Column{userMarksColumns[3]},
				RefColumns: []*schema.Column{knowledgePointsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "usermark_user_id",
				Columns: []*schema.Column{userMarksColumns[1]},
			},
		},
	}

	llmEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "trace_id", Type: field.TypeString, Default: ""},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Default: ""},
		{Name: "response_body", Type: field.TypeString, Default: ""},
	}
	llmEventsTable = &schema.Table{
		Name:       tableLLMEvents,
		Columns:    llmEventsColumns,
		PrimaryKey: []*schema.Column{llmEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "llmevent_purpose",
				Columns: []*schema.Column{llmEventsColumns[5]},
			},
		},
	}

	tables = []*schema.Table{
		knowledgePointsTable,
		wrongQuestionsTable,
		relationsTable,
		userMarksTable,
		llmEventsTable,
	}
)

func init() {
	relationsTable.ForeignKeys[0].RefTable = wrongQuestionsTable
	relationsTable.ForeignKeys[1].RefTable = knowledgePointsTable
	userMarksTable.ForeignKeys[0].RefTable = wrongQuestionsTable
	userMarksTable.ForeignKeys[1].RefTable = knowledgePointsTable
}
