package repository

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	TableExtractJobs   = "extract_jobs"
	TableNotifications = "notifications"
)

var (
	extractJobColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "source_name", Type: field.TypeString},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "format", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
		{Name: "result_json", Type: field.TypeJSON, Nullable: true},
		{Name: "model_version", Type: field.TypeString, Default: ""},
	}
	extractJobsTable = &schema.Table{
		Name:       TableExtractJobs,
		Columns:    extractJobColumns,
		PrimaryKey: []*schema.Column{extractJobColumns[0]},
		Indexes: []*schema.Index{
			{Name: "extractjob_content_hash", Columns: []*schema.Column{extractJobColumns[2]}},
			{Name: "extractjob_status_started_at", Columns: []*schema.Column{extractJobColumns[4], extractJobColumns[6]}},
		},
	}

	notificationColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "job_id", Type: field.TypeUUID, Unique: true},
		{Name: "notify_on", Type: field.TypeString, Size: 10},
		{Name: "sent", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
	}
	notificationsTable = &schema.Table{
		Name:       TableNotifications,
		Columns:    notificationColumns,
		PrimaryKey: []*schema.Column{notificationColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "notifications_extract_jobs_job",
				Columns:    []*schema.Column{notificationColumns[1]},
				RefColumns: []*schema.Column{extractJobColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "notification_notify_on_sent", Columns: []*schema.Column{notificationColumns[2], notificationColumns[3]}},
		},
	}

	tables = []*schema.Table{extractJobsTable, notificationsTable}
)

func init() {
	notificationsTable.ForeignKeys[0].RefTable = extractJobsTable
}
