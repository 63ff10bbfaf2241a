package models

import "time"

// Audit action tags.
const (
	ActionStart            = "start"
	ActionSubmit           = "submit_complaint"
	ActionSubmitFailed     = "submit_failed"
	ActionEdit             = "edit_complaint"
	ActionOffensive        = "offensive_message"
	ActionViewComplaints   = "view_complaints"
	ActionViewHelp         = "view_help"
	ActionUpdateStatus     = "update_status"
	ActionAssign           = "assign_complaint"
	ActionDelete           = "delete_complaint"
	ActionBlock            = "block_user"
	ActionUnblock          = "unblock_user"
	ActionReply            = "reply_complaint"
	ActionComment          = "comment_complaint"
	ActionExport           = "export_report"
	ActionStats            = "view_stats"
	ActionDashboard        = "view_dashboard"
	ActionBroadcast        = "broadcast"
	ActionPermissionDenied = "permission_denied"
	ActionReminder         = "send_reminder"
	ActionWeeklyStats      = "weekly_stats"
	ActionAutoReport       = "auto_report"
	ActionAnnouncement     = "scheduled_message"
)

// AuditEntry records who did what. The core only writes these; admins read
// them through the audit command.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   int64     `gorm:"index" json:"actor_id"`
	Action    string    `gorm:"not null;index" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name used by earlier deployments.
func (AuditEntry) TableName() string { return "audit_log" }
