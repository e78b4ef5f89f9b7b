package enums

type ReportStatus string

const (
	ReportStatusPendingCategory    ReportStatus = "pending_category"
	ReportStatusPendingFinish      ReportStatus = "pending_finish"
	ReportStatusAwaitingModeration ReportStatus = "awaiting_moderation"
	ReportStatusPublished          ReportStatus = "published"
	ReportStatusRejected           ReportStatus = "rejected"
)

// IsTerminal reports whether no transition may leave the status.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusPublished || s == ReportStatusRejected
}
