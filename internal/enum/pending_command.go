package enum

type PendingCommandKind string

const (
	PendingAppend            PendingCommandKind = "append"
	PendingDelete            PendingCommandKind = "delete"
	PendingMove              PendingCommandKind = "move"
	PendingCopy              PendingCommandKind = "copy"
	PendingMoveAndMarkAsRead PendingCommandKind = "move_and_mark_as_read"
	PendingSetFlag           PendingCommandKind = "set_flag"
	PendingExpunge           PendingCommandKind = "expunge"
	PendingMarkAllAsRead     PendingCommandKind = "mark_all_as_read"
	PendingEmptyTrash        PendingCommandKind = "empty_trash"
	PendingEmptySpam         PendingCommandKind = "empty_spam"
	PendingReplaceDraft      PendingCommandKind = "replace_draft"
)

func (k PendingCommandKind) String() string {
	return string(k)
}
