package enum

type DeletePolicy string

const (
	DeletePolicyNever      DeletePolicy = "never"
	DeletePolicyOnDelete   DeletePolicy = "on_delete"
	DeletePolicyMarkAsRead DeletePolicy = "mark_as_read"
)

func (d DeletePolicy) String() string {
	return string(d)
}

func DecodeDeletePolicy(s string) DeletePolicy {
	switch s {
	case "on_delete":
		return DeletePolicyOnDelete
	case "mark_as_read":
		return DeletePolicyMarkAsRead
	default:
		return DeletePolicyNever
	}
}
