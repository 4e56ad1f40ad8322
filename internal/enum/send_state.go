package enum

type SendState string

const (
	SendStateReady           SendState = "ready"
	SendStateRetriesExceeded SendState = "retries_exceeded"
	SendStateError           SendState = "error"
)

func (s SendState) String() string {
	return string(s)
}
