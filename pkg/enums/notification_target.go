package enums

// NotificationTarget selects which webhook audience receives a schedule payload.
type NotificationTarget string

const (
	NotificationTargetPrimary NotificationTarget = "primary"
	NotificationTargetAlert   NotificationTarget = "alert"
)

func (t NotificationTarget) IsValid() bool {
	return t == NotificationTargetPrimary || t == NotificationTargetAlert
}
