package views

// NotificationKind distinguishes success from error notifications.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification is a transient message shown once to the user.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

func success(msg string) *Notification { return &Notification{Kind: NotifySuccess, Message: msg} }
func failure(msg string) *Notification { return &Notification{Kind: NotifyError, Message: msg} }

const (
	MsgCreated      = "Product created successfully"
	MsgUpdated      = "Product updated successfully"
	MsgDeleted      = "Product deleted successfully"
	MsgDeleteFailed = "Failed to delete product"
	MsgCheckForm    = "Please check the form for errors"
	MsgUnexpected   = "Something went wrong"
)
