package views

import (
	"context"
	"errors"
	"fmt"

	"catalog/internal/services"
)

const (
	DialogTitle       = "Are you sure?"
	DialogDescription = "This action cannot be undone. This will permanently delete the product."
)

var (
	ErrDialogBusy   = errors.New("delete dialog is busy")
	ErrDialogClosed = errors.New("delete dialog is not open")
)

// DialogState is the state of a DeleteDialog.
type DialogState int

const (
	DialogClosed DialogState = iota
	DialogConfirmOpen
	DialogDeleting
)

func (s DialogState) String() string {
	switch s {
	case DialogConfirmOpen:
		return "confirmOpen"
	case DialogDeleting:
		return "deleting"
	default:
		return "closed"
	}
}

// Deleter performs the delete action.
type Deleter interface {
	DeleteProduct(ctx context.Context, id string) services.ActionResult
}

// DeleteDialog is the two-step confirmation before a product is deleted:
//
//	closed -> Open -> confirmOpen -> Confirm -> deleting -> closed
//	confirmOpen -> Cancel -> closed
//
// The target ID only lives while the dialog is open or deleting.
type DeleteDialog struct {
	state  DialogState
	target string
}

func (d *DeleteDialog) State() DialogState { return d.state }
func (d *DeleteDialog) Target() string     { return d.target }
func (d *DeleteDialog) IsOpen() bool       { return d.state != DialogClosed }

func (d *DeleteDialog) Title() string       { return DialogTitle }
func (d *DeleteDialog) Description() string { return DialogDescription }

// Open asks for confirmation before deleting id.
func (d *DeleteDialog) Open(id string) error {
	if d.state != DialogClosed {
		return ErrDialogBusy
	}
	if id == "" {
		return fmt.Errorf("open delete dialog: empty product id")
	}
	d.state = DialogConfirmOpen
	d.target = id
	return nil
}

// Cancel closes an open dialog without side effects. It is a no-op when the
// dialog is already closed and refused while the deletion is running.
func (d *DeleteDialog) Cancel() error {
	switch d.state {
	case DialogDeleting:
		return ErrDialogBusy
	case DialogConfirmOpen:
		d.reset()
	}
	return nil
}

// Confirm deletes the target and always returns a notification describing the
// outcome. The dialog is closed afterwards, including on failure.
func (d *DeleteDialog) Confirm(ctx context.Context, deleter Deleter) (Notification, error) {
	if d.state != DialogConfirmOpen {
		return Notification{}, ErrDialogClosed
	}
	d.state = DialogDeleting
	defer d.reset()

	result := deleter.DeleteProduct(ctx, d.target)
	switch {
	case ctx.Err() != nil:
		return *failure(MsgUnexpected), nil
	case result.OK():
		return *success(MsgDeleted), nil
	default:
		return *failure(MsgDeleteFailed), nil
	}
}

func (d *DeleteDialog) reset() {
	d.state = DialogClosed
	d.target = ""
}
