package views

import (
	"context"
	"errors"
	"sync/atomic"

	"catalog/internal/models"
	"catalog/internal/services"
	"catalog/internal/validation"
)

// ListPath is where a successful submission redirects to.
const ListPath = "/products"

// ErrSubmitInProgress is returned when Submit is called while a previous
// submission of the same form has not finished.
var ErrSubmitInProgress = errors.New("form submission already in progress")

// FormState is the state of a ProductForm.
type FormState int32

const (
	FormIdle FormState = iota
	FormSubmitting
)

func (s FormState) String() string {
	if s == FormSubmitting {
		return "submitting"
	}
	return "idle"
}

// ProductActions is what a ProductForm submits to.
type ProductActions interface {
	CreateProduct(ctx context.Context, raw validation.RawProduct) services.ActionResult
	UpdateProduct(ctx context.Context, id string, raw validation.RawProduct) services.ActionResult
}

// FormValues are the raw field values shown in the form inputs.
type FormValues struct {
	Name        string
	Description string
	Price       string
}

// ProductForm is the create/edit form. A non-empty ProductID selects update
// on submit.
type ProductForm struct {
	ProductID   string
	Values      FormValues
	FieldErrors validation.FieldErrors

	state atomic.Int32
}

// SubmitOutcome tells the page what to do after a submission: follow
// Redirect when set, otherwise re-render the form. Notification may be nil.
type SubmitOutcome struct {
	Redirect     string
	Notification *Notification
}

// NewProductForm prefills the form from existing, or uses empty defaults when
// existing is nil.
func NewProductForm(existing *models.Product) *ProductForm {
	f := &ProductForm{}
	if existing != nil {
		f.ProductID = existing.ID
		f.Values = FormValues{
			Name:        existing.Name,
			Description: existing.DescriptionText(),
			Price:       existing.Price.StringFixed(2),
		}
	}
	return f
}

// State returns the current form state.
func (f *ProductForm) State() FormState {
	return FormState(f.state.Load())
}

// IsEdit reports whether the form edits an existing product.
func (f *ProductForm) IsEdit() bool {
	return f.ProductID != ""
}

// Action is the URL the form posts to.
func (f *ProductForm) Action() string {
	if f.IsEdit() {
		return ListPath + "/" + f.ProductID
	}
	return ListPath
}

// SubmitLabel is the caption of the submit button.
func (f *ProductForm) SubmitLabel() string {
	switch {
	case f.State() == FormSubmitting:
		return "Saving..."
	case f.IsEdit():
		return "Update Product"
	default:
		return "Create Product"
	}
}

// Submit validates raw, then calls the update or create action. The form is
// back to idle when Submit returns, whatever the outcome.
func (f *ProductForm) Submit(ctx context.Context, actions ProductActions, raw validation.RawProduct) (SubmitOutcome, error) {
	if !f.state.CompareAndSwap(int32(FormIdle), int32(FormSubmitting)) {
		return SubmitOutcome{}, ErrSubmitInProgress
	}
	defer f.state.Store(int32(FormIdle))

	f.Values = FormValues{Name: raw.Name, Price: raw.Price}
	if raw.Description != nil {
		f.Values.Description = *raw.Description
	}
	f.FieldErrors = nil

	if _, errs := validation.Parse(raw); errs != nil {
		f.FieldErrors = errs
		return SubmitOutcome{}, nil
	}

	var result services.ActionResult
	if f.IsEdit() {
		result = actions.UpdateProduct(ctx, f.ProductID, raw)
	} else {
		result = actions.CreateProduct(ctx, raw)
	}
	if ctx.Err() != nil {
		return SubmitOutcome{Notification: failure(MsgUnexpected)}, nil
	}

	switch {
	case result.OK():
		msg := MsgCreated
		if f.IsEdit() {
			msg = MsgUpdated
		}
		return SubmitOutcome{Redirect: ListPath, Notification: success(msg)}, nil
	case result.FieldErrors != nil:
		f.FieldErrors = result.FieldErrors
		return SubmitOutcome{Notification: failure(MsgCheckForm)}, nil
	default:
		return SubmitOutcome{Notification: failure(result.Message)}, nil
	}
}
