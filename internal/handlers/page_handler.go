package handlers

import (
	"catalog/internal/applog"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/services"
	"catalog/internal/validation"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
)

// PageHandler serves the server-rendered product pages.
type PageHandler struct {
	service   *services.ProductService
	presenter views.Presenter
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(service *services.ProductService, presenter views.Presenter) *PageHandler {
	return &PageHandler{
		service:   service,
		presenter: presenter,
	}
}

// RegisterRoutes registers the page routes with the Fiber app.
func (h *PageHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(views.ListPath, fiber.StatusFound)
	})

	pages := router.Group(views.ListPath)
	pages.Get("/", h.HandleList)
	pages.Get("/new", h.HandleNew)
	pages.Post("/", h.HandleCreate)
	pages.Get("/:id", h.HandleShow)
	pages.Get("/:id/edit", h.HandleEdit)
	pages.Post("/:id", h.HandleUpdate)
	pages.Post("/:id/delete", h.HandleDelete)
}

// HandleList renders the product table. With ?delete=<id> the delete
// confirmation is open for that product.
func (h *PageHandler) HandleList(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext())
	if err != nil {
		return err
	}

	list := h.presenter.List(products)
	if id := c.Query("delete"); id != "" {
		if err := list.Dialog.Open(id); err != nil {
			applog.Warn(c, "delete_dialog_open", map[string]any{"id": id, "reason": err.Error()})
		}
	}
	return h.render(c, "index", fiber.Map{"Title": "Products", "List": list}, nil)
}

// HandleNew renders an empty create form.
func (h *PageHandler) HandleNew(c *fiber.Ctx) error {
	return h.renderForm(c, views.NewProductForm(nil), nil)
}

// HandleCreate submits the create form.
func (h *PageHandler) HandleCreate(c *fiber.Ctx) error {
	return h.submit(c, views.NewProductForm(nil))
}

// HandleShow renders the detail page of a product.
func (h *PageHandler) HandleShow(c *fiber.Ctx) error {
	product, ok, err := h.load(c)
	if !ok || err != nil {
		return err
	}
	return h.render(c, "show", fiber.Map{"Title": product.Name, "Product": h.presenter.Detail(*product)}, nil)
}

// HandleEdit renders the edit form prefilled with the product.
func (h *PageHandler) HandleEdit(c *fiber.Ctx) error {
	product, ok, err := h.load(c)
	if !ok || err != nil {
		return err
	}
	return h.renderForm(c, views.NewProductForm(product), nil)
}

// HandleUpdate submits the edit form. The product is not re-read: a missing
// product surfaces as the update action's failure message.
func (h *PageHandler) HandleUpdate(c *fiber.Ctx) error {
	return h.submit(c, views.NewProductForm(&models.Product{ID: c.Params("id")}))
}

// HandleDelete confirms the delete dialog for the product and returns to the
// listing with the outcome as a notification.
func (h *PageHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	var dialog views.DeleteDialog
	if err := dialog.Open(id); err != nil {
		return err
	}

	n, err := dialog.Confirm(c.UserContext(), h.service)
	if err != nil {
		return err
	}
	if n.Kind == views.NotifySuccess {
		applog.Audit(c, "product_delete", map[string]any{"id": id})
	} else {
		applog.Warn(c, "product_delete", map[string]any{"id": id, "message": n.Message})
	}
	middleware.SetFlash(c, n)
	return c.Redirect(views.ListPath, fiber.StatusSeeOther)
}

func (h *PageHandler) submit(c *fiber.Ctx, form *views.ProductForm) error {
	out, err := form.Submit(c.UserContext(), h.service, rawProduct(c))
	if err != nil {
		return err
	}

	action := "product_create"
	if form.IsEdit() {
		action = "product_update"
	}
	if out.Redirect != "" {
		applog.Audit(c, action, map[string]any{"id": form.ProductID, "name": form.Values.Name})
		if out.Notification != nil {
			middleware.SetFlash(c, *out.Notification)
		}
		return c.Redirect(out.Redirect, fiber.StatusSeeOther)
	}

	applog.Info(c, action+"_rejected", map[string]any{"id": form.ProductID, "fields": form.FieldErrors})
	c.Status(fiber.StatusUnprocessableEntity)
	return h.renderForm(c, form, out.Notification)
}

// load fetches the product named by the :id param. When it is absent the 404
// page has already been written and ok is false.
func (h *PageHandler) load(c *fiber.Ctx) (product *models.Product, ok bool, err error) {
	id := c.Params("id")
	product, found, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return nil, false, err
	}
	if !found {
		c.Status(fiber.StatusNotFound)
		return nil, false, h.render(c, "notfound", fiber.Map{
			"Title":   "Not Found",
			"Message": "Product not found",
		}, nil)
	}
	return product, true, nil
}

func (h *PageHandler) renderForm(c *fiber.Ctx, form *views.ProductForm, flash *views.Notification) error {
	title := "Add New Product"
	if form.IsEdit() {
		title = "Edit Product"
	}
	return h.render(c, "form", fiber.Map{"Title": title, "Form": form}, flash)
}

// render executes tmpl inside the layout. flash takes precedence over a
// notification carried by the flash cookie.
func (h *PageHandler) render(c *fiber.Ctx, tmpl string, data fiber.Map, flash *views.Notification) error {
	if flash == nil {
		flash = middleware.CurrentFlash(c)
	}
	data["Flash"] = flash
	data["Lang"] = h.presenter.Locale
	return c.Render(tmpl, data, views.Layout)
}

func rawProduct(c *fiber.Ctx) validation.RawProduct {
	return validation.RawProduct{
		Name:        c.FormValue("name"),
		Description: formField(c, "description"),
		Price:       c.FormValue("price"),
	}
}

// formField returns the submitted value of key, or nil when the field was not
// part of the form at all.
func formField(c *fiber.Ctx, key string) *string {
	if args := c.Request().PostArgs(); args.Has(key) {
		v := string(args.Peek(key))
		return &v
	}
	if form, err := c.MultipartForm(); err == nil {
		if vals, ok := form.Value[key]; ok && len(vals) > 0 {
			v := vals[0]
			return &v
		}
	}
	return nil
}
