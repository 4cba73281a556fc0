package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"catalog/internal/services"
	"catalog/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles JSON API requests for products.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// productRequest accepts the price either as a JSON number or a string, the
// way a form would submit it.
type productRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Price       json.RawMessage `json:"price"`
}

func (r productRequest) raw() validation.RawProduct {
	raw := validation.RawProduct{Description: r.Description}
	if r.Name != nil {
		raw.Name = *r.Name
	}
	price := strings.TrimSpace(string(r.Price))
	if price != "null" {
		if unquoted, err := unquote(price); err == nil {
			price = unquoted
		}
		raw.Price = price
	}
	return raw
}

func unquote(s string) (string, error) {
	var v string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return "", err
	}
	return v, nil
}

// HandleGetProducts retrieves all products, newest first.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve products",
		})
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	productID := c.Params("id")
	product, found, err := h.service.GetProduct(c.UserContext(), productID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve product",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Product with ID %s not found", productID),
		})
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	result := h.service.CreateProduct(c.UserContext(), req.raw())
	return c.Status(actionStatus(result, fiber.StatusCreated)).JSON(result)
}

// HandleUpdateProduct replaces name, description and price of a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	result := h.service.UpdateProduct(c.UserContext(), c.Params("id"), req.raw())
	return c.Status(actionStatus(result, fiber.StatusOK)).JSON(result)
}

// HandleDeleteProduct permanently deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	result := h.service.DeleteProduct(c.UserContext(), c.Params("id"))
	return c.Status(actionStatus(result, fiber.StatusOK)).JSON(result)
}

func actionStatus(result services.ActionResult, ok int) int {
	switch {
	case result.OK():
		return ok
	case result.FieldErrors != nil:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
