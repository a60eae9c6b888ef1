package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/storepulse/internal/domain"
	apperrors "github.com/pscheid92/storepulse/internal/platform/errors"
)

const (
	maxProductNameLength = 200
	defaultEventLimit    = 50
	maxEventLimit        = 1000
)

func (s *Server) registerAPIRoutes(mutationLimiter echo.MiddlewareFunc) {
	products := s.echo.Group("/api/products")
	products.GET("", s.handleListProducts)
	products.GET("/:id", s.handleGetProduct)
	products.POST("", s.handleCreateProduct, mutationLimiter)
	products.DELETE("/:id", s.handleDeleteProduct, mutationLimiter)
	products.DELETE("", s.handleResetProducts, mutationLimiter)

	orders := s.echo.Group("/api/orders")
	orders.GET("", s.handleListOrders)
	orders.POST("", s.handleCreateOrder, mutationLimiter)
	orders.DELETE("/:id", s.handleDeleteOrder, mutationLimiter)
	orders.DELETE("", s.handleResetOrders, mutationLimiter)

	s.echo.GET("/api/stats", s.handleStats)
	s.echo.GET("/api/connections", s.handleListConnections)
	s.echo.GET("/api/connections/events", s.handleConnectionEvents)
}

type productRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
}

func (r productRequest) validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return apperrors.ValidationError("name is required").WithField("field", "name")
	}
	if utf8.RuneCountInString(name) > maxProductNameLength {
		return apperrors.ValidationError(fmt.Sprintf("name must be at most %d characters", maxProductNameLength)).WithField("field", "name")
	}
	if r.Price == nil {
		return apperrors.ValidationError("price is required").WithField("field", "price")
	}
	if *r.Price < 0 {
		return apperrors.ValidationError("price must not be negative").WithField("field", "price")
	}
	return nil
}

func (r productRequest) toProduct() domain.Product {
	return domain.Product{
		ID:          strings.TrimSpace(r.ID),
		Name:        strings.TrimSpace(r.Name),
		Price:       *r.Price,
		Description: r.Description,
	}
}

type orderRequest struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Customer  string `json:"customer"`
}

func (r orderRequest) validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return apperrors.ValidationError("productId is required").WithField("field", "productId")
	}
	if r.Quantity < 1 {
		return apperrors.ValidationError("quantity must be at least 1").WithField("field", "quantity")
	}
	return nil
}

func (r orderRequest) toOrder() domain.Order {
	return domain.Order{
		ID:        strings.TrimSpace(r.ID),
		ProductID: strings.TrimSpace(r.ProductID),
		Quantity:  r.Quantity,
		Customer:  r.Customer,
	}
}

func (s *Server) handleListProducts(c echo.Context) error {
	filter := domain.ProductFilter{NameContains: c.QueryParam("name")}

	var err error
	if filter.MinPrice, err = parsePriceParam(c, "min_price"); err != nil {
		return err
	}
	if filter.MaxPrice, err = parsePriceParam(c, "max_price"); err != nil {
		return err
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return apperrors.ValidationError("min_price must not exceed max_price")
	}

	return writeJSON(c, http.StatusOK, s.hub.Products(filter))
}

func (s *Server) handleGetProduct(c echo.Context) error {
	product, err := s.hub.Product(c.Param("id"))
	if err != nil {
		return notFoundOrInternal(err, "failed to load product")
	}
	return writeJSON(c, http.StatusOK, product)
}

func (s *Server) handleCreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	return writeJSON(c, http.StatusCreated, s.hub.CreateProduct(req.toProduct()))
}

func (s *Server) handleDeleteProduct(c echo.Context) error {
	if err := s.hub.DeleteProduct(c.Param("id")); err != nil {
		return notFoundOrInternal(err, "failed to delete product")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleResetProducts(c echo.Context) error {
	return writeJSON(c, http.StatusOK, domain.ResetPayload{Removed: s.hub.ResetProducts()})
}

func (s *Server) handleListOrders(c echo.Context) error {
	filter := domain.OrderFilter{ProductID: c.QueryParam("product_id")}
	return writeJSON(c, http.StatusOK, s.hub.Orders(filter))
}

func (s *Server) handleCreateOrder(c echo.Context) error {
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	order, err := s.hub.CreateOrder(req.toOrder())
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.ValidationError("product does not exist").WithField("productId", req.ProductID)
	}
	if err != nil {
		return apperrors.InternalError("failed to create order", err)
	}
	return writeJSON(c, http.StatusCreated, order)
}

func (s *Server) handleDeleteOrder(c echo.Context) error {
	if err := s.hub.DeleteOrder(c.Param("id")); err != nil {
		return notFoundOrInternal(err, "failed to delete order")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleResetOrders(c echo.Context) error {
	return writeJSON(c, http.StatusOK, domain.ResetPayload{Removed: s.hub.ResetOrders()})
}

func (s *Server) handleStats(c echo.Context) error {
	return writeJSON(c, http.StatusOK, s.hub.Stats())
}

func (s *Server) handleListConnections(c echo.Context) error {
	return writeJSON(c, http.StatusOK, s.hub.Connections())
}

func (s *Server) handleConnectionEvents(c echo.Context) error {
	limit := defaultEventLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			return apperrors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", maxEventLimit)).WithField("limit", raw)
		}
		limit = n
	}
	return writeJSON(c, http.StatusOK, s.hub.RecentEvents(limit))
}

func parsePriceParam(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.ValidationError(name + " must be a number").WithField(name, raw)
	}
	return &value, nil
}

func notFoundOrInternal(err error, message string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NotFoundError(err.Error(), err)
	}
	return apperrors.InternalError(message, err)
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
