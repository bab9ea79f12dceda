// internal/domain/catalog/service.go
package catalog

import (
	"errors"
	"fmt"

	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a product is absent or not purchasable.
var ErrNotFound = errors.New("product not found")

// StockReader exposes current availability without coupling the catalog
// to the inventory service.
type StockReader interface {
	Available(productID uint) (int, error)
}

// Service exposes the read-only catalog contract consumed by the
// cart, checkout and inventory surfaces.
type Service struct {
	db     *gorm.DB
	config *config.Config
	stock  StockReader
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, cfg *config.Config, stock StockReader) *Service {
	return &Service{
		db:     db,
		config: cfg,
		stock:  stock,
	}
}

// ProductInfo is the read-model row handed to other components
type ProductInfo struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	EffectivePrice int64  `json:"effective_price"`
	Active         bool   `json:"active"`
	Stock          int    `json:"stock"`
}

// Lookup resolves a product to its read-model row. Inactive and absent
// products both yield ErrNotFound.
func (s *Service) Lookup(productID uint) (*ProductInfo, error) {
	var prod Product
	result := s.db.Where("id = ? AND is_active = ?", productID, true).First(&prod)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up product: %w", result.Error)
	}

	available := 0
	if s.stock != nil {
		if n, err := s.stock.Available(prod.ID); err == nil {
			available = n
		}
	}

	return &ProductInfo{
		ID:             prod.ID,
		Name:           prod.Name,
		EffectivePrice: prod.EffectivePrice(),
		Active:         prod.IsActive,
		Stock:          available,
	}, nil
}

// ProductListRequest represents product list query parameters
type ProductListRequest struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Brand  string `form:"brand"`
	Search string `form:"search"`
}

// ListProducts retrieves active products with filtering and pagination
func (s *Service) ListProducts(req *ProductListRequest) ([]Product, int64, error) {
	var products []Product
	var total int64

	query := s.db.Model(&Product{}).Where("is_active = ?", true)

	if req.Brand != "" {
		query = query.Where("brand = ?", req.Brand)
	}
	if req.Search != "" {
		pattern := "%" + req.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return products, total, nil
}

// GetProduct retrieves a single product record, active or not
func (s *Service) GetProduct(id uint) (*Product, error) {
	var prod Product
	if err := s.db.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return &prod, nil
}

// CreateProductRequest represents staff product creation data
type CreateProductRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Price       int64  `json:"price" binding:"required,min=1"`
	SalePrice   *int64 `json:"sale_price"`
}

// CreateProduct creates a product (staff surface)
func (s *Service) CreateProduct(req *CreateProductRequest) (*Product, error) {
	prod := &Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Brand:       req.Brand,
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		IsActive:    true,
	}

	if err := s.db.Create(prod).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return prod, nil
}

// UpdateProductRequest represents staff product update data
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Brand       *string `json:"brand"`
	Price       *int64  `json:"price"`
	SalePrice   *int64  `json:"sale_price"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateProduct updates a product (staff surface)
func (s *Service) UpdateProduct(id uint, req *UpdateProductRequest) (*Product, error) {
	prod, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.SalePrice != nil {
		updates["sale_price"] = *req.SalePrice
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return prod, nil
	}

	if err := s.db.Model(prod).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return prod, nil
}
