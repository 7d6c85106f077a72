package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

// CatalogService searches the medicine catalog. The remote catalog API is
// authoritative when configured and reachable; any failure falls back to
// the locally persisted products, logged but invisible to the user.
type CatalogService struct {
	store  storage.Store
	cfg    config.CatalogConfig
	client *http.Client
}

func NewCatalogService(store storage.Store, cfg config.CatalogConfig) *CatalogService {
	return &CatalogService{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.APITimeout},
	}
}

type remoteProduct struct {
	ProductID            string  `json:"product_id"`
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	Category             string  `json:"category"`
	Price                float64 `json:"price"`
	RequiresPrescription bool    `json:"requires_prescription"`
	InStock              bool    `json:"in_stock"`
}

// Search queries by free-text name within a category ("" means all).
func (c *CatalogService) Search(query, category string) ([]models.Product, error) {
	if c.cfg.BaseURL != "" {
		products, err := c.searchRemote(query, category)
		if err == nil {
			return products, nil
		}
		log.Printf("⚠️  Remote catalog search failed, using local fallback: %v", err)
	}
	return c.store.SearchProducts(query, category)
}

func (c *CatalogService) searchRemote(query, category string) ([]models.Product, error) {
	endpoint := fmt.Sprintf("%s/products?q=%s&category=%s",
		c.cfg.BaseURL, url.QueryEscape(query), url.QueryEscape(category))

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog API returned %d", resp.StatusCode)
	}

	var payload struct {
		Products []remoteProduct `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	products := make([]models.Product, 0, len(payload.Products))
	for _, rp := range payload.Products {
		if !rp.InStock {
			continue
		}
		products = append(products, models.Product{
			ProductID:            rp.ProductID,
			Name:                 rp.Name,
			Description:          rp.Description,
			Category:             rp.Category,
			Price:                rp.Price,
			RequiresPrescription: rp.RequiresPrescription,
			InStock:              true,
		})
	}
	return products, nil
}
