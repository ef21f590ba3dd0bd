package catalog

import "time"

const (
	// DefaultCurrency is the currency code recorded for scraped offers.
	DefaultCurrency = "CLP"
	// AvailabilityInStock is the availability text recorded when a page scrape succeeds.
	AvailabilityInStock = "available"
	// SourceScraper identifies price history rows written by the scrape pipeline.
	SourceScraper = "scraper"
)

// Product is a canonical catalog entry. Stores list it through StoreProduct rows.
type Product struct {
	ID    string `gorm:"column:id;primaryKey;size:36;not null"`
	Name  string `gorm:"column:name;size:320;not null;index:idx_products_name"`
	Brand string `gorm:"column:brand;size:190"`
	Model string `gorm:"column:model;size:190"`
}

// TableName provides the explicit table binding for GORM.
func (Product) TableName() string {
	return "products"
}

// Store is a retailer whose product pages the scrape pipeline visits.
type Store struct {
	ID      string `gorm:"column:id;primaryKey;size:36;not null"`
	Name    string `gorm:"column:name;size:320;not null"`
	Website string `gorm:"column:website;size:512"`
}

// TableName provides the explicit table binding for GORM.
func (Store) TableName() string {
	return "stores"
}

// StoreProduct associates a Product with one Store's listing of it. The
// product URL is the scrape target; Active gates whether the orchestrator
// visits it. At most one row exists per (store, product URL) pair.
type StoreProduct struct {
	ID         string `gorm:"column:id;primaryKey;size:36;not null"`
	StoreID    string `gorm:"column:store_id;size:36;not null;uniqueIndex:idx_store_products_store_url,priority:1"`
	ProductID  string `gorm:"column:product_id;size:36;not null;index"`
	ProductURL string `gorm:"column:product_url;size:512;not null;uniqueIndex:idx_store_products_store_url,priority:2"`
	StoreSKU   string `gorm:"column:store_sku;size:190"`
	Active     bool   `gorm:"column:active;not null;default:true"`
}

// TableName provides the explicit table binding for GORM.
func (StoreProduct) TableName() string {
	return "store_products"
}

// CurrentOffer is the latest known price snapshot for one StoreProduct. At
// most one row exists per StoreProduct; synchronization updates it in place.
// Product and store ids are cached for query convenience. A nil price means
// the page carried no parseable price text.
type CurrentOffer struct {
	ID              string    `gorm:"column:id;primaryKey;size:36;not null"`
	StoreProductID  string    `gorm:"column:store_product_id;size:36;not null;uniqueIndex:idx_current_offers_store_product"`
	ProductID       string    `gorm:"column:product_id;size:36;not null;index"`
	StoreID         string    `gorm:"column:store_id;size:36;not null;index"`
	PriceMinorUnits *int64    `gorm:"column:price_minor_units"`
	Currency        string    `gorm:"column:currency;size:8;not null"`
	Availability    string    `gorm:"column:availability;size:64"`
	ListedAt        time.Time `gorm:"column:listed_at;not null"`
	ScrapedAt       time.Time `gorm:"column:scraped_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CurrentOffer) TableName() string {
	return "current_offers"
}

// PriceHistoryEntry is one immutable price observation. Rows are appended on
// every successful scrape, whether or not the price changed, and are never
// updated or deleted.
type PriceHistoryEntry struct {
	ID              string    `gorm:"column:id;primaryKey;size:36;not null"`
	StoreProductID  string    `gorm:"column:store_product_id;size:36;not null;index:idx_price_history_store_product"`
	PriceMinorUnits *int64    `gorm:"column:price_minor_units"`
	Currency        string    `gorm:"column:currency;size:8;not null"`
	Availability    string    `gorm:"column:availability;size:64"`
	ValidFrom       time.Time `gorm:"column:valid_from;not null"`
	Source          string    `gorm:"column:source;size:64;not null"`
	ScrapedAt       time.Time `gorm:"column:scraped_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PriceHistoryEntry) TableName() string {
	return "price_history"
}

// ScrapedFields is the flat field set an extractor pulls from one retailer
// page. Optional fields are nil when the page lacks them. The JSON encoding
// is the audit payload schema persisted on scrape results.
type ScrapedFields struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceText   *string `json:"price_text"`
	ImageURL    *string `json:"image_url"`
	SourceURL   string  `json:"source_url"`

	// DefaultBrand is the retailer convention applied when a new Product is
	// created for these fields. Not part of the audit payload.
	DefaultBrand string `json:"-"`
}

// Empty reports whether no selector matched anything usable on the page.
func (f ScrapedFields) Empty() bool {
	return f.Name == nil && f.Description == nil && f.PriceText == nil && f.ImageURL == nil
}
