package catalog

import (
	"context"
	"errors"
	"testing"
)

func testStore() Store {
	return Store{ID: "store-1", Name: "Fender Chile", Website: "https://www.fender.cl"}
}

func testFields() ScrapedFields {
	return ScrapedFields{
		Name:         strPtr("Fender Telecaster Luxe"),
		Description:  strPtr("American Ultra series"),
		PriceText:    strPtr("$3.399.990"),
		ImageURL:     strPtr("https://www.fender.cl/img/tele.jpg"),
		SourceURL:    "https://www.fender.cl/fender-telecaster-luxe-3697.html",
		DefaultBrand: "Fender",
	}
}

func TestSyncFromScrapeCreatesCatalogRows(t *testing.T) {
	service, db := newTestService(t, []string{"product-1", "sp-1", "offer-1", "hist-1"})

	product, err := service.SyncFromScrape(context.Background(), testStore(), testFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.ID != "product-1" {
		t.Fatalf("unexpected product id %q", product.ID)
	}
	if product.Brand != "Fender" {
		t.Fatalf("expected default brand, got %q", product.Brand)
	}

	var storeProduct StoreProduct
	if err := db.Take(&storeProduct).Error; err != nil {
		t.Fatalf("failed to load store product: %v", err)
	}
	if !storeProduct.Active {
		t.Fatalf("new store product should be active")
	}
	if storeProduct.ProductURL != testFields().SourceURL {
		t.Fatalf("unexpected product url %q", storeProduct.ProductURL)
	}

	var offer CurrentOffer
	if err := db.Take(&offer).Error; err != nil {
		t.Fatalf("failed to load offer: %v", err)
	}
	if offer.PriceMinorUnits == nil || *offer.PriceMinorUnits != 3399990 {
		t.Fatalf("unexpected offer price: %v", offer.PriceMinorUnits)
	}
	if offer.Currency != DefaultCurrency {
		t.Fatalf("unexpected currency %q", offer.Currency)
	}

	var historyCount int64
	if err := db.Model(&PriceHistoryEntry{}).Count(&historyCount).Error; err != nil {
		t.Fatalf("failed to count history: %v", err)
	}
	if historyCount != 1 {
		t.Fatalf("expected 1 history entry, got %d", historyCount)
	}
}

func TestSyncFromScrapeIsIdempotentForOffersButNotHistory(t *testing.T) {
	service, db := newTestService(t, []string{
		"product-1", "sp-1", "offer-1", "hist-1",
		"hist-2",
	})

	if _, err := service.SyncFromScrape(context.Background(), testStore(), testFields()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if _, err := service.SyncFromScrape(context.Background(), testStore(), testFields()); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	var productCount, spCount, offerCount, historyCount int64
	db.Model(&Product{}).Count(&productCount)
	db.Model(&StoreProduct{}).Count(&spCount)
	db.Model(&CurrentOffer{}).Count(&offerCount)
	db.Model(&PriceHistoryEntry{}).Count(&historyCount)

	if productCount != 1 || spCount != 1 || offerCount != 1 {
		t.Fatalf("expected single product/store-product/offer, got %d/%d/%d", productCount, spCount, offerCount)
	}
	if historyCount != 2 {
		t.Fatalf("history is never deduplicated; expected 2 rows, got %d", historyCount)
	}
}

func TestSyncFromScrapeMatchesProductNameCaseInsensitively(t *testing.T) {
	service, db := newTestService(t, []string{
		"product-1", "sp-1", "offer-1", "hist-1",
		"sp-2", "offer-2", "hist-2",
	})

	if _, err := service.SyncFromScrape(context.Background(), testStore(), testFields()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	second := testFields()
	second.Name = strPtr("FENDER TELECASTER LUXE")
	second.SourceURL = "https://www.fender.cl/another-listing.html"
	if _, err := service.SyncFromScrape(context.Background(), testStore(), second); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	var productCount, spCount int64
	db.Model(&Product{}).Count(&productCount)
	db.Model(&StoreProduct{}).Count(&spCount)
	if productCount != 1 {
		t.Fatalf("expected name match to reuse the product, got %d rows", productCount)
	}
	if spCount != 2 {
		t.Fatalf("expected one store product per url, got %d", spCount)
	}
}

func TestSyncFromScrapeMissingNameLeavesTablesUntouched(t *testing.T) {
	service, db := newTestService(t, nil)

	fields := testFields()
	fields.Name = nil
	_, err := service.SyncFromScrape(context.Background(), testStore(), fields)
	if !errors.Is(err, ErrMissingProductName) {
		t.Fatalf("expected ErrMissingProductName, got %v", err)
	}

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if serviceErr.Code() != "catalog.sync.missing_name" {
		t.Fatalf("unexpected error code %q", serviceErr.Code())
	}

	for _, count := range []struct {
		name  string
		model interface{}
	}{
		{"products", &Product{}},
		{"store_products", &StoreProduct{}},
		{"current_offers", &CurrentOffer{}},
		{"price_history", &PriceHistoryEntry{}},
	} {
		var rows int64
		if err := db.Model(count.model).Count(&rows).Error; err != nil {
			t.Fatalf("failed to count %s: %v", count.name, err)
		}
		if rows != 0 {
			t.Fatalf("expected no %s rows after aborted sync, got %d", count.name, rows)
		}
	}
}

func TestSyncFromScrapeStoresNilPriceOnNormalizationFailure(t *testing.T) {
	service, db := newTestService(t, []string{"product-1", "sp-1", "offer-1", "hist-1"})

	fields := testFields()
	fields.PriceText = strPtr("precio no disponible")
	if _, err := service.SyncFromScrape(context.Background(), testStore(), fields); err != nil {
		t.Fatalf("sync should tolerate an unparseable price: %v", err)
	}

	var offer CurrentOffer
	if err := db.Take(&offer).Error; err != nil {
		t.Fatalf("failed to load offer: %v", err)
	}
	if offer.PriceMinorUnits != nil {
		t.Fatalf("expected nil price, got %d", *offer.PriceMinorUnits)
	}
}

func TestSyncFromScrapeUpdatesOfferInPlace(t *testing.T) {
	service, db := newTestService(t, []string{
		"product-1", "sp-1", "offer-1", "hist-1",
		"hist-2",
	})

	if _, err := service.SyncFromScrape(context.Background(), testStore(), testFields()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	second := testFields()
	second.PriceText = strPtr("$2.999.990")
	if _, err := service.SyncFromScrape(context.Background(), testStore(), second); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	var offer CurrentOffer
	if err := db.Take(&offer).Error; err != nil {
		t.Fatalf("failed to load offer: %v", err)
	}
	if offer.ID != "offer-1" {
		t.Fatalf("expected the original offer row, got %q", offer.ID)
	}
	if offer.PriceMinorUnits == nil || *offer.PriceMinorUnits != 2999990 {
		t.Fatalf("expected updated price, got %v", offer.PriceMinorUnits)
	}
}
