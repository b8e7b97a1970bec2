//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func findProduct(t *testing.T, list productListResponse, id string) productResponse {
	t.Helper()
	for _, p := range list.Results {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("product %s not in listing", id)
	return productResponse{}
}

func TestListProducts_All(t *testing.T) {
	resp := doGet(t, "/api/products", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[productListResponse](t, resp)
	if list.Count != 5 {
		t.Fatalf("count: got %d, want 5", list.Count)
	}
	if list.Page != 1 || list.PageSize != 10 {
		t.Errorf("pagination defaults: got page=%d size=%d", list.Page, list.PageSize)
	}
}

func TestListProducts_PublicSaleApplied(t *testing.T) {
	resp := doGet(t, "/api/products", "")
	defer resp.Body.Close()

	list := decodeJSON[productListResponse](t, resp)

	// Audio week: 15% off everything in the audio category.
	headphones := findProduct(t, list, "prod-headphones")
	if headphones.Price != "199.99" {
		t.Errorf("price: got %s, want 199.99", headphones.Price)
	}
	if headphones.Discount != "0.15" {
		t.Errorf("discount: got %s, want 0.15", headphones.Discount)
	}
	if headphones.DiscountedPrice != "169.99" {
		t.Errorf("discounted price: got %s, want 169.99", headphones.DiscountedPrice)
	}
}

func TestListProducts_RestrictedSaleByGroup(t *testing.T) {
	// The VIP kitchen sale (25%) applies to Alice through her group.
	resp := doGet(t, "/api/products", aliceToken)
	defer resp.Body.Close()

	kettle := findProduct(t, decodeJSON[productListResponse](t, resp), "prod-kettle")
	if kettle.Discount != "0.25" {
		t.Errorf("alice discount: got %s, want 0.25", kettle.Discount)
	}
	if kettle.DiscountedPrice != "34.43" {
		t.Errorf("alice discounted price: got %s, want 34.43", kettle.DiscountedPrice)
	}

	// Bob is not in the VIP group and pays full price.
	resp2 := doGet(t, "/api/products", bobToken)
	defer resp2.Body.Close()

	kettle = findProduct(t, decodeJSON[productListResponse](t, resp2), "prod-kettle")
	if kettle.Discount != "0.00" {
		t.Errorf("bob discount: got %s, want 0.00", kettle.Discount)
	}
	if kettle.DiscountedPrice != "45.90" {
		t.Errorf("bob discounted price: got %s, want 45.90", kettle.DiscountedPrice)
	}
}

func TestListProducts_CategoryFilter(t *testing.T) {
	resp := doGet(t, "/api/products?category=cat-books", "")
	defer resp.Body.Close()

	list := decodeJSON[productListResponse](t, resp)
	if list.Count != 1 {
		t.Fatalf("count: got %d, want 1", list.Count)
	}
	if list.Results[0].ID != "prod-novel" {
		t.Errorf("got %s, want prod-novel", list.Results[0].ID)
	}
}

func TestListProducts_CategoryExclusion(t *testing.T) {
	resp := doGet(t, "/api/products?category=-cat-electronics", "")
	defer resp.Body.Close()

	list := decodeJSON[productListResponse](t, resp)
	for _, p := range list.Results {
		if p.ID == "prod-headphones" || p.ID == "prod-speaker" {
			t.Errorf("excluded category product %s still listed", p.ID)
		}
	}
}

func TestListProducts_SortByPriceDescending(t *testing.T) {
	resp := doGet(t, "/api/products?sort=-price", "")
	defer resp.Body.Close()

	list := decodeJSON[productListResponse](t, resp)
	if len(list.Results) == 0 {
		t.Fatal("empty listing")
	}
	if list.Results[0].ID != "prod-headphones" {
		t.Errorf("most expensive first: got %s, want prod-headphones", list.Results[0].ID)
	}
}

func TestListProducts_InvalidSort(t *testing.T) {
	resp := doGet(t, "/api/products?sort=sneaky;drop", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Error != "bad_request" {
		t.Errorf("error code: got %s, want bad_request", body.Error)
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/prod-novel", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.Name != "The Long Winter" {
		t.Errorf("name: got %q", p.Name)
	}
	// Novel push: 10% off.
	if p.DiscountedPrice != "21.60" {
		t.Errorf("discounted price: got %s, want 21.60", p.DiscountedPrice)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/nope", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
