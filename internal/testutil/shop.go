package testutil

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/shopcheck/internal/target"
)

// ShopBaseURL is the base URL the fake shop serves when none is given.
const ShopBaseURL = "https://www.saucedemo.com/"

// Product is an item of the fake shop catalog.
type Product struct {
	ID    string // data-test suffix, e.g. sauce-labs-backpack
	Name  string
	Price float64
}

// Catalog is the fake shop inventory in its default (A to Z) order.
var Catalog = []Product{
	{ID: "sauce-labs-backpack", Name: "Sauce Labs Backpack", Price: 29.99},
	{ID: "sauce-labs-bike-light", Name: "Sauce Labs Bike Light", Price: 9.99},
	{ID: "sauce-labs-bolt-t-shirt", Name: "Sauce Labs Bolt T-Shirt", Price: 15.99},
	{ID: "sauce-labs-fleece-jacket", Name: "Sauce Labs Fleece Jacket", Price: 49.99},
	{ID: "sauce-labs-onesie", Name: "Sauce Labs Onesie", Price: 7.99},
	{ID: "test.allthethings()-t-shirt-(red)", Name: "Test.allTheThings() T-Shirt (Red)", Price: 15.99},
}

// Credentials accepted by the fake shop.
const (
	ShopUser     = "standard_user"
	ShopPassword = "secret_sauce"
)

// shop is the per-target state of the fake shop.
type shop struct {
	base     string
	loggedIn bool
	cart     []string
	sortBy   string
}

// Shop returns a FakeFactory setup that scripts a target as the SauceDemo
// storefront at base: login, inventory with sorting, product details,
// cart and the three checkout pages. Each target gets its own session.
func Shop(base string) func(*FakeTarget) {
	if base == "" {
		base = ShopBaseURL
	}
	base = strings.TrimSuffix(base, "/") + "/"

	return func(ft *FakeTarget) {
		s := &shop{base: base, sortBy: "az"}
		ft.OnNavigate(func(ft *FakeTarget, url string) error {
			return s.navigate(ft, url)
		})
	}
}

func (s *shop) navigate(ft *FakeTarget, url string) error {
	switch strings.TrimPrefix(url, s.base) {
	case "", "index.html":
		s.loggedIn = false
		s.loginPage(ft, "")
	case "inventory.html":
		if !s.loggedIn {
			s.loginPage(ft, "Epic sadface: You can only access '/inventory.html' when you are logged in.")
			return nil
		}
		s.inventoryPage(ft)
	case "cart.html":
		if !s.loggedIn {
			s.loginPage(ft, "Epic sadface: You can only access '/cart.html' when you are logged in.")
			return nil
		}
		s.cartPage(ft)
	default:
		return fmt.Errorf("fake shop: no page at %s", url)
	}
	return nil
}

func (s *shop) page(ft *FakeTarget, path string) {
	ft.ClearPage()
	ft.SetURL(s.base + path)
}

func (s *shop) loginPage(ft *FakeTarget, errText string) {
	s.page(ft, "")
	ft.Show("#user-name")
	ft.Show("#password")
	ft.Show("#login-button")
	if errText != "" {
		ft.Show(`[data-test="error"]`, errText)
	}

	ft.OnClick("#login-button", func(ft *FakeTarget) error {
		user, pass := ft.Field("#user-name"), ft.Field("#password")
		switch {
		case user == "":
			s.loginPage(ft, "Epic sadface: Username is required")
		case pass == "":
			s.loginPage(ft, "Epic sadface: Password is required")
		case user == ShopUser && pass == ShopPassword:
			s.loggedIn = true
			s.inventoryPage(ft)
		default:
			s.loginPage(ft, "Epic sadface: Username and password do not match any user in this service")
		}
		return nil
	})
}

// header renders the cart link and badge shared by every logged-in page.
func (s *shop) header(ft *FakeTarget) {
	ft.Show(".shopping_cart_link")
	if len(s.cart) > 0 {
		ft.Show(".shopping_cart_badge", fmt.Sprint(len(s.cart)))
	}
	ft.OnClick(".shopping_cart_link", func(ft *FakeTarget) error {
		s.cartPage(ft)
		return nil
	})
}

func (s *shop) sorted() []Product {
	products := slices.Clone(Catalog)
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch s.sortBy {
		case "za":
			return a.Name > b.Name
		case "lohi":
			return a.Price < b.Price
		case "hilo":
			return a.Price > b.Price
		default:
			return a.Name < b.Name
		}
	})
	return products
}

func (s *shop) inventoryPage(ft *FakeTarget) {
	s.page(ft, "inventory.html")
	s.header(ft)
	ft.Show(".title", "Products")

	products := s.sorted()
	names := make([]string, len(products))
	prices := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
		prices[i] = fmt.Sprintf("$%.2f", p.Price)
	}
	ft.Show(".inventory_item", names...)
	ft.Show(".inventory_item_name", names...)
	ft.Show(".inventory_item_price", prices...)
	for i, p := range products {
		nth := target.Locator(fmt.Sprintf(".inventory_item_name >> nth=%d", i))
		ft.Show(nth, p.Name)
		ft.OnClick(nth, func(ft *FakeTarget) error {
			s.detailsPage(ft, p)
			return nil
		})
	}

	sorter := target.Locator(`[data-test="product-sort-container"]`)
	ft.Show(sorter)
	ft.OnClick(sorter, func(ft *FakeTarget) error {
		switch v := ft.Selected(sorter); v {
		case "az", "za", "lohi", "hilo":
			s.sortBy = v
		default:
			return fmt.Errorf("fake shop: no sort option %q", v)
		}
		s.inventoryPage(ft)
		return nil
	})

	for _, p := range products {
		add := target.Locator(fmt.Sprintf(`[data-test="add-to-cart-%s"]`, p.ID))
		remove := target.Locator(fmt.Sprintf(`[data-test="remove-%s"]`, p.ID))
		if slices.Contains(s.cart, p.ID) {
			ft.Show(remove, "Remove")
			ft.OnClick(remove, func(ft *FakeTarget) error {
				s.cart = slices.DeleteFunc(s.cart, func(id string) bool { return id == p.ID })
				s.inventoryPage(ft)
				return nil
			})
		} else {
			ft.Show(add, "Add to cart")
			ft.OnClick(add, func(ft *FakeTarget) error {
				s.cart = append(s.cart, p.ID)
				s.inventoryPage(ft)
				return nil
			})
		}
	}
}

func (s *shop) detailsPage(ft *FakeTarget, p Product) {
	s.page(ft, "inventory-item.html?id="+p.ID)
	s.header(ft)
	ft.Show(".inventory_details_name", p.Name)
	ft.Show(".inventory_details_desc", "A fine "+p.Name+".")
	ft.Show(".inventory_details_price", fmt.Sprintf("$%.2f", p.Price))
}

func (s *shop) cartItems(ft *FakeTarget) {
	var names []string
	for _, id := range s.cart {
		for _, p := range Catalog {
			if p.ID == id {
				names = append(names, p.Name)
			}
		}
	}
	if len(names) > 0 {
		ft.Show(".cart_item", names...)
	}
}

func (s *shop) cartPage(ft *FakeTarget) {
	s.page(ft, "cart.html")
	s.header(ft)
	s.cartItems(ft)
	ft.Show(`[data-test="checkout"]`, "Checkout")
	ft.OnClick(`[data-test="checkout"]`, func(ft *FakeTarget) error {
		s.checkoutInfoPage(ft, "")
		return nil
	})
}

func (s *shop) checkoutInfoPage(ft *FakeTarget, errText string) {
	s.page(ft, "checkout-step-one.html")
	s.header(ft)
	ft.Show(`[data-test="firstName"]`)
	ft.Show(`[data-test="lastName"]`)
	ft.Show(`[data-test="postalCode"]`)
	ft.Show(`[data-test="continue"]`)
	ft.Show(`[data-test="cancel"]`)
	if errText != "" {
		ft.Show(`[data-test="error"]`, errText)
	}

	ft.OnClick(`[data-test="continue"]`, func(ft *FakeTarget) error {
		switch {
		case ft.Field(`[data-test="firstName"]`) == "":
			s.checkoutInfoPage(ft, "Error: First Name is required")
		case ft.Field(`[data-test="lastName"]`) == "":
			s.checkoutInfoPage(ft, "Error: Last Name is required")
		case ft.Field(`[data-test="postalCode"]`) == "":
			s.checkoutInfoPage(ft, "Error: Postal Code is required")
		default:
			s.overviewPage(ft)
		}
		return nil
	})
	ft.OnClick(`[data-test="cancel"]`, func(ft *FakeTarget) error {
		s.cartPage(ft)
		return nil
	})
}

func (s *shop) overviewPage(ft *FakeTarget) {
	s.page(ft, "checkout-step-two.html")
	s.header(ft)
	s.cartItems(ft)
	ft.Show(`[data-test="finish"]`, "Finish")
	ft.Show(`[data-test="cancel"]`, "Cancel")
	ft.OnClick(`[data-test="finish"]`, func(ft *FakeTarget) error {
		s.cart = nil
		s.page(ft, "checkout-complete.html")
		s.header(ft)
		ft.Show(".complete-header", "Thank you for your order!")
		return nil
	})
	ft.OnClick(`[data-test="cancel"]`, func(ft *FakeTarget) error {
		s.inventoryPage(ft)
		return nil
	})
}
