// Package catalog holds the immutable product snapshot the bot sells: the
// physical amulet plus gift certificates that skip delivery entirely.
package catalog

import (
	"errors"
	"fmt"
)

var ErrUnknownProduct = errors.New("catalog: unknown product")

// Kind separates products that ship physically from certificate products
// that are delivered by email.
type Kind string

const (
	KindPhysical    Kind = "physical"
	KindCertificate Kind = "certificate"
)

// Well-known product identifiers. The amulet consumes stock; certificates
// are assumed always available.
const (
	ProductAmulet      = "amulet"
	ProductCertKid     = "kid"
	ProductCertSpecial = "special"
)

// Product is one sellable catalog entry. Price is in minor currency units
// (kopecks). Immutable once the catalog snapshot is built.
type Product struct {
	ID          string
	Name        string
	Price       int64
	Kind        Kind
	TracksStock bool
}

// RequiresAddress reports whether the order flow must collect a delivery
// address for this product.
func (p Product) RequiresAddress() bool { return p.Kind == KindPhysical }

// RequiresEmail reports whether the order flow must collect an email; the
// certificate itself is sent there.
func (p Product) RequiresEmail() bool { return p.Kind == KindCertificate }

// PriceRub renders the price for user-facing messages, e.g. "1000 ₽".
func (p Product) PriceRub() string {
	if p.Price%100 == 0 {
		return fmt.Sprintf("%d ₽", p.Price/100)
	}
	return fmt.Sprintf("%d.%02d ₽", p.Price/100, p.Price%100)
}

// Catalog is the product snapshot built once at startup.
type Catalog struct {
	byID  map[string]Product
	order []string
}

// New builds a catalog from the configured variants. Order of the slice is
// preserved for menu rendering.
func New(products []Product) *Catalog {
	c := &Catalog{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

func (c *Catalog) Get(id string) (Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

// List returns every product in menu order.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Certificates lists the certificate variants in menu order.
func (c *Catalog) Certificates() []Product {
	var out []Product
	for _, id := range c.order {
		if p := c.byID[id]; p.Kind == KindCertificate {
			out = append(out, p)
		}
	}
	return out
}

// PaymentDescription builds the provider-facing payment description. The
// certificate variants carry the program wording; the physical product names
// the buyer's phone so the operator can match payments to orders.
func (c *Catalog) PaymentDescription(productID, phone string) string {
	p, err := c.Get(productID)
	if err != nil {
		return fmt.Sprintf("Заказ для %s", phone)
	}
	switch p.ID {
	case ProductCertKid:
		return fmt.Sprintf("Покупка сертификата «%s»: подарит ребёнку ЭКОамулет и участие в бесплатном эко-уроке", p.Name)
	case ProductCertSpecial:
		return fmt.Sprintf("Покупка сертификата «%s»: подарит ЭКОамулет человеку с особенностями и место в инклюзивной мастерской", p.Name)
	default:
		return fmt.Sprintf("Заказ %s для %s", p.Name, phone)
	}
}

// ThankYouText is the buyer-facing confirmation sent after a verified
// payment. Certificates reference the email on file instead of a shipping
// address.
func (c *Catalog) ThankYouText(productID, email string) string {
	switch productID {
	case ProductCertKid:
		return "🎁 Спасибо! Ваш сертификат подарит ребёнку ЭКОамулет и участие в бесплатном эко-уроке.\n" +
			fmt.Sprintf("Сертификат отправим на %s в течение дня.", email)
	case ProductCertSpecial:
		return "🎁 Спасибо! Ваш сертификат подарит ЭКОамулет человеку с особенностями и место в инклюзивной мастерской.\n" +
			fmt.Sprintf("Сертификат отправим на %s в течение дня.", email)
	default:
		return ""
	}
}
