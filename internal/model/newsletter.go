// internal/model/newsletter.go
package model

import "fmt"

// Newsletter is a named mailing list scoped to a site.
// (slug, site) is unique.
type Newsletter struct {
	ID              int     `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	Slug            string  `db:"slug" json:"slug"`
	Description     string  `db:"description" json:"description"`
	SiteID          int     `db:"site_id" json:"site_id"`
	SenderAddress   *string `db:"sender_address" json:"sender_address,omitempty"`
	IsSubscriptable bool    `db:"is_subscriptable" json:"is_subscriptable"`
	IsPublic        bool    `db:"is_public" json:"is_public"`
	Activable
	TimeStamped
	CreatedModifiedBy
}

// FromAddress builds the sender header, falling back to the
// system default address when the newsletter has none.
func (n *Newsletter) FromAddress(defaultFrom string) string {
	address := defaultFrom
	if n.SenderAddress != nil && *n.SenderAddress != "" {
		address = *n.SenderAddress
	}
	return fmt.Sprintf("%s <%s>", n.Name, address)
}
