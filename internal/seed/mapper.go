package seed

import (
	"fmt"
	"strings"

	"github.com/ebk1996/services/internal/domain"
)

// AuthorID marks every seeded listing. Seeded records keep one author
// across reboots, no matter which identity the server currently holds.
const AuthorID = "seed"

// IDPrefix namespaces seeded listing ids away from minted ones.
const IDPrefix = "seed:"

// Mapper converts seed entries to domain listings
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapListings converts a seed Config to domain listings. Entries
// without a name are skipped; ids derive from the name, so re-imports
// land on the same documents.
func (m *Mapper) MapListings(config Config) ([]*domain.Listing, error) {
	listings := make([]*domain.Listing, 0, len(config.Listings))
	seen := make(map[string]bool, len(config.Listings))

	for _, entry := range config.Listings {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}

		id := IDPrefix + slug(name)
		if seen[id] {
			// Duplicate names collapse onto one document
			continue
		}
		seen[id] = true

		listings = append(listings, domain.NewListing(id, AuthorID, name, entry.Description))
	}

	if len(listings) == 0 {
		return nil, fmt.Errorf("no valid listings found in seed file")
	}

	return listings, nil
}

// slug lowercases the name and squeezes runs of non-alphanumerics into
// single dashes. Example: "Dog Walking!" -> "dog-walking"
func slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
