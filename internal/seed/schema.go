package seed

// Config is the top-level structure of listings.yaml
type Config struct {
	Listings []Entry `yaml:"listings"`
}

// Entry is one seeded listing.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}
