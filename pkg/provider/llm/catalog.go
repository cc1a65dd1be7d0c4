package llm

import (
	"sort"
	"strings"
)

// Catalog is a static, case-insensitive lookup table of model capabilities.
// Each provider adapter builds its catalog once at construction; lookups
// after that are read-only, so no locking is needed.
type Catalog struct {
	byName  map[string]Capability
	byAlias map[string]string
}

// NewCatalog builds a catalog from the given capabilities. Aliases and names
// share one case-insensitive namespace; later registrations win on collision.
func NewCatalog(caps ...Capability) *Catalog {
	c := &Catalog{
		byName:  make(map[string]Capability, len(caps)),
		byAlias: make(map[string]string),
	}
	for _, cap := range caps {
		c.Register(cap)
	}
	return c
}

// Register adds one capability and its aliases.
func (c *Catalog) Register(cap Capability) {
	c.byName[strings.ToLower(cap.Name)] = cap
	for _, alias := range cap.Aliases {
		c.byAlias[strings.ToLower(alias)] = cap.Name
	}
}

// Resolve maps a model name or alias to its canonical name. The boolean is
// false when the catalog has no entry for it.
func (c *Catalog) Resolve(name string) (string, bool) {
	key := strings.ToLower(name)
	if cap, ok := c.byName[key]; ok {
		return cap.Name, true
	}
	if canonical, ok := c.byAlias[key]; ok {
		return canonical, true
	}
	return "", false
}

// Get returns the capability for a model name or alias.
func (c *Catalog) Get(name string) (Capability, bool) {
	canonical, ok := c.Resolve(name)
	if !ok {
		return Capability{}, false
	}
	return c.byName[strings.ToLower(canonical)], true
}

// Names returns all canonical model names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for _, cap := range c.byName {
		names = append(names, cap.Name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered capability, sorted by canonical name.
func (c *Catalog) All() []Capability {
	caps := make([]Capability, 0, len(c.byName))
	for _, name := range c.Names() {
		caps = append(caps, c.byName[strings.ToLower(name)])
	}
	return caps
}

// Len reports the number of registered models.
func (c *Catalog) Len() int { return len(c.byName) }
