// Package curriculum holds the topic catalog and loads per-topic study
// content from YAML.
package curriculum

import (
	"errors"
	"slices"
	"strings"
)

// ErrUnknownTopic is returned for a topic id absent from the catalog.
var ErrUnknownTopic = errors.New("curriculum: unknown topic")

// DefaultTopics is the built-in course catalog, in course order.
var DefaultTopics = []Topic{
	{ID: "foundations", Title: "Foundations", Icon: "🧭", Color: "#4f46e5", Sections: 6},
	{ID: "networking", Title: "Networking", Icon: "🌐", Color: "#0891b2", Sections: 7},
	{ID: "storage", Title: "Storage Engines", Icon: "💾", Color: "#059669", Sections: 8},
	{ID: "replication", Title: "Replication", Icon: "🪞", Color: "#d97706", Sections: 6},
	{ID: "consistency", Title: "Consistency Models", Icon: "⚖️", Color: "#dc2626", Sections: 7},
	{ID: "consensus", Title: "Consensus", Icon: "🤝", Color: "#7c3aed", Sections: 8},
	{ID: "partitioning", Title: "Partitioning", Icon: "🧩", Color: "#db2777", Sections: 5},
	{ID: "observability", Title: "Observability", Icon: "🔭", Color: "#2563eb", Sections: 6},
}

// Catalog is an ordered, read-only set of topics.
type Catalog struct {
	topics []Topic
	index  map[string]int
}

// NewCatalog builds a catalog from topics. Later duplicates replace earlier
// entries in place.
func NewCatalog(topics []Topic) *Catalog {
	c := &Catalog{index: make(map[string]int, len(topics))}
	for _, t := range topics {
		if t.ID == "" {
			continue
		}
		if i, ok := c.index[t.ID]; ok {
			c.topics[i] = t
			continue
		}
		c.index[t.ID] = len(c.topics)
		c.topics = append(c.topics, t)
	}
	return c
}

// DefaultCatalog returns a catalog of DefaultTopics.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultTopics)
}

// Topic returns the topic with id.
func (c *Catalog) Topic(id string) (Topic, bool) {
	i, ok := c.index[id]
	if !ok {
		return Topic{}, false
	}
	return c.topics[i], true
}

// Topics returns every topic in catalog order.
func (c *Catalog) Topics() []Topic {
	return slices.Clone(c.topics)
}

// IDs returns every topic id in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.topics))
	for i, t := range c.topics {
		ids[i] = t.ID
	}
	return ids
}

// TopicForItem returns the topic an item id such as a quiz question id
// belongs to. Item ids are "<topicID>-<suffix>"; when several topic ids
// prefix itemID the longest wins, so "storage-engines-q1" belongs to
// storage-engines rather than storage.
func (c *Catalog) TopicForItem(itemID string) (string, bool) {
	best := ""
	for _, t := range c.topics {
		if len(t.ID) > len(best) && strings.HasPrefix(itemID, t.ID+"-") {
			best = t.ID
		}
	}
	return best, best != ""
}

// Len returns the number of topics.
func (c *Catalog) Len() int {
	return len(c.topics)
}

// DefaultSections returns the fallback section count for a topic, or 0 if the
// topic is unknown.
func (c *Catalog) DefaultSections(id string) int {
	t, ok := c.Topic(id)
	if !ok {
		return 0
	}
	return t.Sections
}
