package curriculum

import "fmt"

// Topic is a catalog entry for one course topic.
type Topic struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Icon  string `yaml:"icon" json:"icon"`
	Color string `yaml:"color" json:"color"`
	// Sections is the default section count used when the topic's content
	// has not been loaded.
	Sections int `yaml:"sections" json:"sections"`
}

// Content is the study material of a topic as delivered to views.
type Content struct {
	TopicID    string    `yaml:"-" json:"topicId"`
	Sections   []Section `yaml:"section_list" json:"sections"`
	Vocabulary []Term    `yaml:"vocabulary" json:"vocabulary"`
	Objectives []string  `yaml:"objectives" json:"objectives"`
}

// Section is one readable unit of a topic.
type Section struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Term is a vocabulary entry; each term backs one flashcard.
type Term struct {
	Term       string `yaml:"term" json:"term"`
	Definition string `yaml:"definition" json:"definition"`
}

// VocabCardID returns the flashcard id of the i-th vocabulary term of a
// topic.
func VocabCardID(topicID string, i int) string {
	return fmt.Sprintf("%s-vocab-%d", topicID, i)
}

// VocabularyCardIDs returns the flashcard ids of every vocabulary term.
func (c *Content) VocabularyCardIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.Vocabulary))
	for i := range c.Vocabulary {
		ids[i] = VocabCardID(c.TopicID, i)
	}
	return ids
}
