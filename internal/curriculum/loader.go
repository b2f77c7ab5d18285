package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// topicFile is the on-disk shape of a topic YAML file: catalog fields plus
// optional content.
type topicFile struct {
	Topic   `yaml:",inline"`
	Content `yaml:",inline"`
}

// Loader loads topic metadata and content from a directory of YAML files,
// layered over DefaultTopics.
type Loader struct {
	rootDir  string
	catalog  *Catalog
	contents map[string]Content
	mu       sync.RWMutex
}

// NewLoader creates a loader and reads every topic file under rootDir. An
// empty rootDir yields the built-in catalog with no content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:  rootDir,
		contents: make(map[string]Content),
	}

	topics := append([]Topic{}, DefaultTopics...)
	if rootDir != "" {
		loaded, err := l.loadAll()
		if err != nil {
			return nil, fmt.Errorf("loading curriculum: %w", err)
		}
		topics = append(topics, loaded...)
	}
	l.catalog = NewCatalog(topics)

	slog.Info("curriculum loaded", "topics", l.catalog.Len(), "with_content", len(l.contents))
	return l, nil
}

// Catalog returns the merged topic catalog.
func (l *Loader) Catalog() *Catalog {
	return l.catalog
}

// Content returns the study content for a topic. ok is false when the topic
// has no content file; callers treat that as unknown content.
func (l *Loader) Content(topicID string) (*Content, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.contents[topicID]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (l *Loader) loadAll() ([]Topic, error) {
	info, err := os.Stat(l.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("curriculum path missing, using built-in catalog", "path", l.rootDir)
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", l.rootDir)
	}

	var topics []Topic
	err = filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		t, ok, err := l.loadTopic(path)
		if err != nil {
			return err
		}
		if ok {
			topics = append(topics, t)
		}
		return nil
	})
	return topics, err
}

func (l *Loader) loadTopic(path string) (Topic, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topic{}, false, err
	}

	var f topicFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return Topic{}, false, nil
	}
	if f.Topic.ID == "" {
		return Topic{}, false, nil // Not a topic file
	}

	content := f.Content
	content.TopicID = f.Topic.ID
	if f.Topic.Sections == 0 {
		f.Topic.Sections = len(content.Sections)
	}
	if f.Topic.Title == "" {
		if def, ok := DefaultCatalog().Topic(f.Topic.ID); ok {
			f.Topic.Title, f.Topic.Icon, f.Topic.Color = def.Title, def.Icon, def.Color
		}
	}

	if len(content.Sections) > 0 || len(content.Vocabulary) > 0 || len(content.Objectives) > 0 {
		l.mu.Lock()
		l.contents[f.Topic.ID] = content
		l.mu.Unlock()
	}
	return f.Topic, true, nil
}
