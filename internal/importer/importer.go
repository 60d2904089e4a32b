package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPattern matches every markdown file below the import root.
const DefaultPattern = "**/*.md"

var ErrUnterminatedFrontMatter = errors.New("front matter started but no closing delimiter found")

// Backend is the part of the knowledge API an import needs.
type Backend interface {
	ListGroups(ctx context.Context, organizationID string) ([]*service.Group, error)
	CreateGroup(ctx context.Context, organizationID, name string) (*service.Group, error)
	ListEntries(ctx context.Context, groupID string) ([]*service.Entry, error)
	CreateEntry(ctx context.Context, groupID, name, content string) (*service.Entry, error)
	UpdateEntry(ctx context.Context, id string, req service.UpdateEntryRequest) (*service.Entry, error)
}

// Options control an import.
type Options struct {
	OrganizationID string
	// Pattern selects the files to import; DefaultPattern when empty.
	Pattern string
	// DefaultGroup receives files at the import root that name no group.
	DefaultGroup string
	// Overwrite replaces the body of entries that already exist instead of skipping them.
	Overwrite bool
}

// Report lists what an import did, by entry full name.
type Report struct {
	Created  []string
	Updated  []string
	Skipped  []string
	Relinked int
}

// Document is a markdown file parsed for import.
type Document struct {
	Path    string
	Name    string
	Group   string
	Content string
}

type frontMatter struct {
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
}

// Importer loads a tree of markdown files into an organization.
type Importer struct {
	backend Backend
}

func New(backend Backend) *Importer {
	return &Importer{backend: backend}
}

// Import creates one entry per matching file. Links between imported files resolve regardless
// of the order the files are created in: bodies referencing other entries are saved a second
// time once every entry exists.
func (i *Importer) Import(ctx context.Context, fsys fs.FS, opts Options) (*Report, error) {
	docs, err := Load(fsys, opts.Pattern, opts.DefaultGroup)
	if err != nil {
		return nil, err
	}

	groups, err := i.groups(ctx, opts.OrganizationID)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	pending := make([]*service.Entry, 0)
	existing := make(map[string]map[string]*service.Entry)

	for _, doc := range docs {
		group, ok := groups[doc.Group]
		if !ok {
			group, err = i.backend.CreateGroup(ctx, opts.OrganizationID, doc.Group)
			if err != nil {
				return report, fmt.Errorf("create group %s: %w", doc.Group, err)
			}
			groups[doc.Group] = group
			logrus.Infof("created group %s", doc.Group)
		}

		entries, ok := existing[group.ID]
		if !ok {
			entries, err = i.entries(ctx, group.ID)
			if err != nil {
				return report, err
			}
			existing[group.ID] = entries
		}

		fullName := doc.Group + "/" + doc.Name
		var entry *service.Entry
		if current, ok := entries[doc.Name]; ok {
			if !opts.Overwrite {
				report.Skipped = append(report.Skipped, fullName)
				continue
			}
			version := current.Version + 1
			entry, err = i.backend.UpdateEntry(ctx, current.ID, service.UpdateEntryRequest{Content: &doc.Content, Version: &version})
			if err != nil {
				return report, fmt.Errorf("update %s: %w", doc.Path, err)
			}
			report.Updated = append(report.Updated, fullName)
		} else {
			entry, err = i.backend.CreateEntry(ctx, group.ID, doc.Name, doc.Content)
			if err != nil {
				return report, fmt.Errorf("create %s: %w", doc.Path, err)
			}
			report.Created = append(report.Created, fullName)
		}
		entries[doc.Name] = entry

		if len(linker.Names(entry.Content)) > len(entry.Links) {
			pending = append(pending, entry)
		}
	}

	// the second pass relinks bodies saved before the entries they reference existed
	for _, entry := range pending {
		version := entry.Version + 1
		updated, err := i.backend.UpdateEntry(ctx, entry.ID, service.UpdateEntryRequest{Content: &entry.Content, Version: &version})
		if err != nil {
			return report, fmt.Errorf("relink %s: %w", entry.Name, err)
		}
		if len(updated.Links) > len(entry.Links) {
			report.Relinked++
		}
	}

	return report, nil
}

func (i *Importer) groups(ctx context.Context, organizationID string) (map[string]*service.Group, error) {
	groups, err := i.backend.ListGroups(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*service.Group, len(groups))
	for _, group := range groups {
		byName[group.Name] = group
	}

	return byName, nil
}

func (i *Importer) entries(ctx context.Context, groupID string) (map[string]*service.Entry, error) {
	entries, err := i.backend.ListEntries(ctx, groupID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*service.Entry, len(entries))
	for _, entry := range entries {
		byName[entry.Name] = entry
	}

	return byName, nil
}

// Load parses the files of fsys matching pattern, sorted by path.
// A file is named by its front matter or else by its base name, and grouped by its front matter,
// or else by its top-level directory, or else into defaultGroup.
func Load(fsys fs.FS, pattern, defaultGroup string) ([]*Document, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	paths, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}

		doc, err := Parse(p, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if doc.Group == "" {
			if dir, _, found := strings.Cut(p, "/"); found {
				doc.Group = dir
			} else {
				doc.Group = defaultGroup
			}
		}
		if doc.Group == "" {
			return nil, fmt.Errorf("%s: no group for a file at the import root", p)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Parse reads a markdown file with optional YAML front matter.
func Parse(p string, data []byte) (*Document, error) {
	doc := &Document{
		Path: p,
		Name: strings.TrimSuffix(path.Base(p), path.Ext(p)),
	}

	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		doc.Content = string(data)
		return doc, nil
	}

	parts := bytes.SplitN(data[3:], []byte("\n---"), 2)
	if len(parts) == 1 {
		return nil, ErrUnterminatedFrontMatter
	}

	var meta frontMatter
	if err := yaml.Unmarshal(parts[0], &meta); err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}
	if meta.Name != "" {
		doc.Name = meta.Name
	}
	doc.Group = meta.Group

	content := strings.TrimPrefix(string(parts[1]), "\r")
	content = strings.TrimPrefix(content, "\n")
	doc.Content = content

	return doc, nil
}
