package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/linker"
	"github.com/emrgen/knowledge/internal/model"
	"github.com/emrgen/knowledge/internal/notify"
	"github.com/emrgen/knowledge/internal/storage"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OverwriteVersion skips the optimistic version check of an update.
const OverwriteVersion int64 = -1

// Entry is an entry with its decoded body and outgoing link set.
type Entry struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	GroupID        string    `json:"groupId"`
	Name           string    `json:"name"`
	Content        string    `json:"content"`
	OwnerID        string    `json:"ownerId"`
	FileName       string    `json:"fileName,omitempty"`
	Links          []string  `json:"links"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Candidate is a linkable entry as listed for autocomplete.
type Candidate struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FullName     string    `json:"fullName"`
	CreationDate time.Time `json:"creationDate"`
}

type CreateEntryRequest struct {
	ID      string `json:"id,omitempty"`
	GroupID string `json:"-"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// UpdateEntryRequest changes the name and/or the body of an entry.
// A nil Version is the same as OverwriteVersion.
type UpdateEntryRequest struct {
	EntryID string  `json:"-"`
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
	Version *int64  `json:"version,omitempty"`
}

// NewEntryService creates a new EntryService.
func NewEntryService(compress compress.Compress, store store.Store, cache cache.GraphCache, notifier notify.Broadcaster, files storage.FileStore) *EntryService {
	return &EntryService{
		compress: compress,
		store:    store,
		cache:    cache,
		notifier: notifier,
		files:    files,
	}
}

// EntryService manages entries and keeps their link sets consistent with their bodies.
type EntryService struct {
	compress compress.Compress
	store    store.Store
	cache    cache.GraphCache
	notifier notify.Broadcaster
	files    storage.FileStore
}

// CreateEntry creates an entry owned by the caller and links it to the entries its body references.
func (s *EntryService) CreateEntry(ctx context.Context, caller *auth.Identity, req CreateEntryRequest) (*Entry, error) {
	if err := validateEntryName(req.Name); err != nil {
		return nil, err
	}

	id, err := newID(req.ID)
	if err != nil {
		return nil, err
	}

	var entry *model.Entry
	var links []string
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		group, err := tx.GetGroup(ctx, req.GroupID)
		if err != nil {
			return translate(err, ErrGroupNotFound)
		}

		content, err := s.compress.Encode([]byte(req.Content))
		if err != nil {
			return err
		}

		entry = &model.Entry{
			ID:             id,
			OrganizationID: group.OrganizationID,
			GroupID:        group.ID,
			Name:           req.Name,
			Content:        content,
			Compression:    s.compress.Name(),
			OwnerID:        caller.UserID,
			Version:        1,
		}
		if err := tx.CreateEntry(ctx, entry); err != nil {
			return fmt.Errorf("create entry: %w", err)
		}

		links, err = s.relink(ctx, tx, entry, req.Content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "create", notify.EventEntryCreated, entry.OrganizationID, entry.ID)
	logrus.Infof("entry %s created in group %s with %d links", entry.ID, entry.GroupID, len(links))

	return entryView(entry, req.Content, links), nil
}

// GetEntry returns an entry with its decoded body and link set.
func (s *EntryService) GetEntry(ctx context.Context, id string) (*Entry, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, translate(err, ErrEntryNotFound)
	}

	content, err := decode(entry.Compression, entry.Content)
	if err != nil {
		return nil, err
	}

	outgoing, err := s.store.ListOutgoingLinks(ctx, id)
	if err != nil {
		return nil, err
	}

	return entryView(entry, content, targets(outgoing)), nil
}

// ListEntries returns the entries of a group.
func (s *EntryService) ListEntries(ctx context.Context, groupID string) ([]*Entry, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err, ErrGroupNotFound)
	}

	entries, err := s.store.ListEntries(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	adjacency, err := s.adjacency(ctx, group.OrganizationID)
	if err != nil {
		return nil, err
	}

	res := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		content, err := decode(entry.Compression, entry.Content)
		if err != nil {
			return nil, err
		}
		res = append(res, entryView(entry, content, adjacency[entry.ID]))
	}

	return res, nil
}

// UpdateEntry renames and/or rewrites an entry. A rename is propagated to every entry that links
// to it before the entry itself is saved, and the link set is recomputed from the new body.
func (s *EntryService) UpdateEntry(ctx context.Context, caller *auth.Identity, req UpdateEntryRequest) (*Entry, error) {
	if req.Name != nil {
		if err := validateEntryName(*req.Name); err != nil {
			return nil, err
		}
	}

	version := OverwriteVersion
	if req.Version != nil {
		version = *req.Version
	}

	var entry *model.Entry
	var content string
	var links []string
	var rewritten []string
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		entry, err = tx.GetEntry(ctx, req.EntryID)
		if err != nil {
			return translate(err, ErrEntryNotFound)
		}

		if entry.OwnerID != caller.UserID {
			return ErrForbidden
		}

		if version != OverwriteVersion && version != entry.Version+1 {
			return ErrVersionMismatch
		}

		content, err = decode(entry.Compression, entry.Content)
		if err != nil {
			return err
		}

		if err := tx.CreateEntryBackup(ctx, backupOf(entry, caller.UserID)); err != nil {
			return fmt.Errorf("backup entry: %w", err)
		}

		if req.Name != nil && *req.Name != entry.Name {
			rewritten, err = s.propagateRename(ctx, tx, entry, *req.Name, caller.UserID)
			if err != nil {
				return err
			}
			entry.Name = *req.Name
		}

		if req.Content != nil {
			content = *req.Content
		}

		if err := s.encodeInto(entry, content); err != nil {
			return err
		}
		entry.Version++

		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}

		links, err = s.relink(ctx, tx, entry, content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "update", notify.EventEntryUpdated, entry.OrganizationID, entry.ID)
	for _, id := range rewritten {
		s.broadcast(ctx, notify.EventEntryUpdated, entry.OrganizationID, id)
	}

	return entryView(entry, content, links), nil
}

// propagateRename rewrites [[old]] to [[new]] in the bodies of the entries that link to target.
// Link sets are left alone since the referenced identifier is unchanged. Referencers whose body
// no longer contains the old token are skipped. It returns the ids of the rewritten entries.
func (s *EntryService) propagateRename(ctx context.Context, tx store.Store, target *model.Entry, newName, editor string) ([]string, error) {
	backlinks, err := tx.ListBacklinks(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(backlinks))
	for _, link := range backlinks {
		if link.SourceID != target.ID {
			sources = append(sources, link.SourceID)
		}
	}

	referencers, err := tx.ListEntriesFromIDs(ctx, sources)
	if err != nil {
		return nil, err
	}

	rewritten := make([]string, 0, len(referencers))
	for _, referencer := range referencers {
		body, err := decode(referencer.Compression, referencer.Content)
		if err != nil {
			return nil, err
		}

		body, changed := linker.Rename(body, target.Name, newName)
		if !changed {
			continue
		}

		if err := tx.CreateEntryBackup(ctx, backupOf(referencer, editor)); err != nil {
			return nil, fmt.Errorf("backup referencing entry: %w", err)
		}

		if err := s.encodeInto(referencer, body); err != nil {
			return nil, err
		}
		referencer.Version++

		if err := tx.UpdateEntry(ctx, referencer); err != nil {
			return nil, fmt.Errorf("rewrite referencing entry: %w", err)
		}

		rewritten = append(rewritten, referencer.ID)
	}

	renamePropagations.Add(float64(len(rewritten)))
	logrus.Infof("renamed entry %s from %q to %q, rewrote %d of %d referencing entries",
		target.ID, target.Name, newName, len(rewritten), len(referencers))

	return rewritten, nil
}

// DeleteEntry deletes an entry after removing it from every link set that contains it.
// The bodies of the referencing entries are not modified.
func (s *EntryService) DeleteEntry(ctx context.Context, caller *auth.Identity, id string) error {
	var entry *model.Entry
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		entry, err = tx.GetEntry(ctx, id)
		if err != nil {
			return translate(err, ErrEntryNotFound)
		}

		if entry.OwnerID != caller.UserID {
			return ErrForbidden
		}

		unlinked, err := tx.DeleteLinksToTarget(ctx, id)
		if err != nil {
			return fmt.Errorf("unlink entry: %w", err)
		}
		unlinkPropagations.Add(float64(unlinked))
		logrus.Infof("removed entry %s from %d link sets", id, unlinked)

		if err := tx.DeleteOutgoingLinks(ctx, id); err != nil {
			return err
		}

		if err := tx.DeleteEntryBackups(ctx, id); err != nil {
			return err
		}

		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}

	if entry.HasFile() {
		if err := s.files.Delete(ctx, entry.FileKey); err != nil {
			logrus.Errorf("failed to delete file %s of deleted entry %s: %v", entry.FileKey, id, err)
		}
	}

	s.committed(ctx, "delete", notify.EventEntryDeleted, entry.OrganizationID, entry.ID)

	return nil
}

// AttachFile stores data as the file of an entry, replacing the previous file.
func (s *EntryService) AttachFile(ctx context.Context, caller *auth.Identity, id, fileName string, data []byte) (*Entry, error) {
	if err := validateRequired("fileName", fileName); err != nil {
		return nil, err
	}

	entry, err := s.ownedEntry(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	key := storage.EntryFileKey(entry.OrganizationID, entry.ID, uuid.New().String(), fileName)
	if err := s.files.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	if err := s.store.SetEntryFile(ctx, id, key, fileName); err != nil {
		return nil, err
	}

	if entry.HasFile() {
		if err := s.files.Delete(ctx, entry.FileKey); err != nil {
			logrus.Errorf("failed to delete replaced file %s of entry %s: %v", entry.FileKey, id, err)
		}
	}

	s.committed(ctx, "attach_file", notify.EventEntryUpdated, entry.OrganizationID, entry.ID)

	return s.GetEntry(ctx, id)
}

// OpenFile returns the attached file of an entry and its original name. The caller closes the reader.
func (s *EntryService) OpenFile(ctx context.Context, id string) (io.ReadCloser, string, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, "", translate(err, ErrEntryNotFound)
	}

	if !entry.HasFile() {
		return nil, "", ErrFileNotFound
	}

	r, err := s.files.Get(ctx, entry.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, "", ErrFileNotFound
		}
		return nil, "", err
	}

	return r, entry.FileName, nil
}

// DeleteFile detaches and deletes the file of an entry.
func (s *EntryService) DeleteFile(ctx context.Context, caller *auth.Identity, id string) error {
	entry, err := s.ownedEntry(ctx, caller, id)
	if err != nil {
		return err
	}

	if !entry.HasFile() {
		return ErrFileNotFound
	}

	if err := s.store.SetEntryFile(ctx, id, "", ""); err != nil {
		return err
	}

	if err := s.files.Delete(ctx, entry.FileKey); err != nil {
		logrus.Errorf("failed to delete file %s of entry %s: %v", entry.FileKey, id, err)
	}

	s.committed(ctx, "delete_file", notify.EventEntryFileDeleted, entry.OrganizationID, entry.ID)

	return nil
}

// ListCandidates returns the linkable entries of an organization sorted by name,
// without the entry named by exclude.
func (s *EntryService) ListCandidates(ctx context.Context, organizationID, exclude string) ([]*Candidate, error) {
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, translate(err, ErrOrganizationNotFound)
	}

	candidates, err := s.store.ListCandidates(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	res := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == exclude {
			continue
		}
		res = append(res, &Candidate{
			ID:           c.ID,
			Name:         c.Name,
			FullName:     c.GroupName + "/" + c.Name,
			CreationDate: c.CreatedAt,
		})
	}

	return res, nil
}

// GetGraph returns every entry of an organization with its outgoing link set.
func (s *EntryService) GetGraph(ctx context.Context, organizationID string) ([]linker.LinkedEntry, error) {
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, translate(err, ErrOrganizationNotFound)
	}

	cached, ok, err := s.cache.GetGraph(ctx, organizationID)
	if err != nil {
		logrus.Warnf("graph cache of organization %s unavailable: %v", organizationID, err)
	} else if ok {
		return cached, nil
	}

	// read before the database: a mutation committed after this point keeps the payload out of the cache
	generation, err := s.cache.Generation(ctx, organizationID)
	cacheable := err == nil
	if err != nil {
		logrus.Warnf("graph cache of organization %s unavailable: %v", organizationID, err)
	}

	var entries []linker.LinkedEntry
	err = s.store.Snapshot(ctx, func(tx store.Store) error {
		candidates, err := tx.ListCandidates(ctx, organizationID)
		if err != nil {
			return err
		}

		adjacency, err := adjacencyOf(ctx, tx, organizationID)
		if err != nil {
			return err
		}

		entries = make([]linker.LinkedEntry, 0, len(candidates))
		for _, c := range candidates {
			linked := adjacency[c.ID]
			if linked == nil {
				linked = []string{}
			}
			entries = append(entries, linker.LinkedEntry{ID: c.ID, Name: c.Name, LinkedEntries: linked})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		written, err := s.cache.SetGraph(ctx, organizationID, generation, entries)
		if err != nil {
			logrus.Warnf("failed to cache graph of organization %s: %v", organizationID, err)
		} else if !written {
			logrus.Debugf("graph of organization %s not cached", organizationID)
		}
	}

	return entries, nil
}

// ProjectGraph returns the node and edge view of an organization.
func (s *EntryService) ProjectGraph(ctx context.Context, organizationID string) (*linker.Graph, error) {
	entries, err := s.GetGraph(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	return linker.Project(entries), nil
}

// ListBacklinks returns the entries whose link set contains id, sorted by name.
func (s *EntryService) ListBacklinks(ctx context.Context, id string) ([]linker.Candidate, error) {
	if _, err := s.store.GetEntry(ctx, id); err != nil {
		return nil, translate(err, ErrEntryNotFound)
	}

	backlinks, err := s.store.ListBacklinks(ctx, id)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(backlinks))
	for _, link := range backlinks {
		sources = append(sources, link.SourceID)
	}

	entries, err := s.store.ListEntriesFromIDs(ctx, sources)
	if err != nil {
		return nil, err
	}

	res := make([]linker.Candidate, 0, len(entries))
	for _, entry := range entries {
		res = append(res, linker.Candidate{ID: entry.ID, Name: entry.Name})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name == res[j].Name {
			return res[i].ID < res[j].ID
		}
		return res[i].Name < res[j].Name
	})

	return res, nil
}

// ReconcileLinks recomputes the link set of every entry of an organization from its body and
// the current candidate pool. It returns the number of entries whose link set changed.
func (s *EntryService) ReconcileLinks(ctx context.Context, organizationID string) (int, error) {
	var repaired int
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		entries, err := tx.ListOrganizationEntries(ctx, organizationID)
		if err != nil {
			return err
		}

		pool := make([]linker.Candidate, 0, len(entries))
		for _, entry := range entries {
			pool = append(pool, linker.Candidate{ID: entry.ID, Name: entry.Name})
		}

		for _, entry := range entries {
			body, err := decode(entry.Compression, entry.Content)
			if err != nil {
				logrus.Warnf("skipping entry %s: %v", entry.ID, err)
				continue
			}

			added, removed, err := s.replaceLinks(ctx, tx, entry, linker.ExtractIDs(body, withoutEntry(pool, entry.ID)))
			if err != nil {
				return err
			}
			if added+removed > 0 {
				repaired++
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if repaired > 0 {
		s.invalidate(ctx, organizationID)
		s.broadcast(ctx, notify.EventEntryUpdated, organizationID, "")
	}

	return repaired, nil
}

// relink recomputes the link set of entry from its body against the organization's pool.
func (s *EntryService) relink(ctx context.Context, tx store.Store, entry *model.Entry, body string) ([]string, error) {
	pool, err := candidatePool(ctx, tx, entry.OrganizationID)
	if err != nil {
		return nil, err
	}

	ids := linker.ExtractIDs(body, withoutEntry(pool, entry.ID))
	if _, _, err := s.replaceLinks(ctx, tx, entry, ids); err != nil {
		return nil, err
	}
	sort.Strings(ids)

	return ids, nil
}

// replaceLinks makes the persisted link set of entry equal to ids, writing only the difference.
func (s *EntryService) replaceLinks(ctx context.Context, tx store.Store, entry *model.Entry, ids []string) (int, int, error) {
	current, err := tx.ListOutgoingLinks(ctx, entry.ID)
	if err != nil {
		return 0, 0, err
	}

	oldSet := mapset.NewThreadUnsafeSet[string](targets(current)...)
	newSet := mapset.NewThreadUnsafeSet[string](ids...)

	brokenLinks := oldSet.Difference(newSet).ToSlice()
	if err := tx.DeleteLinks(ctx, entry.ID, brokenLinks); err != nil {
		return 0, 0, fmt.Errorf("delete links: %w", err)
	}

	newLinks := make([]*model.Link, 0)
	for _, target := range ids {
		if !oldSet.Contains(target) {
			newLinks = append(newLinks, &model.Link{
				SourceID:       entry.ID,
				TargetID:       target,
				OrganizationID: entry.OrganizationID,
			})
		}
	}
	if err := tx.CreateLinks(ctx, newLinks); err != nil {
		return 0, 0, fmt.Errorf("create links: %w", err)
	}

	linksAdded.Add(float64(len(newLinks)))
	linksRemoved.Add(float64(len(brokenLinks)))

	return len(newLinks), len(brokenLinks), nil
}

// ownedEntry loads an entry and checks that the caller owns it.
func (s *EntryService) ownedEntry(ctx context.Context, caller *auth.Identity, id string) (*model.Entry, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, translate(err, ErrEntryNotFound)
	}

	if entry.OwnerID != caller.UserID {
		return nil, ErrForbidden
	}

	return entry, nil
}

func (s *EntryService) encodeInto(entry *model.Entry, body string) error {
	content, err := s.compress.Encode([]byte(body))
	if err != nil {
		return err
	}

	entry.Content = content
	entry.Compression = s.compress.Name()
	return nil
}

// committed runs the side effects of a committed mutation.
func (s *EntryService) committed(ctx context.Context, operation, event, organizationID, entryID string) {
	entryMutations.WithLabelValues(operation).Inc()
	s.invalidate(ctx, organizationID)
	s.broadcast(ctx, event, organizationID, entryID)
}

func (s *EntryService) invalidate(ctx context.Context, organizationID string) {
	if err := s.cache.InvalidateGraph(ctx, organizationID); err != nil {
		logrus.Warnf("failed to invalidate graph of organization %s: %v", organizationID, err)
	}
}

// broadcast failures are logged and never fail the mutation, which is already committed.
func (s *EntryService) broadcast(ctx context.Context, event, organizationID, entryID string) {
	err := s.notifier.Broadcast(ctx, &notify.Message{
		Event:          event,
		OrganizationID: organizationID,
		EntryID:        entryID,
	})
	if err != nil {
		logrus.Warnf("failed to broadcast %s for organization %s: %v", event, organizationID, err)
	}
}

// adjacency returns the outgoing link targets of every entry of an organization.
func (s *EntryService) adjacency(ctx context.Context, organizationID string) (map[string][]string, error) {
	return adjacencyOf(ctx, s.store, organizationID)
}

func adjacencyOf(ctx context.Context, st store.Store, organizationID string) (map[string][]string, error) {
	links, err := st.ListLinks(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string][]string)
	for _, link := range links {
		adjacency[link.SourceID] = append(adjacency[link.SourceID], link.TargetID)
	}
	for _, linked := range adjacency {
		sort.Strings(linked)
	}

	return adjacency, nil
}

func candidatePool(ctx context.Context, tx store.Store, organizationID string) ([]linker.Candidate, error) {
	candidates, err := tx.ListCandidates(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	pool := make([]linker.Candidate, 0, len(candidates))
	for _, c := range candidates {
		pool = append(pool, linker.Candidate{ID: c.ID, Name: c.Name})
	}

	return pool, nil
}

// withoutEntry drops the entry itself from a pool; entries never link to themselves.
func withoutEntry(pool []linker.Candidate, id string) []linker.Candidate {
	res := make([]linker.Candidate, 0, len(pool))
	for _, c := range pool {
		if c.ID != id {
			res = append(res, c)
		}
	}
	return res
}

func targets(links []*model.Link) []string {
	res := make([]string, 0, len(links))
	for _, link := range links {
		res = append(res, link.TargetID)
	}
	sort.Strings(res)
	return res
}

func decode(compression string, data []byte) (string, error) {
	codec, err := compress.New(compression)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntryContentCorrupted, err)
	}

	content, err := codec.Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntryContentCorrupted, err)
	}

	return string(content), nil
}

func backupOf(entry *model.Entry, updatedBy string) *model.EntryBackup {
	return &model.EntryBackup{
		EntryID:        entry.ID,
		Version:        entry.Version,
		OrganizationID: entry.OrganizationID,
		Name:           entry.Name,
		Content:        entry.Content,
		Compression:    entry.Compression,
		UpdatedBy:      updatedBy,
	}
}

func entryView(entry *model.Entry, content string, links []string) *Entry {
	if links == nil {
		links = []string{}
	}

	return &Entry{
		ID:             entry.ID,
		OrganizationID: entry.OrganizationID,
		GroupID:        entry.GroupID,
		Name:           entry.Name,
		Content:        content,
		OwnerID:        entry.OwnerID,
		FileName:       entry.FileName,
		Links:          links,
		Version:        entry.Version,
		CreatedAt:      entry.CreatedAt,
		UpdatedAt:      entry.UpdatedAt,
	}
}
