// Package index holds the in-memory vector index. Documents are published
// atomically: readers see either the previous version of a document or the
// new one, never a half-indexed state.
package index

import (
	"sync"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
)

// docEntry is the unit of atomic replacement. A document with zero embedded
// chunks still gets an entry so metadata-only browsing can find it.
type docEntry struct {
	chunks     []document.Chunk
	meta       document.MetadataRecord
	ingestedAt time.Time
}

// DocRef is a document-level view used by filter-only browsing.
type DocRef struct {
	DocumentID string
	Metadata   document.MetadataRecord
	IngestedAt time.Time
	ChunkCount int
}

type VectorIndex struct {
	mu         sync.RWMutex
	docs       map[string]*docEntry
	chunkCount int
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		docs: make(map[string]*docEntry),
	}
}

// Publish installs or replaces a document and its chunk set in one step.
func (idx *VectorIndex) Publish(doc *document.Document, chunks []document.Chunk) {
	entry := &docEntry{
		chunks:     chunks,
		meta:       doc.Metadata,
		ingestedAt: doc.IngestedAt,
	}
	if entry.ingestedAt.IsZero() {
		entry.ingestedAt = time.Now()
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.docs[doc.ID]; ok {
		idx.chunkCount -= len(old.chunks)
	}
	idx.docs[doc.ID] = entry
	idx.chunkCount += len(chunks)
}

// Remove deletes a document. It reports whether the document was present.
func (idx *VectorIndex) Remove(docID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	entry, ok := idx.docs[docID]
	if !ok {
		return false
	}
	idx.chunkCount -= len(entry.chunks)
	delete(idx.docs, docID)
	return true
}

// Metadata returns the metadata record of a published document.
func (idx *VectorIndex) Metadata(docID string) (document.MetadataRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.docs[docID]
	if !ok {
		return document.MetadataRecord{}, false
	}
	return entry.meta, true
}

// Select returns a copy of every chunk whose document metadata satisfies all
// filters. An empty filter map selects every chunk.
func (idx *VectorIndex) Select(filters map[string]string) []document.Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []document.Chunk
	for _, entry := range idx.docs {
		if !matches(entry.meta, filters) {
			continue
		}
		out = append(out, entry.chunks...)
	}
	return out
}

// Documents returns a document-level view of everything satisfying the
// filters, for browsing without a semantic query.
func (idx *VectorIndex) Documents(filters map[string]string) []DocRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []DocRef
	for id, entry := range idx.docs {
		if !matches(entry.meta, filters) {
			continue
		}
		out = append(out, DocRef{
			DocumentID: id,
			Metadata:   entry.meta,
			IngestedAt: entry.ingestedAt,
			ChunkCount: len(entry.chunks),
		})
	}
	return out
}

func (idx *VectorIndex) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

func (idx *VectorIndex) ChunkCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.chunkCount
}

// matches applies filters as a conjunction. A filter on a field whose value
// is unknown never matches, so partially extracted documents cannot leak
// into filtered result sets.
func matches(meta document.MetadataRecord, filters map[string]string) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		got := meta.Value(field)
		if got == document.Unknown || !textnorm.FoldEqual(got, want) {
			return false
		}
	}
	return true
}
