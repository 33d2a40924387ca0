package simulator

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// blobObject is one stored blob with the metadata the data plane reports.
type blobObject struct {
	data        []byte
	contentType string
	modified    time.Time
	etag        string
}

// blobMeta describes a blob in a listing without carrying its content.
type blobMeta struct {
	name        string
	size        int64
	contentType string
	modified    time.Time
	etag        string
}

// blobStore holds the blob data plane: containers, committed blobs and
// staged blocks, keyed by account/container[/path].
type blobStore struct {
	mu         sync.RWMutex
	containers map[string]bool
	blobs      map[string]*blobObject
	staged     map[string]map[string][]byte
}

func newBlobStore() *blobStore {
	return &blobStore{
		containers: make(map[string]bool),
		blobs:      make(map[string]*blobObject),
		staged:     make(map[string]map[string][]byte),
	}
}

func blobKey(account, container, path string) string {
	return account + "/" + container + "/" + path
}

func (b *blobStore) createContainer(account, container string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.containers[account+"/"+container] = true
}

func (b *blobStore) put(account, container, path string, data []byte, contentType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.containers[account+"/"+container] = true
	b.blobs[blobKey(account, container, path)] = &blobObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now().UTC(),
		etag:        newETag(),
	}
}

func (b *blobStore) append(account, container, path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.containers[account+"/"+container] = true
	key := blobKey(account, container, path)
	obj, ok := b.blobs[key]
	if !ok {
		obj = &blobObject{contentType: "application/octet-stream"}
		b.blobs[key] = obj
	}
	obj.data = append(obj.data, data...)
	obj.modified = time.Now().UTC()
	obj.etag = newETag()
}

// get returns a snapshot of the blob's bytes and metadata.
func (b *blobStore) get(account, container, path string) (blobObject, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.blobs[blobKey(account, container, path)]
	if !ok {
		return blobObject{}, false
	}
	snap := *obj
	snap.data = append([]byte(nil), obj.data...)
	return snap, true
}

func (b *blobStore) delete(account, container, path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := blobKey(account, container, path)
	_, ok := b.blobs[key]
	delete(b.blobs, key)
	delete(b.staged, key)
	return ok
}

func (b *blobStore) stageBlock(account, container, path, blockID string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := blobKey(account, container, path)
	if b.staged[key] == nil {
		b.staged[key] = make(map[string][]byte)
	}
	b.staged[key][blockID] = append([]byte(nil), data...)
}

func (b *blobStore) commitBlocks(account, container, path string, blockIDs []string, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := blobKey(account, container, path)
	var data []byte
	for _, id := range blockIDs {
		block, ok := b.staged[key][id]
		if !ok {
			return fmt.Errorf("block %s was not staged", id)
		}
		data = append(data, block...)
	}
	delete(b.staged, key)
	b.containers[account+"/"+container] = true
	b.blobs[key] = &blobObject{
		data:        data,
		contentType: contentType,
		modified:    time.Now().UTC(),
		etag:        newETag(),
	}
	return nil
}

func (b *blobStore) list(account, container, prefix string) []blobMeta {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keyPrefix := account + "/" + container + "/"
	var out []blobMeta
	for key, obj := range b.blobs {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		name := key[len(keyPrefix):]
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, blobMeta{
			name:        name,
			size:        int64(len(obj.data)),
			contentType: obj.contentType,
			modified:    obj.modified,
			etag:        obj.etag,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func newETag() string {
	return fmt.Sprintf("0x%X", time.Now().UnixNano())
}

// PutBlob stores a blob directly, bypassing the HTTP surface. Tests use it
// to seed storage the control plane would normally populate.
func (s *Server) PutBlob(account, container, path string, data []byte) {
	s.blobs.put(account, container, path, data, "application/octet-stream")
}

// AppendBlob appends bytes to a blob, creating it when missing. Tests use it
// to grow driver logs the way a running job would.
func (s *Server) AppendBlob(account, container, path string, data []byte) {
	s.blobs.append(account, container, path, data)
}

// BlobData returns a stored blob's content.
func (s *Server) BlobData(account, container, path string) ([]byte, bool) {
	obj, ok := s.blobs.get(account, container, path)
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// registerBlob wires the path-style blob data plane. Shared-key clients
// address blobs as /{account}/{container}/{blob} against the simulator host.
func (s *Server) registerBlob() {
	s.mux.HandleFunc("PUT /{account}/{container}", s.handleContainerPut)
	s.mux.HandleFunc("GET /{account}/{container}", s.handleContainerGet)
	s.mux.HandleFunc("PUT /{account}/{container}/{blob...}", s.handleBlobPut)
	s.mux.HandleFunc("GET /{account}/{container}/{blob...}", s.handleBlobGet)
	s.mux.HandleFunc("HEAD /{account}/{container}/{blob...}", s.handleBlobHead)
	s.mux.HandleFunc("DELETE /{account}/{container}/{blob...}", s.handleBlobDelete)
}

func (s *Server) handleContainerPut(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("restype") != "container" {
		blobError(w, "InvalidQueryParameterValue", "expected restype=container", http.StatusBadRequest)
		return
	}
	s.blobs.createContainer(PathParam(r, "account"), PathParam(r, "container"))
	w.Header().Set("ETag", newETag())
	w.WriteHeader(http.StatusCreated)
}

// enumerationResults is the List Blobs response body.
type enumerationResults struct {
	XMLName         xml.Name      `xml:"EnumerationResults"`
	ServiceEndpoint string        `xml:"ServiceEndpoint,attr"`
	ContainerName   string        `xml:"ContainerName,attr"`
	Prefix          string        `xml:"Prefix,omitempty"`
	Blobs           blobItemsNode `xml:"Blobs"`
	NextMarker      string        `xml:"NextMarker"`
}

type blobItemsNode struct {
	Items []blobItemNode `xml:"Blob"`
}

type blobItemNode struct {
	Name       string            `xml:"Name"`
	Properties blobPropertiesXML `xml:"Properties"`
}

type blobPropertiesXML struct {
	CreationTime  string `xml:"Creation-Time"`
	LastModified  string `xml:"Last-Modified"`
	Etag          string `xml:"Etag"`
	ContentLength int64  `xml:"Content-Length"`
	ContentType   string `xml:"Content-Type"`
	BlobType      string `xml:"BlobType"`
}

func (s *Server) handleContainerGet(w http.ResponseWriter, r *http.Request) {
	account := PathParam(r, "account")
	container := PathParam(r, "container")
	q := r.URL.Query()
	if q.Get("restype") != "container" || q.Get("comp") != "list" {
		blobError(w, "InvalidQueryParameterValue", "expected restype=container&comp=list", http.StatusBadRequest)
		return
	}
	prefix := q.Get("prefix")
	results := enumerationResults{
		ServiceEndpoint: "http://" + r.Host + "/" + account,
		ContainerName:   container,
		Prefix:          prefix,
	}
	for _, meta := range s.blobs.list(account, container, prefix) {
		results.Blobs.Items = append(results.Blobs.Items, blobItemNode{
			Name: meta.name,
			Properties: blobPropertiesXML{
				CreationTime:  meta.modified.Format(http.TimeFormat),
				LastModified:  meta.modified.Format(http.TimeFormat),
				Etag:          meta.etag,
				ContentLength: meta.size,
				ContentType:   meta.contentType,
				BlobType:      "BlockBlob",
			},
		})
	}
	WriteXML(w, http.StatusOK, results)
}

// blockList is the Put Block List request body. Clients commit staged
// blocks under Latest; the other buckets are accepted for completeness.
type blockList struct {
	XMLName     xml.Name `xml:"BlockList"`
	Committed   []string `xml:"Committed"`
	Uncommitted []string `xml:"Uncommitted"`
	Latest      []string `xml:"Latest"`
}

func (s *Server) handleBlobPut(w http.ResponseWriter, r *http.Request) {
	account := PathParam(r, "account")
	container := PathParam(r, "container")
	blob := PathParam(r, "blob")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		blobError(w, "InvalidInput", "reading request body failed", http.StatusBadRequest)
		return
	}

	switch r.URL.Query().Get("comp") {
	case "block":
		blockID := r.URL.Query().Get("blockid")
		if blockID == "" {
			blobError(w, "MissingRequiredQueryParameter", "blockid is required", http.StatusBadRequest)
			return
		}
		s.blobs.stageBlock(account, container, blob, blockID, body)
		w.WriteHeader(http.StatusCreated)
	case "blocklist":
		var list blockList
		if err := xml.Unmarshal(body, &list); err != nil {
			blobError(w, "InvalidXmlDocument", "cannot parse block list", http.StatusBadRequest)
			return
		}
		ids := append(append(list.Committed, list.Uncommitted...), list.Latest...)
		contentType := blobContentType(r)
		if err := s.blobs.commitBlocks(account, container, blob, ids, contentType); err != nil {
			blobError(w, "InvalidBlockList", err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("ETag", newETag())
		w.WriteHeader(http.StatusCreated)
	case "":
		s.blobs.put(account, container, blob, body, blobContentType(r))
		w.Header().Set("ETag", newETag())
		w.WriteHeader(http.StatusCreated)
	default:
		blobError(w, "InvalidQueryParameterValue", "unsupported comp value", http.StatusBadRequest)
	}
}

func blobContentType(r *http.Request) string {
	if ct := r.Header.Get("x-ms-blob-content-type"); ct != "" {
		return ct
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) handleBlobGet(w http.ResponseWriter, r *http.Request) {
	account := PathParam(r, "account")
	container := PathParam(r, "container")
	blob := PathParam(r, "blob")

	obj, ok := s.blobs.get(account, container, blob)
	if !ok {
		blobError(w, "BlobNotFound", "the specified blob does not exist", http.StatusNotFound)
		return
	}

	w.Header().Set("ETag", obj.etag)
	w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
	w.Header().Set("x-ms-blob-type", "BlockBlob")
	w.Header().Set("Content-Type", obj.contentType)

	rangeHeader := r.Header.Get("x-ms-range")
	if rangeHeader == "" {
		rangeHeader = r.Header.Get("Range")
	}
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.WriteHeader(http.StatusOK)
		w.Write(obj.data)
		return
	}

	start, end, err := parseByteRange(rangeHeader, int64(len(obj.data)))
	if err != nil {
		blobError(w, "InvalidRange", err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}
	chunk := obj.data[start : end+1]
	w.Header().Set("Content-Length", strconv.Itoa(len(chunk)))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(obj.data)))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(chunk)
}

// parseByteRange parses "bytes=start-[end]" against a blob of the given
// size. A start at or past the end of the blob is unsatisfiable.
func parseByteRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}
	if start >= size {
		return 0, 0, fmt.Errorf("range start %d is beyond blob size %d", start, size)
	}
	end = size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("malformed range %q", header)
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, nil
}

func (s *Server) handleBlobHead(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.blobs.get(PathParam(r, "account"), PathParam(r, "container"), PathParam(r, "blob"))
	if !ok {
		w.Header().Set("x-ms-error-code", "BlobNotFound")
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("ETag", obj.etag)
	w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
	w.Header().Set("x-ms-blob-type", "BlockBlob")
	w.Header().Set("Content-Type", obj.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleBlobDelete(w http.ResponseWriter, r *http.Request) {
	if !s.blobs.delete(PathParam(r, "account"), PathParam(r, "container"), PathParam(r, "blob")) {
		blobError(w, "BlobNotFound", "the specified blob does not exist", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
