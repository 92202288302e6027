// Package memstore is an in-memory api.RemoteStore for tests. It interprets
// the same filter clauses the Drive v2 query language uses for the sync core
// and paginates with a configurable page size.
package memstore

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
)

type object struct {
	meta       types.RemoteObject
	properties []types.MarkerProperty
	content    []byte
}

// Store keeps objects in insertion order
type Store struct {
	mu       sync.Mutex
	objects  map[string]*object
	order    []string
	nextID   int
	pageSize int

	// Errors injects a failure for the named method ("ListPage", "Get",
	// "CreateFolder", "CreateFile", "Delete", "AccessToken").
	Errors map[string]error

	Queries        []string
	FoldersCreated int
	FilesCreated   int
	Deleted        []string
}

// New returns an empty store. pageSize <= 0 means a single page.
func New(pageSize int) *Store {
	return &Store{
		objects:  make(map[string]*object),
		pageSize: pageSize,
		Errors:   make(map[string]error),
	}
}

var (
	titleClause    = regexp.MustCompile(`^title = '((?:[^'\\]|\\.)*)'$`)
	parentClause   = regexp.MustCompile(`^'((?:[^'\\]|\\.)*)' in parents$`)
	propertyClause = regexp.MustCompile(`^properties has \{ key='((?:[^'\\]|\\.)*)' and value='((?:[^'\\]|\\.)*)' and visibility='(PRIVATE|PUBLIC)' \}$`)
	clauseSplit    = regexp.MustCompile(` and (title = |'|properties has )`)
)

type filter struct {
	title    *string
	parent   *string
	property *types.MarkerProperty
}

func unescape(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitClauses splits on top-level " and " while leaving the conjunctions
// inside "properties has { ... }" intact.
func splitClauses(q string) []string {
	var clauses []string
	for {
		loc := clauseSplit.FindStringSubmatchIndex(q)
		if loc == nil {
			return append(clauses, q)
		}
		clauses = append(clauses, q[:loc[0]])
		q = q[loc[2]:]
	}
}

func parseQuery(q string) (*filter, error) {
	f := &filter{}
	for _, clause := range splitClauses(q) {
		if m := titleClause.FindStringSubmatch(clause); m != nil {
			v := unescape(m[1])
			f.title = &v
			continue
		}
		if m := parentClause.FindStringSubmatch(clause); m != nil {
			v := unescape(m[1])
			f.parent = &v
			continue
		}
		if m := propertyClause.FindStringSubmatch(clause); m != nil {
			f.property = &types.MarkerProperty{Key: unescape(m[1]), Value: unescape(m[2]), Visibility: m[3]}
			continue
		}
		return nil, fmt.Errorf("unsupported query clause %q", clause)
	}
	return f, nil
}

func (f *filter) match(o *object) bool {
	if f.title != nil && o.meta.Name != *f.title {
		return false
	}
	if f.parent != nil && o.meta.ParentID != *f.parent {
		return false
	}
	if f.property != nil {
		found := false
		for _, p := range o.properties {
			if p == *f.property {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) injected(method string) error {
	if err, ok := s.Errors[method]; ok {
		return err
	}
	return nil
}

func notFound(id string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeFileNotFound, "file not found").
		WithHTTPStatus(404).
		WithContext("fileId", id).
		Build())
}

func (s *Store) ListPage(ctx context.Context, reqCtx *types.RequestContext, query, pageToken string) (*types.ListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.injected("ListPage"); err != nil {
		return nil, err
	}
	s.Queries = append(s.Queries, query)

	f, err := parseQuery(query)
	if err != nil {
		return nil, utils.InvalidArgument("query", err.Error())
	}

	var matches []*types.RemoteObject
	for _, id := range s.order {
		o := s.objects[id]
		if f.match(o) {
			meta := o.meta
			matches = append(matches, &meta)
		}
	}

	start := 0
	if pageToken != "" {
		start, err = strconv.Atoi(strings.TrimPrefix(pageToken, "page-"))
		if err != nil || start > len(matches) {
			return nil, utils.InvalidArgument("pageToken", "unknown page token "+pageToken)
		}
	}
	end := len(matches)
	if s.pageSize > 0 && start+s.pageSize < end {
		end = start + s.pageSize
	}
	page := &types.ListPage{Items: matches[start:end]}
	if end < len(matches) {
		page.NextPageToken = fmt.Sprintf("page-%d", end)
	}
	return page, nil
}

func (s *Store) Get(ctx context.Context, reqCtx *types.RequestContext, id string) (*types.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("Get"); err != nil {
		return nil, err
	}
	o, ok := s.objects[id]
	if !ok {
		return nil, notFound(id)
	}
	meta := o.meta
	return &meta, nil
}

func (s *Store) newID() string {
	s.nextID++
	return fmt.Sprintf("obj-%d", s.nextID)
}

func (s *Store) insert(o *object) {
	s.objects[o.meta.ID] = o
	s.order = append(s.order, o.meta.ID)
}

func (s *Store) CreateFolder(ctx context.Context, reqCtx *types.RequestContext, name, parentID string, marker types.MarkerProperty) (*types.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("CreateFolder"); err != nil {
		return nil, err
	}
	o := &object{
		meta: types.RemoteObject{
			ID:          s.newID(),
			Name:        name,
			IsDirectory: true,
			MimeType:    utils.MimeTypeFolder,
			ParentID:    parentID,
			Parents:     []string{parentID},
		},
		properties: []types.MarkerProperty{marker},
	}
	s.insert(o)
	s.FoldersCreated++
	meta := o.meta
	return &meta, nil
}

// UploadChunkSize is the chunk size CreateFile reads content with. Each
// chunk is reported to file.Progress once it has been stored.
const UploadChunkSize = 16 * 1024

func (s *Store) CreateFile(ctx context.Context, reqCtx *types.RequestContext, file types.NewFile, content io.Reader) (*types.RemoteObject, error) {
	s.mu.Lock()
	err := s.injected("CreateFile")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Read outside the lock so concurrent uploads interleave like real ones.
	data, err := readChunks(content, file.Progress)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = utils.MimeTypeOctetStream
	}
	o := &object{
		meta: types.RemoteObject{
			ID:          id,
			Name:        file.Name,
			MimeType:    mimeType,
			ParentID:    file.ParentID,
			Parents:     []string{file.ParentID},
			Size:        int64(len(data)),
			DownloadURL: "https://mem.invalid/download?id=" + id + "&e=download",
		},
		content: data,
	}
	s.insert(o)
	s.FilesCreated++
	meta := o.meta
	return &meta, nil
}

func readChunks(r io.Reader, progress func(sent, total int64)) ([]byte, error) {
	var data []byte
	buf := make([]byte, UploadChunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		data = append(data, buf[:n]...)
		if n > 0 && progress != nil {
			progress(int64(len(data)), 0)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *Store) Delete(ctx context.Context, reqCtx *types.RequestContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected("Delete"); err != nil {
		return err
	}
	if _, ok := s.objects[id]; !ok {
		return notFound(id)
	}
	delete(s.objects, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.Deleted = append(s.Deleted, id)
	return nil
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AccessToken"); err != nil {
		return "", err
	}
	return "mem-token", nil
}

// AddFile seeds a file without going through CreateFile
func (s *Store) AddFile(name, parentID string, content []byte) *types.RemoteObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	o := &object{
		meta: types.RemoteObject{
			ID:          id,
			Name:        name,
			MimeType:    utils.MimeTypeOctetStream,
			ParentID:    parentID,
			Parents:     []string{parentID},
			Size:        int64(len(content)),
			DownloadURL: "https://mem.invalid/download?id=" + id + "&e=download",
		},
		content: content,
	}
	s.insert(o)
	meta := o.meta
	return &meta
}

// AddFolder seeds a folder. A nil marker leaves it unmarked.
func (s *Store) AddFolder(name, parentID string, marker *types.MarkerProperty) *types.RemoteObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &object{
		meta: types.RemoteObject{
			ID:          s.newID(),
			Name:        name,
			IsDirectory: true,
			MimeType:    utils.MimeTypeFolder,
			ParentID:    parentID,
			Parents:     []string{parentID},
		},
	}
	if marker != nil {
		o.properties = []types.MarkerProperty{*marker}
	}
	s.insert(o)
	meta := o.meta
	return &meta
}

// Children returns the live objects under parentID in insertion order
func (s *Store) Children(parentID string) []*types.RemoteObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.RemoteObject
	for _, id := range s.order {
		if o := s.objects[id]; o.meta.ParentID == parentID {
			meta := o.meta
			out = append(out, &meta)
		}
	}
	return out
}

// Content returns the bytes stored for id
func (s *Store) Content(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return nil, false
	}
	return o.content, true
}
