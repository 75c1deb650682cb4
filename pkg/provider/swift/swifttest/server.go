// Package swifttest provides an in-process fake of the Swift object API.
//
// The fake covers what the swift provider uses: container PUT and listing
// (prefix, delimiter, marker, limit, format=json), object HEAD, GET, PUT,
// DELETE and COPY, static large object manifests and object expiry headers.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    srv := swifttest.NewServer(t)
//	    srv.CreateContainer("media")
//	    srv.PutObject("media", "a/b.txt", []byte("hello"), "text/plain")
//	    account := srv.Account(t)
//	    // ... test code using account ...
//	}
package swifttest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/majewsky/schwift"
)

// AccountName is the account every fake server serves.
const AccountName = "AUTH_test"

// Server is a fake Swift endpoint.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	now        func() time.Time
	containers map[string]map[string]*Object
	failures   map[string]int
	requests   []string
}

// Object is a stored object.
type Object struct {
	Data        []byte
	ContentType string
	Modified    time.Time
	DeleteAt    time.Time
	Metadata    map[string]string
}

// NewServer starts a fake server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		now:        func() time.Time { return time.Now().UTC() },
		containers: make(map[string]map[string]*Object),
		failures:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// SetClock overrides the server's time source.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// EndpointURL returns the account URL in the form schwift expects.
func (s *Server) EndpointURL() string {
	return s.URL + "/v1/" + AccountName + "/"
}

// Account returns a schwift account bound to this server.
func (s *Server) Account(t testing.TB) *schwift.Account {
	t.Helper()
	account, err := schwift.InitializeAccount(&backend{endpoint: s.EndpointURL(), client: s.Client()})
	if err != nil {
		t.Fatalf("initialize swift account: %v", err)
	}
	return account
}

// CreateContainer creates an empty container.
func (s *Server) CreateContainer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[name]; !ok {
		s.containers[name] = make(map[string]*Object)
	}
}

// PutObject stores an object directly, creating the container if needed.
func (s *Server) PutObject(container, name string, data []byte, contentType string) {
	s.CreateContainer(container)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[container][name] = &Object{Data: data, ContentType: contentType, Modified: s.now()}
}

// GetObject returns a stored object, or nil.
func (s *Server) GetObject(container, name string) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	objs, ok := s.containers[container]
	if !ok {
		return nil
	}
	obj, ok := objs[name]
	if !ok || obj.expired(s.now()) {
		return nil
	}
	return obj
}

// Keys returns the live object names in a container, sorted.
func (s *Server) Keys(container string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var keys []string
	for k, obj := range s.containers[container] {
		if !obj.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// FailPath makes every request whose path (after the account) equals path
// answer with status.
func (s *Server) FailPath(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Requests returns "METHOD path?query" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (o *Object) expired(now time.Time) bool {
	return !o.DeleteAt.IsZero() && !now.Before(o.DeleteAt)
}

func (o *Object) etag() string {
	sum := md5.Sum(o.Data)
	return hex.EncodeToString(sum[:])
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/v1/"+AccountName+"/")
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}
	container, object, _ := strings.Cut(rest, "/")

	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+rest+"?"+r.URL.RawQuery)
	status, fail := s.failures[rest]
	s.mu.Unlock()
	if fail {
		w.WriteHeader(status)
		return
	}

	switch {
	case container == "":
		http.Error(w, "account requests are not supported", http.StatusMethodNotAllowed)
	case object == "":
		s.serveContainer(w, r, container)
	default:
		s.serveObject(w, r, container, object)
	}
}

func (s *Server) serveContainer(w http.ResponseWriter, r *http.Request, container string) {
	switch r.Method {
	case http.MethodPut:
		s.mu.Lock()
		_, exists := s.containers[container]
		if !exists {
			s.containers[container] = make(map[string]*Object)
		}
		s.mu.Unlock()
		if exists {
			w.WriteHeader(http.StatusAccepted)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
	case http.MethodGet:
		s.listContainer(w, r, container)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type listingEntry struct {
	Name         string `json:"name,omitempty"`
	Bytes        uint64 `json:"bytes,omitempty"`
	Hash         string `json:"hash,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	Subdir       string `json:"subdir,omitempty"`
}

func (s *Server) listContainer(w http.ResponseWriter, r *http.Request, container string) {
	q := r.URL.Query()
	prefix, delimiter, marker := q.Get("prefix"), q.Get("delimiter"), q.Get("marker")
	limit := 10000
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l >= 0 {
		limit = l
	}

	s.mu.Lock()
	objs, ok := s.containers[container]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "container not found", http.StatusNotFound)
		return
	}
	now := s.now()
	names := make([]string, 0, len(objs))
	for name, obj := range objs {
		if strings.HasPrefix(name, prefix) && !obj.expired(now) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]listingEntry, 0)
	lastSubdir := ""
	for _, name := range names {
		if len(entries) >= limit {
			break
		}
		if name <= marker {
			continue
		}
		if delimiter != "" {
			if idx := strings.Index(name[len(prefix):], delimiter); idx >= 0 {
				subdir := name[:len(prefix)+idx+len(delimiter)]
				if subdir == lastSubdir || subdir == marker {
					continue
				}
				lastSubdir = subdir
				entries = append(entries, listingEntry{Subdir: subdir})
				continue
			}
		}
		obj := objs[name]
		entries = append(entries, listingEntry{
			Name:         name,
			Bytes:        uint64(len(obj.Data)),
			Hash:         obj.etag(),
			ContentType:  obj.ContentType,
			LastModified: obj.Modified.UTC().Format("2006-01-02T15:04:05.000000"),
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(entries)
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, container, name string) {
	switch r.Method {
	case http.MethodHead, http.MethodGet:
		obj := s.GetObject(container, name)
		if obj == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h := w.Header()
		h.Set("Content-Type", obj.ContentType)
		h.Set("Content-Length", strconv.Itoa(len(obj.Data)))
		h.Set("Etag", obj.etag())
		h.Set("Last-Modified", obj.Modified.UTC().Format(http.TimeFormat))
		for k, v := range obj.Metadata {
			h.Set("X-Object-Meta-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.Data)
		}
	case http.MethodPut:
		s.putObject(w, r, container, name)
	case http.MethodDelete:
		s.mu.Lock()
		objs := s.containers[container]
		obj, ok := objs[name]
		if ok {
			delete(objs, name)
		}
		s.mu.Unlock()
		if !ok || obj.expired(s.now()) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "COPY":
		src := s.GetObject(container, name)
		if src == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		dstContainer, dstName, _ := strings.Cut(strings.TrimPrefix(r.Header.Get("Destination"), "/"), "/")
		cp := *src
		cp.Data = append([]byte(nil), src.Data...)
		cp.Modified = s.now()
		s.mu.Lock()
		objs, ok := s.containers[dstContainer]
		if ok {
			objs[dstName] = &cp
		}
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type manifestSegment struct {
	Path      string `json:"path"`
	Etag      string `json:"etag"`
	SizeBytes uint64 `json:"size_bytes"`
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, container, name string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sum := md5.Sum(body)
	bodyEtag := hex.EncodeToString(sum[:])

	data := body
	if r.URL.Query().Get("multipart-manifest") == "put" {
		var segments []manifestSegment
		if err := json.Unmarshal(body, &segments); err != nil {
			http.Error(w, "invalid manifest", http.StatusBadRequest)
			return
		}
		data = nil
		for _, seg := range segments {
			segContainer, segName, _ := strings.Cut(strings.TrimPrefix(seg.Path, "/"), "/")
			segObj := s.GetObject(segContainer, segName)
			if segObj == nil {
				http.Error(w, "missing segment "+seg.Path, http.StatusBadRequest)
				return
			}
			data = append(data, segObj.Data...)
		}
	}

	now := s.now()
	obj := &Object{
		Data:        data,
		ContentType: r.Header.Get("Content-Type"),
		Modified:    now,
	}
	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}
	if at, err := strconv.ParseInt(r.Header.Get("X-Delete-At"), 10, 64); err == nil {
		obj.DeleteAt = time.Unix(at, 0)
	}
	if after, err := strconv.ParseInt(r.Header.Get("X-Delete-After"), 10, 64); err == nil {
		obj.DeleteAt = now.Add(time.Duration(after) * time.Second)
	}
	for k, v := range r.Header {
		if meta, ok := strings.CutPrefix(k, "X-Object-Meta-"); ok && len(v) > 0 {
			if obj.Metadata == nil {
				obj.Metadata = make(map[string]string)
			}
			obj.Metadata[meta] = v[0]
		}
	}

	s.mu.Lock()
	objs, ok := s.containers[container]
	if ok {
		objs[name] = obj
	}
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Etag", bodyEtag)
	w.WriteHeader(http.StatusCreated)
}

type backend struct {
	endpoint string
	client   *http.Client
}

func (b *backend) EndpointURL() string {
	return b.endpoint
}

func (b *backend) Clone(newEndpointURL string) schwift.Backend {
	return &backend{endpoint: newEndpointURL, client: b.client}
}

func (b *backend) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Auth-Token", "test-token")
	return b.client.Do(req)
}
