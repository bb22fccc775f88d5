// Package fileshare is the peer-to-peer file drop: clients upload files to
// the host and download each other's files. Metadata (who uploaded what,
// from where, when) lives in a JSON file next to the uploads. It is plain
// request/response CRUD, independent of the streaming core.
package fileshare

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const metadataFile = "metadata.json"

var (
	ErrNotFound   = errors.New("fileshare: file not found")
	ErrNotAllowed = errors.New("fileshare: only the uploader may delete")
)

// Meta describes one uploaded file.
type Meta struct {
	DeviceName string `json:"device_name"`
	IP         string `json:"ip"`
	UploadTime string `json:"upload_time"`
	Size       int64  `json:"size"`
}

// Entry pairs a filename with its metadata for listings.
type Entry struct {
	Filename string `json:"filename"`
	Meta     Meta   `json:"meta"`
}

type Store struct {
	mu   sync.Mutex
	dir  string
	meta map[string]Meta

	// now is swappable for tests.
	now func() time.Time
}

// NewStore opens (or creates) the upload directory and loads the metadata
// file if one exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fileshare: create upload dir: %w", err)
	}

	st := &Store{dir: dir, meta: make(map[string]Meta), now: time.Now}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err == nil {
		if err := json.Unmarshal(data, &st.meta); err != nil {
			return nil, fmt.Errorf("fileshare: parse metadata: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("fileshare: read metadata: %w", err)
	}
	return st, nil
}

// Save stores an uploaded file and records its metadata. The name is
// flattened to its base so uploads cannot escape the directory.
func (st *Store) Save(name, deviceName, ip string, r io.Reader) (Meta, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == metadataFile {
		return Meta{}, fmt.Errorf("fileshare: invalid filename %q", name)
	}

	path := filepath.Join(st.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return Meta{}, fmt.Errorf("fileshare: create: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Meta{}, fmt.Errorf("fileshare: write: %w", err)
	}

	m := Meta{
		DeviceName: deviceName,
		IP:         ip,
		UploadTime: st.now().Format("2006-01-02 15:04:05"),
		Size:       size,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.meta[name] = m
	if err := st.persistLocked(); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns all files, newest first.
func (st *Store) List() []Entry {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]Entry, 0, len(st.meta))
	for name, m := range st.meta {
		out = append(out, Entry{Filename: name, Meta: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Meta.UploadTime != out[j].Meta.UploadTime {
			return out[i].Meta.UploadTime > out[j].Meta.UploadTime
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// Delete removes a file. Only the IP that uploaded it may delete it.
func (st *Store) Delete(name, ip string) error {
	name = filepath.Base(name)

	st.mu.Lock()
	defer st.mu.Unlock()

	m, ok := st.meta[name]
	if !ok {
		return ErrNotFound
	}
	if m.IP != ip {
		return ErrNotAllowed
	}
	if err := os.Remove(filepath.Join(st.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fileshare: remove: %w", err)
	}
	delete(st.meta, name)
	return st.persistLocked()
}

// Path resolves a stored file for serving. Unknown names fail.
func (st *Store) Path(name string) (string, error) {
	name = filepath.Base(name)

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.meta[name]; !ok {
		return "", ErrNotFound
	}
	return filepath.Join(st.dir, name), nil
}

func (st *Store) persistLocked() error {
	data, err := json.MarshalIndent(st.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("fileshare: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(st.dir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("fileshare: persist metadata: %w", err)
	}
	return nil
}

// Register mounts the file-sharing routes on the mux.
func (st *Store) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /files", st.handleList)
	mux.HandleFunc("POST /files/upload", st.handleUpload)
	mux.HandleFunc("GET /files/download/{name}", st.handleDownload)
	mux.HandleFunc("GET /files/preview/{name}", st.handlePreview)
	mux.HandleFunc("POST /files/delete/{name}", st.handleDelete)
}

func (st *Store) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st.List())
}

func (st *Store) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	deviceName := r.FormValue("device_name")
	if deviceName == "" {
		deviceName = "Unknown"
	}

	m, err := st.Save(header.Filename, deviceName, clientIP(r), file)
	if err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Entry{Filename: filepath.Base(header.Filename), Meta: m})
}

func (st *Store) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := st.Path(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	http.ServeFile(w, r, path)
}

func (st *Store) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := st.Path(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		w.Header().Set("Content-Type", mt)
	}
	http.ServeFile(w, r, path)
}

func (st *Store) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := st.Delete(name, clientIP(r))
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "not found"})
	case errors.Is(err, ErrNotAllowed):
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "not allowed"})
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
	default:
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}
}

// clientIP prefers the forwarded address when the server sits behind a
// proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
