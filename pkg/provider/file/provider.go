// Package file implements the provider interface over a local directory.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/swiftfs/pkg/provider"
)

// Provider implements provider.Provider for local filesystem paths.
//
// Keys are treated as slash-separated relative paths under BaseDir. Regular
// files are objects; empty directories surface as "dir/" markers so that the
// local tree behaves like a container holding explicit pseudo-directories.
type Provider struct {
	baseDir string
}

// Ensure Provider implements provider capability interfaces.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.ObjectGetter  = (*Provider)(nil)
	_ provider.ObjectPutter  = (*Provider)(nil)
	_ provider.ObjectDeleter = (*Provider)(nil)
	_ provider.ObjectCopier  = (*Provider)(nil)
)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

func (p *Provider) Close() error { return nil }

func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (provider.ObjectIterator, error) {
	prefix := strings.TrimPrefix(opts.Prefix, "/")
	objects, err := p.collect(ctx, prefix)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return provider.NewSliceIterator(provider.GroupByDelimiter(objects, prefix, opts.Delimiter)), nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, p.wrapError("Head", key, provider.ErrNotFound)
	}

	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          strings.TrimPrefix(key, "/"),
			Size:         uint64(st.Size()),
			ContentType:  contentTypeOf(key),
			LastModified: st.ModTime(),
		},
	}, nil
}

func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, 0, p.wrapError("GetObject", key, provider.ErrNotFound)
	}
	return f, st.Size(), nil
}

// PutObject writes body atomically via a temp file and rename.
// Expiry options are not supported by the local filesystem and are ignored.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts provider.PutOptions) error {
	_ = ctx
	_ = contentLength
	_ = opts
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if strings.HasSuffix(key, "/") {
		if err := os.MkdirAll(full, 0o755); err != nil {
			return p.wrapError("PutObject", key, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".swiftfs-put-*")
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := tmp.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if err := os.Remove(full); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	p.pruneEmptyParents(filepath.Dir(full))
	return nil
}

func (p *Provider) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	body, size, err := p.GetObject(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()
	return p.PutObject(ctx, dstKey, body, size, provider.PutOptions{})
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	// Prevent path traversal.
	clean := path.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

// collect walks the deepest directory fully covered by prefix and keeps
// the entries whose key starts with prefix.
func (p *Provider) collect(ctx context.Context, prefix string) ([]provider.ObjectSummary, error) {
	dir := prefix
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	} else {
		dir = ""
	}
	root, err := p.fullPath(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []provider.ObjectSummary{}, nil
		}
		return nil, err
	}

	var objects []provider.ObjectSummary
	err = filepath.WalkDir(root, func(fp string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(p.baseDir, fp)
		if err != nil || rel == "." {
			return nil
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			key += "/"
			if !strings.HasPrefix(key, prefix) && !strings.HasPrefix(prefix, key) {
				return filepath.SkipDir
			}
			empty, err := isEmptyDir(fp)
			if err != nil || !empty || !strings.HasPrefix(key, prefix) {
				return nil
			}
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		obj := provider.ObjectSummary{Key: key, LastModified: info.ModTime()}
		if !d.IsDir() {
			obj.Size = uint64(info.Size())
			obj.ContentType = contentTypeOf(key)
		}
		objects = append(objects, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (p *Provider) pruneEmptyParents(dir string) {
	for dir != p.baseDir && strings.HasPrefix(dir, p.baseDir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Container: p.baseDir, Key: key, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	// Normalize common filesystem errors to provider sentinels.
	if os.IsNotExist(err) {
		wrapped.Err = provider.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()
	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

func contentTypeOf(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
