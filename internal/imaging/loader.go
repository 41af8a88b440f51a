package imaging

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// ErrNoPage reports a page path that does not lead to a readable file.
var ErrNoPage = errors.New("no page image")

type binaryKey struct {
	path      string
	threshold uint8
}

// PageCache provides thread-safe caching of decoded pages and of their
// binarized rasters.
//
// Entries stay in memory until removed with Evict or Clear. A long-running
// server handling many pages should evict pages it is done with.
type PageCache struct {
	mu       sync.RWMutex
	pages    map[string]image.Image
	binaries map[binaryKey]*image.Gray
}

// NewPageCache creates an empty page cache.
func NewPageCache() *PageCache {
	return &PageCache{
		pages:    make(map[string]image.Image),
		binaries: make(map[binaryKey]*image.Gray),
	}
}

// Load returns the page at path, decoding it on first use.
//
// The EXIF orientation of JPEG pages is applied. A missing file yields an
// error wrapping ErrNoPage.
func (c *PageCache) Load(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNoPage)
	}

	c.mu.RLock()
	if img, ok := c.pages[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoPage, path)
		}
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	c.mu.Lock()
	c.pages[path] = img
	c.mu.Unlock()

	return img, nil
}

// LoadBinary returns the page at path binarized with threshold.
// Rasters are cached per path and threshold.
func (c *PageCache) LoadBinary(path string, threshold uint8) (*image.Gray, error) {
	key := binaryKey{path: path, threshold: threshold}
	c.mu.RLock()
	if bin, ok := c.binaries[key]; ok {
		c.mu.RUnlock()
		return bin, nil
	}
	c.mu.RUnlock()

	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	bin := Binarize(img, threshold)

	c.mu.Lock()
	c.binaries[key] = bin
	c.mu.Unlock()

	return bin, nil
}

// Clear removes every page from the cache.
func (c *PageCache) Clear() {
	c.mu.Lock()
	c.pages = make(map[string]image.Image)
	c.binaries = make(map[binaryKey]*image.Gray)
	c.mu.Unlock()
}

// Evict removes the page loaded from path, with its rasters.
// Unknown paths are ignored.
func (c *PageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.pages, path)
	for k := range c.binaries {
		if k.path == path {
			delete(c.binaries, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// PageInfo contains metadata about a page file.
type PageInfo struct {
	// Width is the page width in pixels, after orientation.
	Width int `json:"width"`

	// Height is the page height in pixels, after orientation.
	Height int `json:"height"`

	// Format is derived from the file extension: "png", "jpeg", "gif",
	// "tiff", "bmp" or "unknown".
	Format string `json:"format"`

	// Gray tells whether the page was stored as a grayscale image.
	Gray bool `json:"gray"`

	// InkRatio is the share of ink pixels once binarized with the
	// threshold given to LoadPageInfo.
	InkRatio float64 `json:"ink_ratio"`

	// FileSizeBytes is the size of the page file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadPageInfo loads a page into the cache and describes it.
func LoadPageInfo(cache *PageCache, path string, threshold uint8) (*PageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat page: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	gray := false
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		gray = true
	}

	bin, err := cache.LoadBinary(path, threshold)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &PageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		Gray:          gray,
		InkRatio:      InkRatio(bin),
		FileSizeBytes: stat.Size(),
	}, nil
}
