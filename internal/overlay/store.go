package overlay

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// FileStore writes overlays as PNG files into a directory
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Dir returns the output directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes an automatically captured detection overlay
func (s *FileStore) Save(img image.Image) (string, error) {
	return s.saveNamed(img, "green_detected")
}

// SaveManual writes an overlay requested from the control surface
func (s *FileStore) SaveManual(img image.Image) (string, error) {
	return s.saveNamed(img, "overlay")
}

func (s *FileStore) saveNamed(img image.Image, prefix string) (string, error) {
	name := fmt.Sprintf("%s_%d.png", prefix, s.now().UnixMilli())
	path := filepath.Join(s.dir, name)
	if err := SavePNG(img, path); err != nil {
		return "", err
	}
	return path, nil
}

// SavePNG encodes img to path, creating parent directories
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}

// LoadPNG decodes a PNG file into an RGBA frame anchored at (0,0)
func LoadPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
