// Package preview renders the browse artifacts for an asset: a bounded
// thumbnail for images and a representative poster frame for videos.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Generator renders thumbnails and poster frames into a cache directory.
type Generator struct {
	ffmpegBinary string
	maxEdge      int
	posterOffset float64
}

// NewGenerator returns a Generator. maxEdge bounds the longest edge of any
// rendered image; posterOffset selects the video timestamp in seconds used
// for poster frames.
func NewGenerator(ffmpegBinary string, maxEdge int, posterOffset float64) *Generator {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if maxEdge <= 0 {
		maxEdge = 800
	}
	if posterOffset < 0 {
		posterOffset = 0
	}
	return &Generator{
		ffmpegBinary: ffmpegBinary,
		maxEdge:      maxEdge,
		posterOffset: posterOffset,
	}
}

// Thumbnail renders a JPEG thumbnail of the image at srcPath into dstPath.
// The source aspect ratio is preserved; images already within bounds are
// re-encoded without scaling. EXIF orientation is applied so thumbnails
// never come out sideways.
func (g *Generator) Thumbnail(srcPath, dstPath string) error {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", srcPath, err)
	}
	return g.encodeBounded(img, dstPath)
}

// PosterFrame extracts a single frame from the video at srcPath and writes
// it to dstPath as a bounded JPEG. The frame is pulled with ffmpeg at the
// configured offset, clamped to the clip duration by the caller.
func (g *Generator) PosterFrame(ctx context.Context, srcPath, dstPath string) error {
	if strings.TrimSpace(srcPath) == "" {
		return errors.New("poster frame: empty source path")
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create poster dir: %w", err)
	}

	frame := dstPath + ".frame.jpg"
	defer os.Remove(frame)

	cmd := exec.CommandContext(ctx, g.ffmpegBinary,
		"-v", "error",
		"-ss", fmt.Sprintf("%.3f", g.posterOffset),
		"-i", srcPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", frame,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg poster: %w: %s", err, strings.TrimSpace(string(output)))
	}

	img, err := imaging.Open(frame)
	if err != nil {
		return fmt.Errorf("decode poster frame: %w", err)
	}
	return g.encodeBounded(img, dstPath)
}

func (g *Generator) encodeBounded(img image.Image, dstPath string) error {
	bounds := img.Bounds()
	if bounds.Dx() > g.maxEdge || bounds.Dy() > g.maxEdge {
		img = imaging.Fit(img, g.maxEdge, g.maxEdge, imaging.Lanczos)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := imaging.Save(img, dstPath, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("encode %s: %w", dstPath, err)
	}
	return nil
}
