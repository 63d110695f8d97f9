package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/dataset"
)

// MirrorSuffix is appended to the stem of horizontally flipped images.
const MirrorSuffix = "_mirror"

// MirrorImages writes a horizontally flipped copy of every image in
// inRoot/<class>/ to outRoot/<class>/<stem>_mirror<ext>. Flipping the
// pixels lets a right-handed signer's data stand in for a left-handed one
// before landmarks are extracted.
func MirrorImages(ctx context.Context, inRoot, outRoot string) (*batch.Summary, error) {
	classes, err := dataset.ListClasses(inRoot)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	summary := &batch.Summary{}
	for _, class := range classes {
		files, err := dataset.ListFiles(filepath.Join(inRoot, class), dataset.ImageExts)
		if err != nil {
			summary.Skip("", class, filepath.Join(inRoot, class), err)
			continue
		}

		outDir := filepath.Join(outRoot, class)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return summary, err
		}

		for _, src := range files {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			img, err := capture.ReadImage(src)
			if err != nil {
				summary.Skip("", class, src, err)
				continue
			}

			flipped := capture.FlipHorizontal(*img)
			img.Close()

			dst := filepath.Join(outDir, dataset.Stem(src)+MirrorSuffix+filepath.Ext(src))
			err = capture.WriteImage(dst, flipped)
			flipped.Close()
			if err != nil {
				summary.Fail("", class, src, err)
				continue
			}
			summary.Succeed("", class, src, dst)
		}
	}

	return summary, nil
}
