package repo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/benchradar/benchradar/internal/imaging"
)

// PhotoFile is one photo selected for upload.
type PhotoFile struct {
	Name string
	Data []byte
}

// UploadPhotos compresses and stores each file together with a thumbnail
// variant, and returns the full-size public URLs in input order. Files
// are processed in chunks of Upload.ChunkSize; each chunk runs
// concurrently and is awaited fully before the next chunk starts. Any
// failure aborts the whole batch; objects already stored are kept.
func (r *Repositories) UploadPhotos(ctx context.Context, files []PhotoFile) ([]string, error) {
	urls := make([]string, len(files))

	chunk := r.upload.ChunkSize
	if chunk <= 0 {
		chunk = 1
	}
	for start := 0; start < len(files); start += chunk {
		end := start + chunk
		if end > len(files) {
			end = len(files)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				url, err := r.uploadOne(gctx, files[i])
				if err != nil {
					return err
				}
				urls[i] = url
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, opErr(MsgUploadFailed, err)
		}
	}
	return urls, nil
}

// uploadOne stores the compressed full-size image and its thumbnail and
// returns the full-size public URL.
func (r *Repositories) uploadOne(ctx context.Context, f PhotoFile) (string, error) {
	full, err := imaging.Convert(bytes.NewReader(f.Data), r.upload.MaxDimension, r.upload.JPEGQuality)
	if err != nil {
		return "", err
	}
	thumb, err := imaging.Convert(bytes.NewReader(f.Data), r.upload.ThumbnailDim, r.upload.JPEGQuality)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("benches/%s.jpg", uuid.NewString())
	thumbPath := imaging.ThumbnailURL(path)

	if err := r.storage.Upload(ctx, path, "image/jpeg", bytes.NewReader(full)); err != nil {
		return "", err
	}
	if err := r.storage.Upload(ctx, thumbPath, "image/jpeg", bytes.NewReader(thumb)); err != nil {
		return "", err
	}
	return r.storage.PublicURL(path), nil
}
