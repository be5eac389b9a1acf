package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/catalog"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/imageops"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/moderation"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/storage"
)

const testBucket = "photos"

type recordingClassifier struct {
	verdicts map[string]moderation.Verdict
	err      error
	calls    []string
}

func (c *recordingClassifier) Classify(_ context.Context, bucket, name string) (moderation.Verdict, error) {
	c.calls = append(c.calls, bucket+"/"+name)
	if c.err != nil {
		return moderation.Verdict{}, c.err
	}
	return c.verdicts[name], nil
}

type countingImages struct {
	ImageProcessor
	blurs, thumbs int
}

func (c *countingImages) Blur(path string, sigma float64) error {
	c.blurs++
	return c.ImageProcessor.Blur(path, sigma)
}

func (c *countingImages) Thumbnail(src, dst string, w, h int) error {
	c.thumbs++
	return c.ImageProcessor.Thumbnail(src, dst, w, h)
}

type fixture struct {
	store      *storage.MemoryStore
	classifier *recordingClassifier
	images     *countingImages
	pipeline   *Pipeline
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	if opts.Prefix == "" {
		opts.Prefix = "images"
	}
	if opts.ThumbnailSize == 0 {
		opts.ThumbnailSize = 234
	}
	if opts.BlurSigma == 0 {
		opts.BlurSigma = 24
	}

	f := &fixture{
		store:      storage.NewMemoryStore(),
		classifier: &recordingClassifier{verdicts: map[string]moderation.Verdict{}},
		images:     &countingImages{ImageProcessor: imageops.New(85)},
	}
	builder := &catalog.Builder{
		Prefix: opts.Prefix,
		Object: "gallery.html",
		BaseURL: func(bucket string) string {
			return "https://storage.googleapis.com/" + bucket + "/"
		},
	}
	f.pipeline = New(f.store, f.classifier, f.images, builder, opts)
	return f
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestShouldProcess(t *testing.T) {
	p := New(nil, nil, nil, nil, Options{Prefix: "/images/"})

	tests := []struct {
		name string
		want bool
	}{
		{"cat.jpg", true},
		{"uploads/cat.jpg", true},
		{"imagesque/cat.jpg", true},
		{"images/cat.jpg", false},
		{"images/thumb-cat.jpg", false},
		{"gallery.html", false},
		{"pages/INDEX.HTM", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldProcess(tt.name))
		})
	}
}

func TestNaming(t *testing.T) {
	p := New(nil, nil, nil, nil, Options{Prefix: "images"})

	assert.Equal(t, "images/blurred-cat.jpg", p.CanonicalName("cat.jpg", true))
	assert.Equal(t, "images/cat.jpg", p.CanonicalName("cat.jpg", false))
	assert.Equal(t, "images/thumb-blurred-cat.jpg", p.ThumbnailName("images/blurred-cat.jpg"))
	assert.Equal(t, "images/thumb-cat.jpg", p.ThumbnailName("images/cat.jpg"))
	assert.Equal(t, "images/upload-thumb-x.jpg", p.CanonicalName("thumb-x.jpg", false))
	assert.Equal(t, "images/blurred-thumb-x.jpg", p.CanonicalName("thumb-x.jpg", true))
}

func TestHandleSkipsOwnOutputs(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	for _, name := range []string{"images/thumb-cat.jpg", "images/blurred-cat.jpg", "gallery.html"} {
		res, err := f.pipeline.Handle(ctx, UploadEvent{Bucket: testBucket, Name: name})
		require.NoError(t, err)
		assert.True(t, res.Skipped, name)
	}

	assert.Empty(t, f.classifier.calls)
	assert.Zero(t, f.images.blurs)
	assert.Zero(t, f.images.thumbs)
	assert.Empty(t, f.store.Names(testBucket))
}

func TestHandleFlaggedImage(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.Put(testBucket, "cat.jpg", jpegBytes(t, 640, 480))
	f.classifier.verdicts["cat.jpg"] = moderation.Verdict{Adult: moderation.VeryLikely}

	res, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: "cat.jpg"})
	require.NoError(t, err)

	assert.True(t, res.Flagged)
	assert.Equal(t, "images/blurred-cat.jpg", res.Canonical)
	assert.Equal(t, "images/thumb-blurred-cat.jpg", res.Thumbnail)
	assert.Equal(t, 1, res.CatalogEntries)
	assert.Equal(t, 1, f.images.blurs)
	assert.Equal(t, []string{"photos/cat.jpg"}, f.classifier.calls)

	assert.Equal(t, []string{
		"gallery.html",
		"images/blurred-cat.jpg",
		"images/thumb-blurred-cat.jpg",
	}, f.store.Names(testBucket))

	page, _ := f.store.Get(testBucket, "gallery.html")
	assert.Equal(t, 1, strings.Count(string(page.Data), `<div class="card">`))
	assert.Contains(t, string(page.Data), `href="https://storage.googleapis.com/photos/images/blurred-cat.jpg"`)
}

func TestHandleKeepsFlaggedOriginal(t *testing.T) {
	f := newFixture(t, Options{KeepFlaggedOriginals: true})
	f.store.Put(testBucket, "cat.jpg", jpegBytes(t, 100, 100))
	f.classifier.verdicts["cat.jpg"] = moderation.Verdict{Violence: moderation.VeryLikely}

	_, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: "cat.jpg"})
	require.NoError(t, err)

	_, ok := f.store.Get(testBucket, "cat.jpg")
	assert.True(t, ok)
}

func TestHandleCleanImage(t *testing.T) {
	f := newFixture(t, Options{})
	original := jpegBytes(t, 300, 800)
	f.store.Put(testBucket, "uploads/dog.jpg", original)
	f.classifier.verdicts["uploads/dog.jpg"] = moderation.Verdict{Adult: moderation.Likely, Violence: moderation.Possible}

	res, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: "uploads/dog.jpg"})
	require.NoError(t, err)

	assert.False(t, res.Flagged)
	assert.Equal(t, "images/dog.jpg", res.Canonical)
	assert.Equal(t, "images/thumb-dog.jpg", res.Thumbnail)
	assert.Zero(t, f.images.blurs)

	_, ok := f.store.Get(testBucket, "uploads/dog.jpg")
	assert.False(t, ok, "original must be moved")

	moved, ok := f.store.Get(testBucket, "images/dog.jpg")
	require.True(t, ok)
	assert.Equal(t, original, moved.Data, "clean image is moved unchanged")

	thumb, ok := f.store.Get(testBucket, "images/thumb-dog.jpg")
	require.True(t, ok)
	img, err := imaging.Decode(bytes.NewReader(thumb.Data))
	require.NoError(t, err)
	assert.Equal(t, 234, img.Bounds().Dx())
	assert.Equal(t, 234, img.Bounds().Dy())
	assert.Equal(t, "image/jpeg", thumb.ContentType)
}

func TestHandleCatalogCountsEveryThumbnail(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for _, name := range []string{"a.jpg", "b.png", "c.jpg"} {
		f.store.Put(testBucket, name, jpegBytes(t, 50, 50))
	}
	// b.png contient du JPEG : imaging décode selon le contenu, encode selon l'extension.
	f.classifier.verdicts["b.png"] = moderation.Verdict{Adult: moderation.VeryLikely}

	var last Result
	for _, name := range []string{"a.jpg", "b.png", "c.jpg"} {
		res, err := f.pipeline.Handle(ctx, UploadEvent{Bucket: testBucket, Name: name})
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, 3, last.CatalogEntries)
	thumbs, err := f.store.Bucket(testBucket).List(ctx, "images/thumb-")
	require.NoError(t, err)
	assert.Equal(t, []string{"images/thumb-a.jpg", "images/thumb-blurred-b.png", "images/thumb-c.jpg"}, thumbs)
}

func TestHandleClassifierFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.Put(testBucket, "cat.jpg", jpegBytes(t, 10, 10))
	f.classifier.err = errors.New("vision unavailable")

	_, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: "cat.jpg"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "classify")

	_, ok := f.store.Get(testBucket, "cat.jpg")
	assert.True(t, ok, "nothing is touched when classification fails")
	assert.Zero(t, f.images.thumbs)
}

func TestHandleMissingObject(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: "ghost.jpg"})
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func TestHandleInvalidEvent(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.pipeline.Handle(context.Background(), UploadEvent{Name: "cat.jpg"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestHandleUndecodableLeavesBucketUntouched(t *testing.T) {
	tests := []struct {
		name    string
		object  string
		flagged bool
	}{
		{"clean without extension", "IMG_0001", false},
		{"flagged without extension", "IMG_0002", true},
		{"clean unsupported encoder", "scan.webp", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.store.Put(testBucket, tt.object, jpegBytes(t, 40, 40))
			if tt.flagged {
				f.classifier.verdicts[tt.object] = moderation.Verdict{Adult: moderation.VeryLikely}
			}
			before := f.store.Names(testBucket)

			_, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: tt.object})
			require.Error(t, err)

			assert.Equal(t, before, f.store.Names(testBucket))
		})
	}
}

func TestHandleUploadNamedLikeThumbnail(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.Put(testBucket, "thumb-x.jpg", jpegBytes(t, 60, 60))

	res, err := f.pipeline.Handle(context.Background(), UploadEvent{Bucket: testBucket, Name: "thumb-x.jpg"})
	require.NoError(t, err)

	assert.Equal(t, "images/upload-thumb-x.jpg", res.Canonical)
	assert.Equal(t, "images/thumb-upload-thumb-x.jpg", res.Thumbnail)
	assert.Equal(t, 1, res.CatalogEntries)

	page, _ := f.store.Get(testBucket, "gallery.html")
	assert.Equal(t, 1, strings.Count(string(page.Data), `<div class="card">`))
}
