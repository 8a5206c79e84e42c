package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	body    []byte
	err     error
	referer string
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, rawURL, referer string) ([]byte, string, error) {
	f.referer = referer
	if f.err != nil {
		return nil, "", f.err
	}
	return f.body, "image/png", nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCoverStore_LocalizeDownscales(t *testing.T) {
	covers := NewCoverStore(t.TempDir())
	f := &fakeFetcher{body: pngBytes(t, 600, 600)}

	path, err := covers.Localize(context.Background(), f, "https://img.a.com/1.png", "a1b2c", "https://a.com/book/1/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(covers.Dir(), "a1b2c.jpg"), path)
	assert.Equal(t, "https://a.com/book/1/", f.referer)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestCoverStore_LocalizeKeepsSmallImages(t *testing.T) {
	covers := NewCoverStore(t.TempDir())
	path, err := covers.Localize(context.Background(), &fakeFetcher{body: pngBytes(t, 120, 160)}, "https://img.a.com/1.png", "s", "")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 160, cfg.Height)
}

func TestCoverStore_LocalizeFailures(t *testing.T) {
	covers := NewCoverStore(t.TempDir())
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
		f    *fakeFetcher
	}{
		{"空地址", "", &fakeFetcher{}},
		{"相对地址", "/cover.jpg", &fakeFetcher{}},
		{"下载失败", "https://img.a.com/1.jpg", &fakeFetcher{err: errors.New("timeout")}},
		{"不是图片", "https://img.a.com/1.jpg", &fakeFetcher{body: []byte("<html>403</html>")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := covers.Localize(ctx, tt.f, tt.url, "slug", "")
			assert.Error(t, err)
		})
	}
	assert.NoFileExists(t, filepath.Join(covers.Dir(), "slug.jpg"))
}

func TestCoverStore_Placeholder(t *testing.T) {
	covers := NewCoverStore(t.TempDir())

	path := covers.Placeholder("a1b2c", "斗破苍穹 Doupo", "天蚕土豆", "xuanhuan")
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 400), img.Bounds())

	// 同一 slug 生成的背景色一致
	again := covers.Placeholder("a1b2c", "", "", "")
	data2, err := os.ReadFile(again)
	require.NoError(t, err)
	img2, err := png.Decode(bytes.NewReader(data2))
	require.NoError(t, err)
	assert.Equal(t, img.At(5, 5), img2.At(5, 5))

	assert.Empty(t, NewCoverStore(filepath.Join(path, "not-a-dir")).Placeholder("x", "", "", ""))
}

func TestAsciiOnly(t *testing.T) {
	assert.Equal(t, "Doupo", asciiOnly("斗破苍穹 Doupo"))
	assert.Equal(t, "", asciiOnly("天蚕土豆"))
	assert.Len(t, asciiOnly("abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"), 36)
}
