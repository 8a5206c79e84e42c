package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // 注册解码器
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // 注册解码器

	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

const (
	// CoverWidth 封面最大宽度
	CoverWidth = 300
	// CoverHeight 封面最大高度
	CoverHeight = 400
)

// ByteFetcher 抓取二进制内容
type ByteFetcher interface {
	FetchBytes(ctx context.Context, rawURL, referer string) ([]byte, string, error)
}

// CoverStore 封面存储
type CoverStore struct {
	dir string
}

// NewCoverStore 创建封面存储
func NewCoverStore(dir string) *CoverStore {
	return &CoverStore{dir: dir}
}

// Dir 封面目录
func (c *CoverStore) Dir() string {
	return c.dir
}

// Localize 下载远程封面,校验为图片后缩放到 300x400 以内并以JPEG保存
// 返回本地路径;任何一步失败都返回错误,由调用方改用占位封面
func (c *CoverStore) Localize(ctx context.Context, f ByteFetcher, remoteURL, slug, referer string) (string, error) {
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return "", fmt.Errorf("封面地址为空")
	}
	if !strings.HasPrefix(remoteURL, "http://") && !strings.HasPrefix(remoteURL, "https://") {
		return "", fmt.Errorf("不支持的封面地址: %s", remoteURL)
	}

	data, _, err := f.FetchBytes(ctx, remoteURL, referer)
	if err != nil {
		return "", fmt.Errorf("下载封面失败: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("封面不是有效图片: %w", err)
	}

	out := downscale(img, CoverWidth, CoverHeight)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("编码封面失败: %w", err)
	}

	path := filepath.Join(c.dir, slug+".jpg")
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	utils.Debugf("封面已本地化: %s (%s, %dx%d)", path, format, out.Bounds().Dx(), out.Bounds().Dy())
	return path, nil
}

// downscale 等比缩小到 maxW x maxH 以内,不放大
func downscale(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Placeholder 生成 300x400 的占位封面(PNG)
// 背景色由 slug 决定;从不返回错误,失败时返回空串
func (c *CoverStore) Placeholder(slug, title, author, categoryID string) string {
	img := image.NewRGBA(image.Rect(0, 0, CoverWidth, CoverHeight))

	sum := md5.Sum([]byte(slug))
	bg := color.RGBA{R: 40 + sum[0]%120, G: 40 + sum[1]%120, B: 40 + sum[2]%120, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	band := image.Rect(0, CoverHeight-90, CoverWidth, CoverHeight)
	draw.Draw(img, band, &image.Uniform{C: color.RGBA{A: 160}}, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	y := 60
	for _, line := range []string{asciiOnly(title), asciiOnly(author)} {
		if line == "" {
			continue
		}
		d.Dot = fixed.P(20, y)
		d.DrawString(line)
		y += 20
	}
	d.Dot = fixed.P(20, CoverHeight-55)
	d.DrawString(strings.ToUpper(categoryID))
	d.Dot = fixed.P(20, CoverHeight-30)
	d.DrawString(slug)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		utils.Warnf("生成占位封面失败 [%s]: %v", slug, err)
		return ""
	}
	path := filepath.Join(c.dir, slug+".png")
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		utils.Warnf("保存占位封面失败 [%s]: %v", slug, err)
		return ""
	}
	return path
}

// asciiOnly 内置点阵字体只有ASCII字形
func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > 36 {
		out = out[:36]
	}
	return out
}
