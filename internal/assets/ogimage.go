// internal/assets/ogimage.go
package assets

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
)

// 社交分享预览图尺寸
const (
	OGWidth  = 1200
	OGHeight = 630
)

var (
	gradientEdge   = color.RGBA{0x1e, 0x40, 0xaf, 0xff}
	gradientCenter = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
)

// OGOptions 预览图上的文字
type OGOptions struct {
	Title       string
	Subtitle    string
	Description string
	Features    string
	Footer      string
}

// DefaultOGOptions 默认文案，footer 显示站点域名
func DefaultOGOptions(siteHost string) OGOptions {
	return OGOptions{
		Title:       "Ravlo",
		Subtitle:    "AI LinkedIn Post Tool",
		Description: "Write and format viral LinkedIn posts with AI",
		Features:    "AI-Powered Content • Smart Formatting • Draft Management",
		Footer:      siteHost,
	}
}

var (
	fontsOnce sync.Once
	fontsErr  error
	boldFont  *opentype.Font
	plainFont *opentype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if boldFont, fontsErr = opentype.Parse(gobold.TTF); fontsErr != nil {
			return
		}
		plainFont, fontsErr = opentype.Parse(goregular.TTF)
	})
	return fontsErr
}

// OGImage 绘制 1200x630 的 PNG 预览图：对角渐变背景、方格纹理、几何装饰和居中文字
func OGImage(w io.Writer, opts OGOptions) error {
	if err := loadFonts(); err != nil {
		return apperrors.NewProcessingError("加载字体失败", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))
	drawGradient(img)
	drawPattern(img)
	drawShapes(img)

	lines := []struct {
		text     string
		f        *opentype.Font
		size     float64
		alpha    uint8
		baseline int
	}{
		{opts.Title, boldFont, 72, 0xff, 200},
		{opts.Subtitle, plainFont, 36, 0xe6, 260},
		{opts.Description, plainFont, 24, 0xcc, 320},
		{opts.Features, plainFont, 20, 0xb3, 380},
		{opts.Footer, plainFont, 18, 0x99, 550},
	}
	for _, l := range lines {
		if l.text == "" {
			continue
		}
		if err := drawCentered(img, l.text, l.f, l.size, color.NRGBA{0xff, 0xff, 0xff, l.alpha}, l.baseline); err != nil {
			return apperrors.NewProcessingError(fmt.Sprintf("绘制文字 %q 失败", l.text), err)
		}
	}

	drawBorder(img)

	if err := png.Encode(w, img); err != nil {
		return apperrors.NewProcessingError("编码 PNG 失败", err)
	}
	return nil
}

// drawGradient 沿左上到右下的对角线插值，中点最亮
func drawGradient(img *image.RGBA) {
	b := img.Bounds()
	dx, dy := float64(b.Dx()), float64(b.Dy())
	norm := dx*dx + dy*dy

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t := (float64(x)*dx + float64(y)*dy) / norm
			// 0 → 边缘色，0.5 → 中心色，1 → 边缘色
			f := 1 - math.Abs(2*t-1)
			img.SetRGBA(x, y, lerpColor(gradientEdge, gradientCenter, f))
		}
	}
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

func drawPattern(img *image.RGBA) {
	overlay := image.NewUniform(color.NRGBA{0xff, 0xff, 0xff, 13})
	for i := 0; i < OGWidth; i += 40 {
		for j := 0; j < OGHeight; j += 40 {
			if (i+j)%80 == 0 {
				draw.Draw(img, image.Rect(i, j, i+20, j+20), overlay, image.Point{}, draw.Over)
			}
		}
	}
}

func drawShapes(img *image.RGBA) {
	overlay := image.NewUniform(color.NRGBA{0xff, 0xff, 0xff, 26})

	c := &circle{center: image.Pt(100, 150), r: 60}
	draw.DrawMask(img, c.Bounds(), overlay, image.Point{}, c, c.Bounds().Min, draw.Over)

	tri := &triangle{a: image.Pt(1100, 200), b: image.Pt(1050, 300), c: image.Pt(1150, 300)}
	draw.DrawMask(img, tri.Bounds(), overlay, image.Point{}, tri, tri.Bounds().Min, draw.Over)

	draw.Draw(img, image.Rect(50, 450, 130, 510), overlay, image.Point{}, draw.Over)
}

// drawBorder 2px 半透明内边框
func drawBorder(img *image.RGBA) {
	stroke := image.NewUniform(color.NRGBA{0xff, 0xff, 0xff, 51})
	outer := image.Rect(9, 9, OGWidth-9, OGHeight-9)
	inner := outer.Inset(2)
	for _, r := range []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y),
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y),
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y),
	} {
		draw.Draw(img, r, stroke, image.Point{}, draw.Over)
	}
}

func drawCentered(img *image.RGBA, text string, f *opentype.Font, size float64, c color.Color, baseline int) error {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return err
	}
	defer face.Close()

	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(img.Bounds().Dx()) - width) / 2,
		Y: fixed.I(baseline),
	}
	d.DrawString(text)
	return nil
}

// circle 是一个圆形 alpha 遮罩
type circle struct {
	center image.Point
	r      int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.center.X-c.r, c.center.Y-c.r, c.center.X+c.r, c.center.Y+c.r)
}

func (c *circle) At(x, y int) color.Color {
	xx, yy, rr := float64(x-c.center.X)+0.5, float64(y-c.center.Y)+0.5, float64(c.r)
	if xx*xx+yy*yy < rr*rr {
		return color.Alpha{0xff}
	}
	return color.Alpha{}
}

// triangle 是一个三角形 alpha 遮罩
type triangle struct {
	a, b, c image.Point
}

func (t *triangle) ColorModel() color.Model { return color.AlphaModel }

func (t *triangle) Bounds() image.Rectangle {
	r := image.Rectangle{Min: t.a, Max: t.a.Add(image.Pt(1, 1))}
	for _, p := range []image.Point{t.b, t.c} {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

func (t *triangle) At(x, y int) color.Color {
	px, py := float64(x)+0.5, float64(y)+0.5
	side := func(p, q image.Point) float64 {
		return (px-float64(q.X))*float64(p.Y-q.Y) - (float64(p.X-q.X))*(py-float64(q.Y))
	}
	d1, d2, d3 := side(t.a, t.b), side(t.b, t.c), side(t.c, t.a)
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	if neg && pos {
		return color.Alpha{}
	}
	return color.Alpha{0xff}
}
