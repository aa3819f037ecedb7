// internal/assets/sitemap.go
package assets

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Page 站点中一个公开页面
type Page struct {
	Path       string  `yaml:"path" json:"path"`
	ChangeFreq string  `yaml:"changefreq" json:"changefreq"`
	Priority   float64 `yaml:"priority" json:"priority"`
}

// DefaultPages 公开页面及其抓取优先级
var DefaultPages = []Page{
	{Path: "/", ChangeFreq: "daily", Priority: 1.0},
	{Path: "/post-formatter", ChangeFreq: "weekly", Priority: 0.8},
	{Path: "/saved-drafts", ChangeFreq: "weekly", Priority: 0.7},
	{Path: "/privacy", ChangeFreq: "monthly", Priority: 0.3},
	{Path: "/terms", ChangeFreq: "monthly", Priority: 0.3},
	{Path: "/faq", ChangeFreq: "monthly", Priority: 0.5},
	{Path: "/buy-me-a-coffee", ChangeFreq: "monthly", Priority: 0.4},
}

var validChangeFreqs = map[string]bool{
	"always": true, "hourly": true, "daily": true, "weekly": true,
	"monthly": true, "yearly": true, "never": true,
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap 生成 sitemap.xml；所有页面的 lastmod 都是 now
func Sitemap(siteURL string, pages []Page, now time.Time) ([]byte, error) {
	base, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid site url %q", siteURL), err)
	}
	root := strings.TrimRight(base.String(), "/")
	lastMod := now.UTC().Format("2006-01-02T15:04:05.000Z")

	set := urlSet{Xmlns: sitemapNamespace, URLs: make([]sitemapURL, 0, len(pages))}
	for _, p := range pages {
		if !strings.HasPrefix(p.Path, "/") {
			return nil, apperrors.NewValidationError(fmt.Sprintf("page path %q must start with /", p.Path), nil)
		}
		if !validChangeFreqs[p.ChangeFreq] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("page %s: unknown changefreq %q", p.Path, p.ChangeFreq), nil)
		}
		if p.Priority < 0 || p.Priority > 1 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("page %s: priority %.2f out of range", p.Path, p.Priority), nil)
		}

		set.URLs = append(set.URLs, sitemapURL{
			Loc:        root + p.Path,
			LastMod:    lastMod,
			ChangeFreq: p.ChangeFreq,
			Priority:   fmt.Sprintf("%.1f", p.Priority),
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, apperrors.NewProcessingError("生成 sitemap 失败", err)
	}
	return append([]byte(xml.Header), out...), nil
}
