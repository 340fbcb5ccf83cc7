// Package logo は組織ロゴのバックグラウンド取得処理を提供する。
// 組織のWebサイトHTMLからアイコンリンクを検出し、SSRF防止付き
// クライアントで画像を取得する。
package logo

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// defaultMaxLogoSize はロゴ画像の最大サイズ（2MB）。
const defaultMaxLogoSize = 2 * 1024 * 1024

// defaultFetchTimeout はロゴ取得のタイムアウト。
const defaultFetchTimeout = 5 * time.Second

// maxHTMLSize はアイコン検出のために読み込むHTMLの最大サイズ（1MB）。
const maxHTMLSize = 1 * 1024 * 1024

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FetcherService はロゴ取得のインターフェース。
type FetcherService interface {
	// FetchForSite はサイトURLからロゴ画像を取得する。
	// HTMLのアイコンリンクを優先し、見つからない場合は /favicon.ico を試行する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchForSite(ctx context.Context, siteURL string) (data []byte, mimeType string, err error)
}

// Fetcher はロゴ取得機能の実装。
type Fetcher struct {
	ssrfGuard SSRFValidator

	// Timeout は1リクエストあたりのタイムアウト（デフォルト: 5秒）。
	Timeout time.Duration
	// MaxSize はロゴ画像の最大サイズ（デフォルト: 2MB）。
	MaxSize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
		Timeout:   defaultFetchTimeout,
		MaxSize:   defaultMaxLogoSize,
	}
}

// FetchForSite はサイトURLからロゴ画像を取得する。
// サイトのHTMLからlink rel="icon"等のアイコンリンクを検出して順に試行し、
// 見つからない場合は /favicon.ico にフォールバックする。
// 取得失敗時はnilデータと空MIMEを返す（失敗した組織はロゴなしのまま残る）。
func (f *Fetcher) FetchForSite(ctx context.Context, siteURL string) ([]byte, string, error) {
	if siteURL == "" {
		return nil, "", nil
	}

	candidates := f.discoverIconURLs(ctx, siteURL)

	// フォールバック: /favicon.ico
	if fallback := guessDefaultFaviconURL(siteURL); fallback != "" {
		candidates = append(candidates, fallback)
	}

	for _, iconURL := range candidates {
		data, mimeType := f.fetchImage(ctx, iconURL)
		if data != nil {
			return data, mimeType, nil
		}
	}

	return nil, "", nil
}

// discoverIconURLs はサイトのHTMLを取得してアイコンリンクのURL一覧を返す。
// 取得や解析に失敗した場合は空スライスを返す。
func (f *Fetcher) discoverIconURLs(ctx context.Context, siteURL string) []string {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(siteURL); err != nil {
			slog.Warn("ロゴ取得: サイトURLのSSRFブロック", "url", siteURL, "error", err)
			return nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		slog.Warn("ロゴ取得: リクエスト作成失敗", "url", siteURL, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", "Karte/1.0")
	req.Header.Set("Accept", "text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("ロゴ取得: サイトHTMLの取得失敗", "url", siteURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("ロゴ取得: HTTPステータス異常", "url", siteURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLSize))
	if err != nil {
		slog.Warn("ロゴ取得: レスポンス読み取り失敗", "url", siteURL, "error", err)
		return nil
	}

	return parseIconLinksFromHTML(body, siteURL)
}

// fetchImage は指定URLから画像を取得する。失敗時はnilデータと空MIMEを返す。
func (f *Fetcher) fetchImage(ctx context.Context, imageURL string) ([]byte, string) {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(imageURL); err != nil {
			slog.Warn("ロゴ取得: 画像URLのSSRFブロック", "url", imageURL, "error", err)
			return nil, ""
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		slog.Warn("ロゴ取得: リクエスト作成失敗", "url", imageURL, "error", err)
		return nil, ""
	}
	req.Header.Set("User-Agent", "Karte/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("ロゴ取得: HTTPリクエスト失敗", "url", imageURL, "error", err)
		return nil, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("ロゴ取得: HTTPステータス異常", "url", imageURL, "status", resp.StatusCode)
		return nil, ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxSize+1))
	if err != nil {
		slog.Warn("ロゴ取得: レスポンス読み取り失敗", "url", imageURL, "error", err)
		return nil, ""
	}

	if int64(len(body)) > f.MaxSize {
		slog.Warn("ロゴ取得: サイズ超過", "url", imageURL, "size", len(body))
		return nil, ""
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("ロゴ取得: 画像以外のContent-Type", "url", imageURL, "contentType", mimeType)
		return nil, ""
	}

	return body, mimeType
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.Timeout, f.MaxSize)
	}
	return &http.Client{Timeout: f.Timeout}
}

// iconRels はアイコンリンクとして認識するrel属性値。
var iconRels = map[string]bool{
	"icon":             true,
	"shortcut icon":    true,
	"apple-touch-icon": true,
}

// parseIconLinksFromHTML はHTMLのheadタグからアイコンリンクを解析・検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseIconLinksFromHTML(htmlBody []byte, baseURL string) []string {
	var urls []string

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return urls
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return urls

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return urls
			}

			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(strings.TrimSpace(string(val)))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if !iconRels[rel] || href == "" {
				continue
			}

			resolved := resolveURL(baseU, href)
			if resolved == "" {
				continue
			}
			urls = append(urls, resolved)

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return urls
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// guessDefaultFaviconURL はサイトURLからデフォルトのfavicon URLを推測する。
func guessDefaultFaviconURL(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil {
		return ""
	}

	u.Path = "/favicon.ico"
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ FetcherService = (*Fetcher)(nil)
