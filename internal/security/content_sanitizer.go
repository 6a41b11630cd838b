// Package security はバックエンドから受け取ったユーザー投稿HTMLの無害化を提供する。
//
// ブログ本文・コメント・掲示板の留言はバックエンドでHTMLとして保存されているため、
// ローカルサーバーがビューモデルに載せる前に bluemonday の許可リストで無害化する。
// 一覧表示用の抜粋は golang.org/x/net/html のトークナイザでテキストだけを取り出す。
package security

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ContentSanitizer はHTMLの無害化と抜粋生成のインターフェース。
type ContentSanitizer interface {
	// SanitizeArticle はブログ本文を無害化する。見出し・表・コードブロック・画像を許可する。
	SanitizeArticle(rawHTML string) string
	// SanitizeComment はコメント・留言を無害化する。段落・改行・強調・リンクのみ許可する。
	SanitizeComment(rawHTML string) string
	// Excerpt はタグを除いたテキストを先頭からmaxRunes文字まで返す。
	// 切り詰めた場合は末尾に "…" を付ける。
	Excerpt(rawHTML string, maxRunes int) string
}

type contentSanitizer struct {
	article *bluemonday.Policy
	comment *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// mediaBase はバックエンドのメディア配信元（例: "http://127.0.0.1:8000"）。
// 本文中の相対パスの画像はこの配信元からのものとして許可する。
func NewContentSanitizer(mediaBase string) ContentSanitizer {
	return &contentSanitizer{
		article: articlePolicy(mediaBase),
		comment: commentPolicy(),
	}
}

func articlePolicy(mediaBase string) *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "strong", "em", "del", "sup", "sub",
		"table", "thead", "tbody", "tr",
	)
	p.AllowAttrs("align").OnElements("th", "td")
	p.AllowElements("th", "td")

	// シンタックスハイライト用の language-xxx クラスのみ通す
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
	p.AllowElements("code")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http", "mailto")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt", "title").OnElements("img")
	p.AllowAttrs("src").Matching(imageSource(mediaBase)).OnElements("img")

	return p
}

func commentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "code")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// imageSource は画像のsrcとして https の絶対URL、ルート相対パス、
// メディア配信元配下のURLだけを許可する正規表現を作る。
func imageSource(mediaBase string) *regexp.Regexp {
	alternatives := []string{`https://\S+`, `/[^/\s]\S*`}
	if mediaBase != "" {
		alternatives = append(alternatives, regexp.QuoteMeta(strings.TrimRight(mediaBase, "/"))+`/\S*`)
	}
	return regexp.MustCompile(`^(?:` + strings.Join(alternatives, "|") + `)$`)
}

// SanitizeArticle はブログ本文を無害化する。
func (s *contentSanitizer) SanitizeArticle(rawHTML string) string {
	return s.article.Sanitize(rawHTML)
}

// SanitizeComment はコメント・留言を無害化する。
func (s *contentSanitizer) SanitizeComment(rawHTML string) string {
	return s.comment.Sanitize(rawHTML)
}

// Excerpt はタグを除いたテキストの先頭を返す。
// script, style の中身は捨てる。連続する空白は1つにまとめる。
func (s *contentSanitizer) Excerpt(rawHTML string, maxRunes int) string {
	if rawHTML == "" || maxRunes <= 0 {
		return ""
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(bytes.NewReader([]byte(rawHTML)))
	skipDepth := 0

loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break loop
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style":
				skipDepth++
			case "p", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if name := string(tn); (name == "script" || name == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
		if b.Len() > maxRunes*utf8.UTFMax*2 {
			break loop
		}
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

// MediaOrigin はAPIルートURLからメディア配信元（スキーム+ホスト）を取り出す。
func MediaOrigin(apiBase string) string {
	u, err := url.Parse(apiBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
