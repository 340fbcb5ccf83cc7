package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれるべき部分文字列
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>初診時の所見</p>",
			wantContains: []string{"<p>初診時の所見</p>"},
		},
		{
			name:         "brタグが許可される",
			input:        "行1<br>行2",
			wantContains: []string{"<br>", "行1", "行2"},
		},
		{
			name:         "ulタグとliタグが許可される",
			input:        "<ul><li>項目1</li><li>項目2</li></ul>",
			wantContains: []string{"<ul>", "<li>", "項目1", "項目2", "</li>", "</ul>"},
		},
		{
			name:         "blockquoteタグが許可される",
			input:        "<blockquote>引用テキスト</blockquote>",
			wantContains: []string{"<blockquote>引用テキスト</blockquote>"},
		},
		{
			name:         "strongタグとemタグが許可される",
			input:        "<strong>重要</strong><em>補足</em>",
			wantContains: []string{"<strong>重要</strong>", "<em>補足</em>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenTags は禁止タグが除去されることを検証する。
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>メモ</p><script>alert('xss')</script><p>安全</p>`,
			wantAbsent:   []string{"<script", "</script>", "alert"},
			wantContains: []string{"メモ", "安全"},
		},
		{
			name:       "iframeタグが除去される",
			input:      `<p>メモ</p><iframe src="https://evil.com"></iframe>`,
			wantAbsent: []string{"<iframe", "</iframe>", "evil.com"},
		},
		{
			name:       "styleタグが除去される",
			input:      `<p>メモ</p><style>body{display:none}</style>`,
			wantAbsent: []string{"<style", "</style>", "display:none"},
		},
		{
			name:         "aタグが除去されテキストは残る",
			input:        `<a href="https://example.com">リンク</a>`,
			wantAbsent:   []string{"<a", "href"},
			wantContains: []string{"リンク"},
		},
		{
			name:       "imgタグが除去される",
			input:      `<img src="https://example.com/x.png" alt="画像">`,
			wantAbsent: []string{"<img", "src"},
		},
		{
			name:         "divタグが除去される",
			input:        `<div><p>メモ</p></div>`,
			wantAbsent:   []string{"<div", "</div>"},
			wantContains: []string{"<p>メモ</p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_OnEventAttributes はon*イベント属性が除去されることを検証する。
func TestSanitize_OnEventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p onclick="alert('xss')" onmouseover="steal()">メモ</p>`
	got := sanitizer.Sanitize(input)

	if strings.Contains(got, "onclick") || strings.Contains(got, "onmouseover") {
		t.Errorf("Sanitize(%q) = %q, on* attributes should be removed", input, got)
	}
	if !strings.Contains(got, "メモ") {
		t.Errorf("Sanitize(%q) = %q, text content should survive", input, got)
	}
}

// TestSanitize_EmptyAndIdempotent は空入力と冪等性を検証する。
func TestSanitize_EmptyAndIdempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty string", got)
	}

	input := `<p>メモ</p><script>alert(1)</script>`
	once := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize should be idempotent: first=%q second=%q", once, twice)
	}
}
