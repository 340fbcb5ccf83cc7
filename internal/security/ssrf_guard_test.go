package security

import (
	"strings"
	"testing"
	"time"
)

// TestValidateURL_AllowedURLs は安全なURLが通過することを検証する。
func TestValidateURL_AllowedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []string{
		"https://example-clinic.jp",
		"https://example.com/about",
		"http://public.example.org",
		"https://8.8.8.8",
	}

	for _, rawURL := range tests {
		t.Run(rawURL, func(t *testing.T) {
			if err := guard.ValidateURL(rawURL); err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
			}
		})
	}
}

// TestValidateURL_BlockedURLs は危険なURLが拒否されることを検証する。
func TestValidateURL_BlockedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name   string
		rawURL string
		// エラーメッセージに含まれるべき部分文字列
		wantErrContains string
	}{
		{"空URL", "", "empty URL"},
		{"ftpスキーム", "ftp://example.com", "disallowed scheme"},
		{"fileスキーム", "file:///etc/passwd", "disallowed scheme"},
		{"javascriptスキーム", "javascript:alert(1)", "disallowed scheme"},
		{"ホストなし", "https://", "empty host"},
		{"ループバックIP", "http://127.0.0.1/admin", "blocked IP"},
		{"プライベートIP 10系", "http://10.0.0.5", "blocked IP"},
		{"プライベートIP 172系", "http://172.16.0.1", "blocked IP"},
		{"プライベートIP 192系", "http://192.168.1.1", "blocked IP"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/", "blocked IP"},
		{"IPv6ループバック", "http://[::1]/", "blocked IP"},
		{"localhost", "http://localhost:8080", "blocked host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.rawURL)
			if err == nil {
				t.Fatalf("ValidateURL(%q) = nil, want error", tt.rawURL)
			}
			if !strings.Contains(err.Error(), tt.wantErrContains) {
				t.Errorf("ValidateURL(%q) = %v, want error containing %q", tt.rawURL, err, tt.wantErrContains)
			}
		})
	}
}

// TestNewSafeClient_ReturnsClient はSSRF防止クライアントが生成されることを検証する。
func TestNewSafeClient_ReturnsClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(5*time.Second, 2*1024*1024)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("client.Timeout = %v, want %v", client.Timeout, 5*time.Second)
	}
}

// ssrfGuardはSSRFGuardServiceインターフェースを満たすことを検証
func TestSSRFGuard_ImplementsInterface(t *testing.T) {
	var _ SSRFGuardService = (*ssrfGuard)(nil)
}
