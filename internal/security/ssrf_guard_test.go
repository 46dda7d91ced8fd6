package security

import (
	"testing"
	"time"
)

func TestSSRFGuard_ImplementsInterface(t *testing.T) {
	var _ SSRFGuardService = (*ssrfGuard)(nil)
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient は nil を返してはならない")
	}
}

func TestValidateURL_AllowsPublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	valid := []string{
		"https://example.com/feed.xml",
		"http://news.example.org/rss",
		"https://93.184.216.34/feed",
	}
	for _, rawURL := range valid {
		if err := guard.ValidateURL(rawURL); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
		}
	}
}

func TestValidateURL_BlocksPrivateAndLocal(t *testing.T) {
	guard := NewSSRFGuard()

	blocked := []struct {
		name   string
		rawURL string
	}{
		{"プライベートIP (10.x)", "http://10.0.0.5/feed"},
		{"プライベートIP (192.168.x)", "http://192.168.1.1/feed"},
		{"ループバック", "http://127.0.0.1/feed"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"localhost", "http://localhost:8080/feed"},
		{"fileスキーム", "file:///etc/passwd"},
		{"ftpスキーム", "ftp://example.com/feed"},
		{"空URL", ""},
		{"ホストなし", "http://"},
	}

	for _, tt := range blocked {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want エラー", tt.rawURL)
			}
		})
	}
}
