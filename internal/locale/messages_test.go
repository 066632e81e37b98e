package locale

import "testing"

func TestInvalidTitle(t *testing.T) {
	reason := `The requested page title contains invalid characters: "<".`
	got := ZhCN.InvalidTitle(reason)
	want := `发生错误：“请求的页面标题包含非法字符： "<"”。`
	if got != want {
		t.Errorf("InvalidTitle() = %q, want %q", got, want)
	}
}

func TestHint(t *testing.T) {
	if ZhCN.Hint("https://zh.moegirl.org.cn/Main") == "" {
		t.Error("expected a hint for moegirl.org.cn")
	}
	if ZhCN.Hint("https://en.wikipedia.org/wiki/Go") != "" {
		t.Error("unexpected hint for wikipedia")
	}
}

func TestByLang(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"", "zh-CN"},
		{"zh-CN", "zh-CN"},
		{"EN", "en"},
		{"en-GB", "en"},
		{"fr", "zh-CN"},
	}
	for _, tt := range tests {
		if got := ByLang(tt.lang).Lang; got != tt.want {
			t.Errorf("ByLang(%q).Lang = %q, want %q", tt.lang, got, tt.want)
		}
	}
}
