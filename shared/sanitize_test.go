package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "great app", "great app"},
		{"tags stripped", "<b>great</b> app", "great app"},
		{"script stripped", `<script>alert("x")</script>hello`, "alert(&#34;x&#34;)hello"},
		{"entities escaped", "5 > 4 & 3 < 4", "5 &gt; 4 &amp; 3 &lt; 4"},
		{"whitespace trimmed", "  hello  ", "hello"},
		{"only tags becomes empty", "<div><span></span></div>", ""},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}
