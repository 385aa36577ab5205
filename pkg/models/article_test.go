package models

import (
	"strings"
	"testing"
)

func TestContentHash_Stability(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{
			name: "identical text",
			a:    "You can cancel a reservation from the trips page.",
			b:    "You can cancel a reservation from the trips page.",
			same: true,
		},
		{
			name: "whitespace differences are irrelevant",
			a:    "You can cancel  a reservation\n\nfrom the trips page.",
			b:    "You can cancel a reservation from the trips page.",
			same: true,
		},
		{
			name: "leading and trailing whitespace",
			a:    "  Refunds take 5-10 business days.  \n",
			b:    "Refunds take 5-10 business days.",
			same: true,
		},
		{
			name: "different content",
			a:    "Refunds take 5-10 business days.",
			b:    "Refunds take up to 14 days.",
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, hb := ContentHash(tt.a), ContentHash(tt.b)
			if (ha == hb) != tt.same {
				t.Errorf("ContentHash(%q) == ContentHash(%q) is %v, want %v", tt.a, tt.b, ha == hb, tt.same)
			}
		})
	}
}

func TestDocumentID_Deterministic(t *testing.T) {
	url := "https://www.airbnb.com/help/article/478"
	a := DocumentID(url)
	b := DocumentID(url)
	if a != b {
		t.Errorf("DocumentID not deterministic: %q != %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("DocumentID length = %d, want 16", len(a))
	}
	if a == DocumentID("https://www.airbnb.com/help/article/479") {
		t.Error("different URLs should produce different IDs")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     string
	}{
		{
			name:     "basic question",
			question: "How do I cancel my reservation?",
			want:     "how-do-i-cancel-my-reservation",
		},
		{
			name:     "punctuation and symbols",
			question: "What's the fee for Viator tours (2024)?",
			want:     "what-s-the-fee-for-viator-tours-2024",
		},
		{
			name:     "empty input falls back",
			question: "",
			want:     "article",
		},
		{
			name:     "only symbols falls back",
			question: "!!! ???",
			want:     "article",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.question); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}

func TestSlugify_CapsLength(t *testing.T) {
	long := strings.Repeat("booking cancellation refund policy ", 10)
	slug := Slugify(long)
	if len(slug) > maxSlugLength {
		t.Errorf("slug length = %d, want <= %d", len(slug), maxSlugLength)
	}
	if strings.HasSuffix(slug, "-") {
		t.Errorf("slug should not end with hyphen: %q", slug)
	}
}

func TestSlugWithSuffix(t *testing.T) {
	base := "how-do-i-cancel"
	a := SlugWithSuffix(base)
	b := SlugWithSuffix(base)
	if !strings.HasPrefix(a, base+"-") {
		t.Errorf("suffix slug %q should keep base prefix", a)
	}
	if a == b {
		t.Error("two suffixed slugs should differ")
	}
}
