package utils

import (
	"testing"
)

func TestShortenString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "hello..."},
		{"hello", 10, "hello"},
		{"", 3, ""},
		{"abcdef", 0, "abcdef"},
		{"abcdef", 6, "abcdef"},
		{"abcdef", 3, "abc..."},
		{"Ärmelschoner", 2, "Är..."},
		{"日本のお皿", 3, "日本の..."},
		{"日本", 2, "日本"},
	}

	for _, tt := range tests {
		result := ShortenString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("ShortenString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestNormalizeSpace(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  2020 -   2025 ", "2020 - 2025"},
		{"Made\nTo\tOrder", "Made To Order"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		result := NormalizeSpace(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeSpace(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"my shop", "my-shop"},
		{"photo 1.png", "photo-1.png"},
		{"a  /  b", "a-b"},
		{"TitleFill", "TitleFill"},
		{"../../etc/passwd", "....etcpasswd"},
		{" trailing ", "trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		result := Slugify(tt.input)
		if result != tt.expected {
			t.Errorf("Slugify(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestRandomString(t *testing.T) {
	base := "testbase"
	result1, err1 := RandomString(base)
	if err1 != nil {
		t.Fatalf("RandomString(%q) returned error: %v", base, err1)
	}
	if len(result1) <= len(base)+1 {
		t.Errorf("RandomString(%q) = %q; expected longer string with random suffix", base, result1)
	}
	if got, want := result1[:len(base)], base; got != want {
		t.Errorf("RandomString(%q) prefix = %q; want %q", base, got, want)
	}
	if result1[len(base)] != '-' {
		t.Errorf("RandomString(%q) missing '-' after base: %q", base, result1)
	}
	// Check that the suffix is 16 hex characters (8 bytes)
	suffix := result1[len(base)+1:]
	if len(suffix) != 16 {
		t.Errorf("RandomString(%q) suffix length = %d; want 16", base, len(suffix))
	}
	result2, err2 := RandomString(base)
	if err2 != nil {
		t.Fatalf("RandomString(%q) returned error: %v", base, err2)
	}
	if result1 == result2 {
		t.Errorf("RandomString(%q) produced duplicate results: %q", base, result1)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"shop1", "shop1"},
		{"my-shop", "my-shop"},
		{"my shop", "my-shop~21e02318"},
		{"my-shop!", "my-shop~4db8e56d"},
		{"a/b", "ab~c14cddc0"},
	}

	for _, tt := range tests {
		result := FileName(tt.input)
		if result != tt.expected {
			t.Errorf("FileName(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}
