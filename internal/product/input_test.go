package product

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpg"), 0644))

	negative := -1

	tests := []struct {
		name    string
		input   Input
		wantErr string
	}{
		{"minimal", Input{CategoryQuery: "plate"}, ""},
		{"full", Input{CategoryQuery: "plate", WhoMade: WhoMadeIDid, WhenMade: "2020_2025", Type: TypePhysical, Images: []string{img}}, ""},
		{"quoted image path", Input{CategoryQuery: "plate", Images: []string{` "` + img + `" `}}, ""},
		{"empty category", Input{CategoryQuery: "  "}, "category_query must not be empty"},
		{"bad who made", Input{CategoryQuery: "plate", WhoMade: "i_dd"}, `did you mean "i_did"`},
		{"bad type", Input{CategoryQuery: "plate", Type: "digital"}, `unknown type "digital"`},
		{"missing image", Input{CategoryQuery: "plate", Images: []string{filepath.Join(dir, "nope.jpg")}}, "nope.jpg"},
		{"image is dir", Input{CategoryQuery: "plate", Images: []string{dir}}, "is a directory"},
		{"negative quantity", Input{CategoryQuery: "plate", Quantity: &negative}, "quantity must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImagePaths(t *testing.T) {
	in := Input{Images: []string{" a.jpg", `'b.jpg'`, "", `  "c d.png" `}}
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c d.png"}, in.ImagePaths())
}

func TestWhatIsItLabel(t *testing.T) {
	assert.Equal(t, "A finished product", Input{}.WhatIsItLabel())
	assert.Equal(t, "A supply or tool to make things", Input{IsSupply: true}.WhatIsItLabel())
}

func TestLoadAndWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "product.yaml")
	content := `category_query: plate
title: Ceramic Plate
who_made: i_did
when_made: 2020_2025
is_supply: false
images:
  - a.jpg
description: desc
tags: [ceramic, plate]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	in, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plate", in.CategoryQuery)
	assert.Equal(t, WhoMadeIDid, in.WhoMade)
	assert.Equal(t, "2020_2025", in.WhenMade)
	assert.Equal(t, []string{"ceramic", "plate"}, in.Tags)

	out := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, WriteFile(out, in))
	again, err := LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, in, again)
}
