package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/janhq/gallery-api/internal/domain/archive"
)

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Road Trip", `attachment; filename="Road Trip_Album.zip"`},
		{"Été à Paris", `attachment; filename="_t_ _ Paris_Album.zip"; filename*=UTF-8''%C3%89t%C3%A9%20%C3%A0%20Paris_Album.zip`},
		{`say "hi"`, `attachment; filename="say _hi__Album.zip"; filename*=UTF-8''say%20%22hi%22_Album.zip`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contentDisposition(archive.ArchiveFileName(tt.title)), tt.title)
	}
}
