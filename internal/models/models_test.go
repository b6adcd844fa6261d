package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostPage(t *testing.T) {
	p := &PostPage{Number: 1, Size: 30, Total: 0}
	assert.Equal(t, 1, p.NumPages())
	assert.False(t, p.HasNext())
	assert.False(t, p.HasPrev())

	p = &PostPage{Number: 2, Size: 30, Total: 61}
	assert.Equal(t, 3, p.NumPages())
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrev())
	assert.Equal(t, 1, p.Prev())
	assert.Equal(t, 3, p.Next())

	p.Number = 3
	assert.False(t, p.HasNext())
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 50))
	assert.Equal(t, 100, Offset(3, 50))
	assert.Equal(t, 0, Offset(0, 50))
}

func TestReportTheme(t *testing.T) {
	for _, th := range ReportThemes {
		assert.True(t, th.Valid(), th)
	}
	assert.False(t, ReportTheme("XX").Valid())
	assert.Equal(t, "Spam", ThemeSpam.Label())
	assert.Equal(t, "XX", ReportTheme("XX").Label())
}

func TestMediaSrc(t *testing.T) {
	assert.Equal(t, "/media/post-gallery/a.png", Media{File: "post-gallery/a.png", URL: "http://x"}.Src())
	assert.Equal(t, "http://x/y.jpg", Media{URL: "http://x/y.jpg"}.Src())
}

func TestReactionString(t *testing.T) {
	assert.Equal(t, "none", ReactionNone.String())
	assert.Equal(t, "like", ReactionLike.String())
	assert.Equal(t, "dislike", ReactionDislike.String())
}
