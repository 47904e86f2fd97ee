package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostSummary_ClipsLongText(t *testing.T) {
	p := &Post{PostID: "p1", Text: strings.Repeat("ab", 100)}
	s := p.Summary()
	assert.Equal(t, "p1", s.PostID)
	assert.Len(t, []rune(s.Text), 80)
}

func TestPostSummary_ShortTextUnchanged(t *testing.T) {
	p := &Post{PostID: "p1", Text: "hello"}
	assert.Equal(t, "hello", p.Summary().Text)
}
