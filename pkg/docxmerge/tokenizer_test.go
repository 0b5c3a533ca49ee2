package docxmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMarker(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind MarkerKind
		expr string
	}{
		{"loop start", "{#orders}", LoopStart, "orders"},
		{"loop end", "{/orders}", LoopEnd, "orders"},
		{"if start", "{?flags.showVip}", IfStart, "flags.showVip"},
		{"if end", "{/?flags.showVip}", IfEnd, "flags.showVip"},
		{"pipeline expression kept verbatim", "{#orders|sort:amount:desc|take:2}", LoopStart, "orders|sort:amount:desc|take:2"},
		{"surrounding whitespace tolerated", "  {#items}  ", LoopStart, "items"},
		{"inner whitespace trimmed", "{# items }", LoopStart, "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, ok := ClassifyMarker(tt.text)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, marker.Kind)
			assert.Equal(t, tt.expr, marker.Expression)
		})
	}

	notMarkers := []struct {
		name string
		text string
	}{
		{"plain expression", "{orders}"},
		{"image token", "{%chart}"},
		{"centered image token", "{%%chart}"},
		{"embedded directive", "before {#x} after"},
		{"two directives", "{#x}{/x}"},
		{"no braces", "plain text"},
		{"empty", ""},
	}
	for _, tt := range notMarkers {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ClassifyMarker(tt.text)
			assert.False(t, ok)
		})
	}
}

func TestMarkerCategories(t *testing.T) {
	assert.Equal(t, LoopStart, LoopEnd.category())
	assert.Equal(t, IfStart, IfEnd.category())
	assert.True(t, LoopStart.isStart())
	assert.True(t, IfStart.isStart())
	assert.False(t, LoopEnd.isStart())
	assert.False(t, IfEnd.isStart())
}

func TestParseImageTag(t *testing.T) {
	tag, ok := ParseImageTag("{%chart}")
	assert.True(t, ok)
	assert.Equal(t, "chart", tag.Expression)
	assert.False(t, tag.Centered)

	tag, ok = ParseImageTag("{%%report.logo}")
	assert.True(t, ok)
	assert.Equal(t, "report.logo", tag.Expression)
	assert.True(t, tag.Centered)

	_, ok = ParseImageTag("see {%chart} here")
	assert.False(t, ok)

	_, ok = ParseImageTag("{chart}")
	assert.False(t, ok)
}

func TestIsExpressionDirective(t *testing.T) {
	valid := []string{
		"patient.name",
		"report.items[0].code",
		".",
		"$",
		"$.title",
		"orders|sort:amount:desc|take:2",
		"m|maxby:revenue|get:month|format:date:M月",
		"createdAt|format:date:yyyy-MM-dd",
		"统计",
	}
	for _, expr := range valid {
		t.Run(expr, func(t *testing.T) {
			assert.True(t, isExpressionDirective(expr))
		})
	}

	invalid := []string{
		"foo bar",
		"a b.c",
		"",
		"a|1bad",
		"a|op name",
	}
	for _, expr := range invalid {
		t.Run("invalid "+expr, func(t *testing.T) {
			assert.False(t, isExpressionDirective(expr))
		})
	}
}
