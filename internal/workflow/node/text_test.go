package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "第一", TruncateByRunes("第一章", 2))
	assert.Equal(t, "第一章", TruncateByRunes("第一章", 5))
	assert.Equal(t, "", TruncateByRunes("第一章", 0))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "第1章 - 开端 本章简述：起", Preview("第1章 - 开端\n\n本章简述：起", 20))
	assert.Equal(t, "第1章…", Preview("第1章 - 开端", 3))
}
