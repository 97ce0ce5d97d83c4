package ui

import "encoding/base64"

// 16x16 monochrome template icon.
var iconBytes = mustDecodeIcon("iVBORw0KGgoAAAANSUhEUgAAABAAAAAQCAYAAAAf8/9hAAAAQElEQVR42mNgoAH4TwBTpBmvIf9JxHg1E2sJVglSvEnQAHxiBA34T4Q4bQ2g2AtkByJZ0UhxQqJKUqZKZiIZAAA9kHuFsz+7egAAAABJRU5ErkJggg==")

func mustDecodeIcon(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
