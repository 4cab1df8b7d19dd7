package profile

import (
	"context"
	"strings"
	"unicode"
)

const fallbackName = "Fan"

// DisplayNamer 从上游原始名称得到可用于称呼的名字
type DisplayNamer struct{}

func NewDisplayNamer() *DisplayNamer { return &DisplayNamer{} }

// DisplayName 去掉表情和符号，取第一个词并首字母大写
func (DisplayNamer) DisplayName(_ context.Context, raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' || r == '\'' {
			return r
		}
		return ' '
	}, raw)

	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return fallbackName, nil
	}
	first := []rune(strings.ToLower(fields[0]))
	first[0] = unicode.ToUpper(first[0])
	return string(first), nil
}
