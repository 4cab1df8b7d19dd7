package model

import (
	"bytes"
	"strconv"
)

// FanRef fan id；写入方可能传 JSON 数字或数字字符串
type FanRef int64

func (r *FanRef) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*r = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*r = FanRef(n)
	return nil
}
