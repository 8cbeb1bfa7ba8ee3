// Package utils 通用小工具，不依赖 internal
package utils

import "time"

// CoalesceString 返回第一个非空字符串
func CoalesceString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// DefaultInt 若 v 为 0 则返回 defaultVal
func DefaultInt(v, defaultVal int) int {
	if v == 0 {
		return defaultVal
	}
	return v
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
