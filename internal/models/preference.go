// internal/models/preference.go
package models

// ThemeKey 主题在存储中的固定键
const ThemeKey = "ravlo-theme"

// Theme 界面主题
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid 检查主题取值
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Toggle 返回另一个主题
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
