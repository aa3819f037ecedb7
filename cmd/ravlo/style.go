// cmd/ravlo/style.go
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// printKV 输出对齐的键值对
func printKV(w io.Writer, title string, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if n := lipgloss.Width(p[0]); n > width {
			width = n
		}
	}

	fmt.Fprintln(w, titleStyle.Render(title))
	for _, p := range pairs {
		label := labelStyle.Render(p[0] + strings.Repeat(" ", width-lipgloss.Width(p[0])))
		fmt.Fprintf(w, "  %s  %s\n", label, valueStyle.Render(p[1]))
	}
}

// printBox 把一段文本放进圆角框
func printBox(w io.Writer, title, body string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, boxStyle.Render(body))
}

// preview 截取第一行的前 n 个字符
func preview(s string, n int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(line)
	if len(r) <= n {
		return line
	}
	return string(r[:n]) + "…"
}
