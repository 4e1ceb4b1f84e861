package agents

import (
	"strings"
)

// ParseSections 将大模型的自由文本响应解析为阶段字段结构
// 按标题行匹配切分章节，未匹配到的字段以空字符串占位
// 这是一个脆弱边界，集中在此处以便将来替换为结构化输出
func ParseSections(text, stage string, fields []string) (StageResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, NewParseError(stage, "empty response")
	}

	result := make(StageResult, len(fields))
	for _, field := range fields {
		result[field] = ""
	}

	// 单字段阶段直接整体归入该字段
	if len(fields) == 1 {
		result[fields[0]] = trimmed
		return result, nil
	}

	lines := strings.Split(trimmed, "\n")
	current := ""
	var buf strings.Builder
	matched := false

	flush := func() {
		if current != "" {
			result[current] = strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}

	for _, line := range lines {
		field, ok := matchHeading(line, fields)
		if ok {
			flush()
			current = field
			matched = true
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()

	// 完全没有匹配到标题时，整体文本归入首个字段
	if !matched {
		result[fields[0]] = trimmed
	}

	return result, nil
}

// matchHeading 判断一行是否为某个字段的标题行
func matchHeading(line string, fields []string) (string, bool) {
	normalized := normalizeHeading(line)
	if normalized == "" {
		return "", false
	}

	for _, field := range fields {
		if normalized == field || normalized == strings.ReplaceAll(field, "_", " ") {
			return field, true
		}
	}
	return "", false
}

// normalizeHeading 剥离标题行的修饰符号并统一为小写
// 处理markdown标题、列表序号、加粗和冒号等常见形式
func normalizeHeading(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || len(s) > 80 {
		return ""
	}

	s = strings.TrimLeft(s, "#*-• \t")
	s = strings.TrimSpace(s)

	// 剥离 "1." / "2)" 之类的序号前缀
	for len(s) > 0 && s[0] >= '0' && s[0] <= '9' {
		s = s[1:]
	}
	s = strings.TrimLeft(s, ".) \t")

	s = strings.TrimSuffix(s, "**")
	s = strings.TrimPrefix(s, "**")
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")

	return strings.ToLower(strings.TrimSpace(s))
}
