package text

import "strings"

// IsTaskComplete reports whether assistant text reads like a completion
// notice. It is a lexical heuristic over English and Chinese phrasing and
// gives false positives on text such as "not done yet".
func IsTaskComplete(reply string) bool {
	if strings.TrimSpace(reply) == "" {
		return false
	}

	s := strings.ToLower(reply)
	has := func(sub string) bool { return strings.Contains(s, sub) }

	return has("已完成") ||
		(has("完成") && (has("任务") || has("工作"))) ||
		has("finished") ||
		(has("complete") && (has("task") || has("work"))) ||
		has("任务结束") ||
		has("done")
}
