// Package intent 从自由文本中识别副作用意图并提取参数。
//
// 识别和提取都是尽力而为的文本匹配：不校验邮箱是否合法，也不校验
// team/channel ID 是否真实存在。所有函数都是输入的纯函数。
package intent

import (
	"sort"
	"strings"
)

// Intent 意图
type Intent string

const (
	SendEmail       Intent = "SEND_EMAIL"
	PostChatMessage Intent = "POST_CHAT_MESSAGE"
)

// triggers 每个意图的触发短语（小写）
var triggers = map[Intent][]string{
	SendEmail:       {"send email", "send an email"},
	PostChatMessage: {"send teams", "post to team", "send to team"},
}

// Set 意图集合，无顺序
type Set map[Intent]struct{}

// Has 判断是否包含意图
func (s Set) Has(i Intent) bool {
	_, ok := s[i]
	return ok
}

// Len 集合大小
func (s Set) Len() int { return len(s) }

// List 按名称排序返回
func (s Set) List() []Intent {
	out := make([]Intent, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Classify 识别提示词中的意图，大小写不敏感，没有命中时返回空集合
func Classify(prompt string) Set {
	text := strings.ToLower(prompt)
	set := make(Set)
	for in, phrases := range triggers {
		for _, p := range phrases {
			if strings.Contains(text, p) {
				set[in] = struct{}{}
				break
			}
		}
	}
	return set
}
