package services

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/aihub/docqa-go/internal/knowledge"
)

// DefaultInstruction 反幻觉系统指令：只允许基于上下文作答，
// 上下文没有答案时必须明确声明
const DefaultInstruction = `You are a document assistant. Answer questions accurately using ONLY the provided context.

STRICT RULES:
1. ONLY use information from the CONTEXT below to answer.
2. If the answer is NOT in the context, reply exactly: "I cannot find this information in the provided documents."
3. Do NOT make up facts, dates, or numbers.
4. Quote the relevant section when possible.
5. Keep answers concise and professional.
6. If the context is partially relevant, say what you CAN confirm and what you CANNOT.`

// 槽位顺序固定：instruction、history、context、question
const promptTemplate = `{{.Instruction}}

{{if .History}}CONVERSATION HISTORY:
{{.History}}

{{end}}CONTEXT:
{{.Context}}

QUESTION: {{.Question}}`

type promptSlots struct {
	Instruction string
	History     string
	Context     string
	Question    string
}

// PromptBuilder 提示词构造器，相同输入产生相同提示词
type PromptBuilder struct {
	tmpl        *template.Template
	instruction string
}

// NewPromptBuilder 创建构造器，instruction为空时使用默认反幻觉指令
func NewPromptBuilder(instruction string) *PromptBuilder {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	return &PromptBuilder{
		tmpl:        template.Must(template.New("prompt").Parse(promptTemplate)),
		instruction: instruction,
	}
}

// Build 组装完整提示词：指令、按时间顺序的历史、带来源标注的上下文、当前问题
func (b *PromptBuilder) Build(history []Turn, chunks []knowledge.Chunk, question string) (string, error) {
	slots := promptSlots{
		Instruction: b.instruction,
		History:     formatHistory(history),
		Context:     formatChunks(chunks),
		Question:    question,
	}

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, slots); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	return sb.String(), nil
}

// formatChunks 拼接检索到的chunk，标注来源并用分隔线隔开
func formatChunks(chunks []knowledge.Chunk) string {
	if len(chunks) == 0 {
		return "(no context retrieved)"
	}

	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		source := "Unknown"
		if c.Metadata != nil {
			if v, ok := c.Metadata["source"].(string); ok && v != "" {
				source = v
			}
		}
		parts = append(parts, fmt.Sprintf("[Source %d: %s, Chunk %d]\n%s", i+1, source, c.Index+1, strings.TrimSpace(c.Text)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func formatHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}

	parts := make([]string, 0, len(history))
	for _, t := range history {
		parts = append(parts, fmt.Sprintf("User: %s\nAssistant: %s", t.Question, t.Answer))
	}
	return strings.Join(parts, "\n")
}
