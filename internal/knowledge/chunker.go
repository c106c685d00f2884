package knowledge

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunk 表示分块后的文本单元
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Index    int
	Offset   int // 在源文本中的rune偏移，仅用于溯源
}

// 分块时优先尝试的断点，按顺序：段落、换行、句子、空格
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker 文本分块器
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器，保证 0 <= overlap < chunkSize
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// Split 将文本切分为多个chunk，窗口步进为 chunkSize-overlap，
// 窗口末端在回看范围内优先落到段落/句子边界，整段超长时按rune硬切。
// 相同输入产生相同输出。
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk

	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.adjustBoundary(runes, start, end)
		}

		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{
				Text:   window,
				Index:  len(chunks),
				Offset: start,
			})
		}

		if end == len(runes) {
			break
		}

		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// SplitDocument 切分并补全溯源元数据，ID由来源与序号确定，重建时保持稳定
func (c *Chunker) SplitDocument(text, source string) []Chunk {
	chunks := c.Split(text)
	for i := range chunks {
		chunks[i].ID = chunkID(source, chunks[i].Index)
		chunks[i].Metadata = map[string]interface{}{
			"source": source,
		}
	}
	return chunks
}

// adjustBoundary 在 [lookbackStart, end] 范围内寻找最靠后的自然断点
func (c *Chunker) adjustBoundary(runes []rune, start, end int) int {
	lookback := c.chunkOverlap
	if lookback == 0 || lookback > c.chunkSize/2 {
		lookback = c.chunkSize / 5
	}
	lo := end - lookback
	if lo <= start {
		return end
	}

	for _, sep := range separators {
		sepRunes := []rune(sep)
		if idx := lastIndexRunes(runes, sepRunes, lo, end); idx >= 0 {
			// 断点落在分隔符之后，保持分隔符归属前一个chunk
			return idx + len(sepRunes)
		}
	}

	// 语义单元超过chunkSize，按rune硬切
	return end
}

// lastIndexRunes 在 runes[lo:hi] 内查找seq最后一次出现的位置（要求整个seq落在范围内）
func lastIndexRunes(runes, seq []rune, lo, hi int) int {
	if len(seq) == 0 || hi-lo < len(seq) {
		return -1
	}
	for i := hi - len(seq); i >= lo; i-- {
		match := true
		for j := range seq {
			if runes[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func chunkID(source string, index int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d", source, index)))
	return hex.EncodeToString(sum[:])
}
