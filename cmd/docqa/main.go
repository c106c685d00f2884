package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aihub/docqa-go/app/bootstrap"
	"github.com/aihub/docqa-go/internal/config"
	"github.com/aihub/docqa-go/internal/di"
	apperrors "github.com/aihub/docqa-go/internal/errors"
	"github.com/aihub/docqa-go/internal/knowledge"
	"github.com/aihub/docqa-go/internal/services"
)

func main() {
	store := flag.String("store", "", "本地索引文件路径，覆盖配置")
	flag.Parse()

	app, err := bootstrap.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	if *store != "" {
		config.AppConfig.Knowledge.VectorStore.Path = *store
	}

	err = di.Invoke(func(chat *services.ChatService) error {
		return runLoop(context.Background(), chat)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "运行失败: %v\n", err)
		os.Exit(1)
	}
}

func runLoop(ctx context.Context, chat *services.ChatService) error {
	fmt.Println("文档问答（输入 quit 退出，clear 清空对话，sources 查看上次引用）")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastSources []knowledge.Chunk

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			fmt.Println("再见")
			return nil
		case "clear":
			chat.ClearMemory()
			fmt.Println("对话记忆已清空")
			continue
		case "sources":
			printSources(lastSources)
			continue
		}

		answer, err := chat.Ask(ctx, line)
		if err != nil {
			printError(err)
			continue
		}

		lastSources = answer.Sources
		fmt.Println()
		fmt.Println(answer.Text)
		fmt.Printf("\n（基于 %d 个文档片段）\n", answer.NumChunks)
	}
	return scanner.Err()
}

func printSources(sources []knowledge.Chunk) {
	if len(sources) == 0 {
		fmt.Println("暂无引用，先提一个问题")
		return
	}
	for i, c := range sources {
		src, _ := c.Metadata["source"].(string)
		preview := c.Text
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		fmt.Printf("[%d] %s (chunk %d)\n    %s\n", i+1, src, c.Index, preview)
	}
}

// printError 给用户可执行的指引而不是裸错误串
func printError(err error) {
	var appErr *apperrors.AppError
	if !apperrors.As(err, &appErr) {
		fmt.Printf("出错了: %v\n", err)
		return
	}

	fmt.Printf("[%s] %s\n", appErr.Code, appErr.Message)
	if appErr.Retryable && appErr.RetryAfter > 0 {
		fmt.Printf("建议 %s 后重试\n", appErr.RetryAfter)
	}
}
