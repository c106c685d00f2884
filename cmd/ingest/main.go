package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aihub/docqa-go/app/bootstrap"
	"github.com/aihub/docqa-go/internal/config"
	"github.com/aihub/docqa-go/internal/di"
	apperrors "github.com/aihub/docqa-go/internal/errors"
	"github.com/aihub/docqa-go/internal/knowledge"
	"github.com/aihub/docqa-go/internal/logger"
)

func main() {
	var (
		dir   = flag.String("dir", "", "文档目录，默认取配置中的documents_dir")
		store = flag.String("store", "", "本地索引文件路径，覆盖配置")
		force = flag.Bool("force", false, "强制全量重建索引")
	)
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
	docsDir := *dir
	if docsDir == "" {
		docsDir = config.AppConfig.Knowledge.DocumentsDir
	}

	err = di.Invoke(func(cfg *config.Config, index *knowledge.Index, engine *knowledge.SearchEngine) error {
		return runIngest(context.Background(), cfg, index, engine, docsDir, *force)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) {
			fmt.Fprintf(os.Stderr, "构建失败 [%s]: %s\n", appErr.Code, appErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "构建失败: %v\n", err)
		}
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, cfg *config.Config, index *knowledge.Index, engine *knowledge.SearchEngine, docsDir string, force bool) error {
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)

	var chunks []knowledge.Chunk
	var parsed, skipped int

	err := filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !knowledge.SupportedFile(path) {
			return nil
		}

		text, perr := knowledge.ParseFile(path)
		if perr != nil {
			// 单个文件解析失败不中断整体构建
			logger.Warn("跳过无法解析的文件", zap.String("path", path), zap.Error(perr))
			skipped++
			return nil
		}

		rel, rerr := filepath.Rel(docsDir, path)
		if rerr != nil {
			rel = filepath.Base(path)
		}
		chunks = append(chunks, chunker.SplitDocument(text, rel)...)
		parsed++
		return nil
	})
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return apperrors.NewInvalidInput(fmt.Sprintf("目录 %s 下没有可解析的文档", docsDir))
	}

	logger.Info("文档切分完成",
		zap.Int("files", parsed),
		zap.Int("skipped", skipped),
		zap.Int("chunks", len(chunks)))

	if err := index.Build(ctx, chunks, force); err != nil {
		return err
	}

	// 全文索引与向量索引同步重建，ES未启用时为空操作
	if engine.Fulltext().Ready() {
		if err := engine.Fulltext().Reset(ctx); err != nil {
			logger.Warn("重置全文索引失败", zap.Error(err))
		} else {
			for _, c := range chunks {
				if err := engine.Fulltext().IndexChunk(ctx, c); err != nil {
					logger.Warn("全文索引写入失败", zap.String("id", c.ID), zap.Error(err))
				}
			}
		}
	}

	count, err := index.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("索引构建完成: %d 个文件, %d 个chunk\n", parsed, count)
	return nil
}
