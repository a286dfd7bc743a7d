package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/logging"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/store"
)

func main() {
	session := flag.String("session", "", "会话 ID，配合持久化存储可继续之前的对话，留空则自动生成")
	timeout := flag.Duration("timeout", 60*time.Second, "单次请求超时时间")
	logLevel := flag.String("log-level", "warn", "日志级别")
	flag.Parse()

	logging.SetupWriter(os.Stderr, *logLevel, "console")

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("无法加载 .env，改用系统环境变量")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *session, *timeout, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("chatrepl 退出")
		stop()
		os.Exit(1)
	}
}

// run 组装会话并运行输入循环，返回前关闭存储
func run(ctx context.Context, sessionID string, timeout time.Duration, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	archive, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("存储打开失败: %w", err)
	}
	if archive != nil {
		defer func() {
			if err := archive.Close(); err != nil {
				log.Warn().Err(err).Msg("存储关闭失败")
			}
		}()
	}

	connector, err := ai.NewConnector(cfg.AI)
	if err != nil {
		return fmt.Errorf("模型连接器创建失败: %w", err)
	}

	var opts []chatservice.RegistryOption
	if archive != nil {
		opts = append(opts, chatservice.WithArchive(archive))
	}
	registry := chatservice.NewRegistry(connector, ai.SessionConfig(cfg.AI, cfg.Chat), opts...)

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return repl(ctx, registry.Get(ctx, sessionID), in, out, timeout)
}

// repl 打印已有记录，然后逐行提交输入直到 EOF
func repl(ctx context.Context, m *chatservice.Manager, in io.Reader, out io.Writer, timeout time.Duration) error {
	view := m.Snapshot()
	for _, turn := range view.Turns {
		fmt.Fprintf(out, "%s> %s\n", turn.Role, turn.Text)
	}
	for _, warning := range view.Warnings {
		fmt.Fprintf(out, "! %s\n", warning)
	}
	fmt.Fprintf(out, "session %s, empty line to skip, Ctrl-D to quit\n", m.ID())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "user> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := m.Submit(reqCtx, text)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "! %s\n", chatservice.Notice(err))
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		fmt.Fprintf(out, "assistant> %s\n", chatservice.FormatReply(reply))
	}
}
