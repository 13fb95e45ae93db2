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
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/internal/server"
	"github.com/DCGM/semant-demo/orchestrator"
	"github.com/DCGM/semant-demo/workflow"
)

// =============================================================================
// 💬 chat 命令
// =============================================================================

const chatHelp = `Commands: /visualize  /sources  /eval  /quit`

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := configFlag(fs)
	verbose := fs.Bool("verbose", false, "Write info logs to stderr")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// 日志不能与对话输出混在一起
	cfg.Log.OutputPaths = []string{"stderr"}
	cfg.Log.Format = "console"
	if !*verbose {
		cfg.Log.Level = "warn"
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	return newChatSession(a.orch, os.Stdout, logger).Run(ctx, os.Stdin)
}

// chatSession 终端对话状态：保存上一次结果供 /sources 与 /eval 查看
type chatSession struct {
	proc   server.Processor
	out    io.Writer
	logger *zap.Logger
	last   *orchestrator.QueryResult
}

func newChatSession(proc server.Processor, out io.Writer, logger *zap.Logger) *chatSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &chatSession{proc: proc, out: out, logger: logger}
}

// Run 逐行读取输入直到 /quit、EOF 或 ctx 结束
func (c *chatSession) Run(ctx context.Context, in io.Reader) error {
	wf := c.proc.Workflow()
	fmt.Fprintf(c.out, "semant-rag chat (workflow %s, source %s)\n%s\n", wf.Name(), wf.Source(), chatHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if c.handle(ctx, scanner.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle 处理一行输入，返回 true 表示退出
func (c *chatSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	switch strings.ToLower(line) {
	case "/quit", "/exit":
		fmt.Fprintln(c.out, "Bye.")
		return true
	case "/visualize":
		fmt.Fprint(c.out, workflow.RenderASCII(c.proc.Workflow()))
		return false
	case "/sources":
		c.printSources()
		return false
	case "/eval":
		c.printEvaluation()
		return false
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
		return false
	}
	if strings.HasPrefix(line, "/") {
		fmt.Fprintf(c.out, "Unknown command %s. %s\n", line, chatHelp)
		return false
	}

	result := c.proc.ProcessQuery(ctx, line)
	c.last = &result
	fmt.Fprintln(c.out, result.Response)
	switch {
	case !result.Success:
		// 终端只显示致歉，原始错误写日志（stderr）
		c.logger.Warn("query failed",
			zap.String("execution_id", result.ExecutionID),
			zap.Error(result.Err))
	case result.Error != "":
		// 阶段降级信息，便于调试
		fmt.Fprintf(c.out, "(error: %s)\n", result.Error)
	}
	return false
}

func (c *chatSession) printSources() {
	if c.last == nil || c.last.RetrievedInformation == nil {
		fmt.Fprintln(c.out, "No sources yet. Ask a question first.")
		return
	}
	docs := c.last.RetrievedInformation.KnowledgeBaseResults
	if len(docs) == 0 {
		fmt.Fprintln(c.out, "The last answer used no knowledge base results.")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(c.out, "[%d] %s (%s, score %.3f)\n    %s\n", d.Rank, d.Source, d.SourceType, d.RelevanceScore, snippet(d.Content, 160))
	}
}

func (c *chatSession) printEvaluation() {
	if c.last == nil || c.last.EvaluationResults == nil {
		fmt.Fprintln(c.out, "No evaluation yet. Ask a question first.")
		return
	}
	ev := c.last.EvaluationResults
	fmt.Fprintf(c.out, "score: %.2f\nneeds correction: %t\ncorrection attempts: %d\n",
		ev.Score, ev.NeedsCorrection, c.last.CorrectionAttempts)
	if c.last.RetrievedInformation != nil {
		fmt.Fprintf(c.out, "retrieval quality: %s\n", c.last.RetrievedInformation.RetrievalQuality)
	}
	if ev.Error != "" {
		fmt.Fprintf(c.out, "error: %s\n", ev.Error)
	}
}

// snippet 截取前 n 个字符并折叠换行
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
