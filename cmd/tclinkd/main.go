// tclinkd 是 TravelClick 集成网关守护进程。
//
// 进程内运行四个服务：
//
//   - 接收面 HTTP 服务（CRS → PMS 的 SOAP 请求）
//   - 出站工作池（PMS → CRS 的队列消费与发送）
//   - 周期同步调度器（full/delta 扫描）
//   - 审计清理循环（按保留天数清理终态记录）
//
// 存储按部署形态选择：指定 --mongo 时审计与同步聚合落 MongoDB，
// 指定 --redis 时队列、键对栅栏与限流走 Redis；二者均未指定时
// 使用进程内实现，适合单实例与本地联调。
//
// 示例:
//
//	tclinkd --config /etc/tclink/travelclick.yaml
//	tclinkd -c travelclick.yaml --listen :8080 --workers 16 \
//	    --redis localhost:6379 --mongo mongodb://localhost:27017
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "tclinkd",
		Usage:   "TravelClick HTNG 2011B 集成网关",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "配置文件路径（yaml/json）",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "接收面监听地址",
				Value:   ":8080",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "出站工作协程数",
				Value:   8,
			},
			&cli.StringFlag{
				Name:  "redis",
				Usage: "Redis 地址（队列/栅栏/限流）；空使用进程内实现",
			},
			&cli.StringFlag{
				Name:  "mongo",
				Usage: "MongoDB 连接串（审计/同步聚合）；空使用内存存储",
			},
			&cli.StringFlag{
				Name:  "mongo-db",
				Usage: "MongoDB 数据库名",
				Value: "tclink",
			},
			&cli.StringFlag{
				Name:  "wsdl",
				Usage: "对外提供的 WSDL 文件路径",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 (text/json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径（带轮转）；空输出到 stderr",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "优雅关闭等待上限",
				Value: 10 * time.Second,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDaemon(ctx, daemonOptions{
				ConfigPath:      cmd.String("config"),
				Listen:          cmd.String("listen"),
				Workers:         cmd.Int("workers"),
				RedisAddr:       cmd.String("redis"),
				MongoURI:        cmd.String("mongo"),
				MongoDB:         cmd.String("mongo-db"),
				WSDLPath:        cmd.String("wsdl"),
				LogLevel:        cmd.String("log-level"),
				LogFormat:       cmd.String("log-format"),
				LogFile:         cmd.String("log-file"),
				ShutdownTimeout: cmd.Duration("shutdown-timeout"),
			})
		},
	}
}

func run() int {
	app := createApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
