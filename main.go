package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"school_exam_client/internal/app"
	"school_exam_client/internal/config"
	"school_exam_client/internal/mockapi"
	"school_exam_client/pkg/configwatcher"
	"school_exam_client/pkg/logger"
	"school_exam_client/pkg/monitoring"
	"school_exam_client/pkg/tracing"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "configs", "配置文件目录")
	setID := flag.String("set", "", "题组ID（开始或继续作答）")
	reviewID := flag.String("review", "", "回顾指定的已提交作答")
	practice := flag.Bool("practice", false, "练习模式（允许查看答案）")
	mockAPI := flag.Bool("mock-api", false, "启动本地假考试平台（离线开发用）")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Practice = *practice

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("exam-client", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer tp.Shutdown(context.Background())
	}

	// 假平台模式：只起服务端夹具，不进作答流程
	if *mockAPI {
		logger.InitLogger(cfg.Server.Mode)
		defer logger.Log.Sync()
		srv := mockapi.NewServer(cfg)
		log.Printf("Mock exam platform running on port %s", cfg.MockAPI.Port)
		if err := srv.Run(cfg.MockAPI.Port); err != nil {
			log.Fatalf("mock api: %v", err)
		}
		return
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer application.Close()

	// 配置热更新：运行中换令牌、调日志级别
	go configwatcher.WatchConfig(filepath.Join(*configPath, "config.yaml"), application.ApplyConfig)

	ctx := context.Background()

	switch {
	case *reviewID != "":
		if err := application.RunReview(ctx, *reviewID); err != nil {
			logger.Log.Error("review failed", zap.Error(err))
			log.Fatalf("回顾失败: %v", err)
		}
	case *setID != "":
		if err := application.RunExam(ctx, *setID); err != nil {
			logger.Log.Error("exam session failed", zap.Error(err))
			log.Fatalf("作答失败: %v", err)
		}
	default:
		log.Println("用法: -set <题组ID> 开始作答，或 -review <作答ID> 回顾，或 -mock-api 启动本地假平台")
	}
}
