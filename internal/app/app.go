package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"school_exam_client/internal/client"
	"school_exam_client/internal/config"
	"school_exam_client/internal/model"
	"school_exam_client/internal/repository"
	"school_exam_client/internal/session"
	"school_exam_client/internal/util"
	"school_exam_client/pkg/database"
	"school_exam_client/pkg/logger"
)

// App 客户端应用：拼装配置、本地库、远端客户端，并驱动终端作答流程
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Client    *client.AttemptClient
	Records   *repository.SessionRecordRepository
	namespace string

	in  *bufio.Scanner
	out *os.File
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg.Server.Mode)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg.DatabasePath())
	if err != nil {
		logger.Log.Error("Failed to initialize local database", zap.Error(err))
		return nil, err
	}

	a := &App{
		Config:  cfg,
		DB:      db,
		Client:  client.NewAttemptClient(cfg),
		Records: repository.NewSessionRecordRepository(db),
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
	}
	a.namespace = a.deriveNamespace(cfg)
	return a, nil
}

// deriveNamespace 从令牌里解出租户和学生标识；解不出就落到匿名命名空间
func (a *App) deriveNamespace(cfg *config.Config) string {
	claims, err := util.ParseClaimsUnverified(cfg.API.Token)
	if err != nil || claims == nil {
		logger.Log.Warn("cannot derive namespace from token, using anonymous", zap.Error(err))
		return session.Namespace(cfg.Session.NamespacePrefix, "", 0)
	}
	return session.Namespace(cfg.Session.NamespacePrefix, claims.TenantID, claims.UserID)
}

// ApplyConfig 配置热更新回调：调日志级别、换令牌
func (a *App) ApplyConfig(cfg *config.Config) {
	logger.SetMode(cfg.Server.Mode)
	a.Client.SetToken(cfg.API.Token)
	logger.Log.Info("configuration reloaded")
}

func (a *App) Close() {
	if logger.Log != nil {
		logger.Log.Sync()
	}
}

func (a *App) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// RunExam 进入一套题组的作答流程，直到提交或退出
func (a *App) RunExam(ctx context.Context, questionSetID string) error {
	ctrl := session.NewController(a.Client, a.Records, a.namespace, questionSetID, a.Config.Practice)

	resumed, err := ctrl.Begin(ctx)
	if err != nil {
		return err
	}

	attempt := ctrl.Attempt()
	if resumed {
		a.printf("检测到未完成的作答，已为你恢复进度。\n")
	}
	a.printf("开始作答：共 %d 题", ctrl.Store().Len())
	if left, ok := ctrl.Remaining(time.Now()); ok {
		a.printf("，剩余时间 %s", left.Round(time.Second))
	}
	a.printf("\n输入 help 查看命令。\n\n")

	a.renderCurrent(ctrl)

	for ctrl.Phase() != session.PhaseDone {
		a.printf("> ")
		if !a.in.Scan() {
			a.printf("\n")
			a.exitWithFlush(ctx, ctrl)
			return nil
		}
		line := strings.TrimSpace(a.in.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		switch cmd {
		case "help", "h":
			a.printHelp()
		case "ans", "a":
			if len(fields) < 2 {
				a.printf("用法: ans <答案>\n")
				continue
			}
			value := strings.Join(fields[1:], " ")
			if err := ctrl.Answer(value); err != nil {
				a.printf("无法作答: %v\n", err)
				continue
			}
			if q, ok := ctrl.Store().Current(); ok {
				if stored, _ := ctrl.Store().Answer(q.ID); stored != value {
					// 已看过答案的题会被静默忽略
					a.printf("该题已查看答案，不能再修改。\n")
					continue
				}
			}
			a.printf("已记录。\n")
		case "next", "n":
			ctrl.Next()
			a.renderCurrent(ctrl)
		case "prev", "p":
			ctrl.Prev()
			a.renderCurrent(ctrl)
		case "jump", "j":
			if len(fields) < 2 {
				a.printf("用法: jump <题号>\n")
				continue
			}
			num, err := strconv.Atoi(fields[1])
			if err != nil {
				a.printf("题号必须是数字\n")
				continue
			}
			ctrl.Jump(num - 1)
			a.renderCurrent(ctrl)
		case "reveal", "r":
			ans, err := ctrl.Reveal(ctx)
			if err != nil {
				// 看答案失败要明确告诉学生，可以重试
				a.printf("获取答案失败: %v\n", err)
				continue
			}
			a.renderReveal(ans)
		case "submit":
			if err := ctrl.Submit(ctx); err != nil {
				a.printf("提交失败: %v（可重试 submit）\n", err)
				continue
			}
			a.printf("已提交。正在获取结果……\n")
			completed, err := ctrl.Review(ctx, attempt.ID)
			if err != nil {
				a.printf("获取回顾数据失败: %v\n", err)
				return nil
			}
			a.renderReview(completed)
		case "quit", "q", "exit":
			a.exitWithFlush(ctx, ctrl)
			return nil
		default:
			a.printf("未知命令 %q，输入 help 查看命令。\n", cmd)
		}
	}
	return nil
}

// exitWithFlush 退出前尽力把未保存的答案冲掉，保存不上就说实话
func (a *App) exitWithFlush(ctx context.Context, ctrl *session.Controller) {
	if err := ctrl.Flush(ctx); err != nil {
		a.printf("已退出，但有答案未能保存: %v（下次作答前请检查网络）\n", err)
		return
	}
	a.printf("已退出，进度已保存，可稍后继续。\n")
}

func (a *App) printHelp() {
	a.printf(`命令：
  ans <答案>   记录当前题答案（多选用逗号分隔，如 A,C）
  next / prev  下一题 / 上一题
  jump <题号>  跳到指定题
  reveal       查看当前题答案（仅练习模式；此后该题不可再改）
  submit       提交整卷
  quit         退出（进度已保存，可稍后继续）
`)
}

func (a *App) renderCurrent(ctrl *session.Controller) {
	store := ctrl.Store()
	q, ok := store.Current()
	if !ok {
		return
	}
	a.printf("\n[%d/%d] %s\n", store.Index()+1, store.Len(), q.Content)
	if q.HasOptions() {
		keys := make([]string, 0, len(q.Options))
		for k := range q.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			a.printf("  %s. %s\n", k, q.Options[k])
		}
	}
	if ans, ok := store.Get(q.ID); ok {
		if ans.Value != "" {
			a.printf("当前答案: %s\n", ans.Value)
		}
		if ans.Revealed {
			// 已判定过的题直接展示本地结果
			a.renderReveal(&ans)
		}
	}
}

func (a *App) renderReveal(ans *model.Answer) {
	if ans == nil || ans.IsCorrect == nil {
		return
	}
	if *ans.IsCorrect {
		a.printf("✓ 回答正确\n")
	} else {
		a.printf("✗ 回答错误，正确答案: %s\n", ans.CorrectAnswer)
	}
}

// RunReview 回顾一次已提交的作答
func (a *App) RunReview(ctx context.Context, attemptID string) error {
	ctrl := session.NewController(a.Client, a.Records, a.namespace, "", false)
	completed, err := ctrl.Review(ctx, attemptID)
	if err != nil {
		// 数据拿不到就没法渲染回顾页，报错后直接退出
		return err
	}
	a.renderReview(completed)
	return nil
}

func (a *App) renderReview(completed *model.CompletedAttempt) {
	byQuestion := make(map[string]*model.Answer, len(completed.Answers))
	for i := range completed.Answers {
		byQuestion[completed.Answers[i].QuestionID] = &completed.Answers[i]
	}

	correct := 0
	a.printf("\n===== 作答回顾 =====\n")
	for i := range completed.Questions {
		q := &completed.Questions[i]
		a.printf("\n%d. %s\n", i+1, q.Content)
		ans := byQuestion[q.ID]
		if ans == nil || ans.Value == "" {
			a.printf("   未作答")
		} else {
			a.printf("   你的答案: %s", ans.Value)
		}
		if ans != nil && ans.IsCorrect != nil && *ans.IsCorrect {
			correct++
			a.printf("  ✓\n")
		} else {
			a.printf("  ✗  正确答案: %s\n", q.CorrectAnswer)
		}
	}
	a.printf("\n共 %d 题，答对 %d 题。\n", len(completed.Questions), correct)
}
