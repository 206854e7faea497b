package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opsinsight/opsinsight-go/internal/metrics"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"go.uber.org/zap"
)

// Notifier 接收派发状态变化，可为 nil
type Notifier func(status model.DispatchStatus)

// Dispatcher 后台派发器。
// 动作在响应写出之后登记，每个动作独立 goroutine 执行，调用方不等待；
// 失败只记录日志、状态和指标，不重试。
type Dispatcher struct {
	email   EmailSender
	chat    ChatPoster
	store   StatusStore
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher 创建派发器
func NewDispatcher(email EmailSender, chat ChatPoster, store StatusStore, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		email:   email,
		chat:    chat,
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// Dispatch 立即返回，状态写入也在后台进行，动作 ID 在构造时已确定。
// 动作运行在脱离请求取消的 context 上，请求结束不会中断派发。
func (d *Dispatcher) Dispatch(ctx context.Context, actions []model.DispatchAction, notify Notifier) {
	base := context.WithoutCancel(ctx)
	for _, action := range actions {
		d.wg.Add(1)
		go d.run(base, action, notify)
	}
}

// Wait 等待所有在途动作结束
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown 等待在途动作，超过 ctx 期限则返回错误
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待派发任务超时: %w", ctx.Err())
	}
}

func (d *Dispatcher) run(base context.Context, action model.DispatchAction, notify Notifier) {
	defer d.wg.Done()

	d.record(base, action, model.StateQueued, nil, notify)

	kind := string(action.Kind)
	metrics.DispatchActive.WithLabelValues(kind).Inc()
	defer metrics.DispatchActive.WithLabelValues(kind).Dec()

	ctx := base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, d.timeout)
		defer cancel()
	}

	d.record(base, action, model.StateRunning, nil, notify)

	start := time.Now()
	err := d.execute(ctx, action)
	metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DispatchTotal.WithLabelValues(kind, "failed").Inc()
		d.logger.Error("后台派发失败",
			zap.String("dispatchId", action.ID),
			zap.String("kind", kind),
			zap.Error(err))
		d.record(base, action, model.StateFailed, err, notify)
		return
	}

	metrics.DispatchTotal.WithLabelValues(kind, "succeeded").Inc()
	d.logger.Info("后台派发成功",
		zap.String("dispatchId", action.ID),
		zap.String("kind", kind),
		zap.Duration("elapsed", time.Since(start)))
	d.record(base, action, model.StateSucceeded, nil, notify)
}

func (d *Dispatcher) execute(ctx context.Context, action model.DispatchAction) error {
	switch action.Kind {
	case model.ActionEmail:
		if d.email == nil || action.Email == nil {
			return errors.New("email transport unavailable")
		}
		return d.email.SendEmail(ctx, action.Email.To, action.Email.Subject, action.Email.Body)
	case model.ActionChat:
		if d.chat == nil || action.Chat == nil {
			return errors.New("chat transport unavailable")
		}
		return d.chat.PostChannelMessage(ctx, action.Chat.TeamID, action.Chat.ChannelID, action.Chat.Content)
	default:
		return fmt.Errorf("unknown action kind: %s", action.Kind)
	}
}

func (d *Dispatcher) record(ctx context.Context, action model.DispatchAction, state model.DispatchState, err error, notify Notifier) {
	status := model.DispatchStatus{
		ID:        action.ID,
		Kind:      action.Kind,
		State:     state,
		UpdatedAt: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}

	if d.store != nil {
		if serr := d.store.Save(ctx, status); serr != nil {
			d.logger.Warn("保存派发状态失败",
				zap.String("dispatchId", action.ID),
				zap.Error(serr))
		}
	}

	if notify != nil {
		notify(status)
	}
}
