package port

import "context"

// ReleaseFunc 释放在途保护，可重复调用
type ReleaseFunc func(ctx context.Context)

// MutationGuard 保证同一配送请求同一时刻只有一个变更在执行。
// 已有变更在途时立即返回 domain.ErrMutationInFlight，不排队等待。
type MutationGuard interface {
	Acquire(ctx context.Context, requestID string) (ReleaseFunc, error)
}
