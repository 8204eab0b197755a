// Package xrun 网关进程的生命周期管理。
//
// 守护进程同时运行接收面 HTTP 服务、出站 worker 池、同步调度器
// 与审计清理循环；xrun 基于 errgroup + context 把它们编成一个
// Group：任一服务出错或收到退出信号时，其余服务统一收到取消并
// 优雅收尾。
//
// 典型用法：
//
//	err := xrun.Run(ctx,
//		xrun.HTTPServer(srv, 10*time.Second),
//		func(ctx context.Context) error { return orch.Run(ctx, workers) },
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//		// 信号退出，正常收尾
//	}
package xrun
