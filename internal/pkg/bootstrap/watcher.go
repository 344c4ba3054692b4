// internal/pkg/bootstrap/watcher.go
package bootstrap

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"agrinexus/internal/pkg/logger"
)

// WatchConfig 监听配置文件变化并热更新 GetCurrentConfig()。
// 监听的是所在目录而不是文件本身：很多编辑器和 ConfigMap 都是通过 rename 替换文件的。
// 阻塞直到 ctx 取消。新配置校验失败时保留旧配置。
func WatchConfig(ctx context.Context, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(abs)
			if err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("path", abs).Msg("config reload rejected, keeping previous config")
				continue
			}
			SetCurrentConfig(cfg)
			logger.Ctx(ctx).Info().Str("path", abs).Msg("config reloaded")
			if onReload != nil {
				onReload(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Ctx(ctx).Warn().Err(err).Msg("config watcher error")
		}
	}
}
