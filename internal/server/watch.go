package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultReloadDebounce = 250 * time.Millisecond

// Watch reloads the registry whenever the user list changes on disk, until
// ctx is done. Bursts of events are coalesced.
func (s *Server) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	userList := s.mgr.Store().UserListPath()
	if err := watcher.Add(filepath.Dir(userList)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(userList), err)
	}
	s.log.Info("watching user list", zap.String("path", userList))

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("user list watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !shouldReloadForPath(event.Name, userList) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(defaultReloadDebounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(defaultReloadDebounce)
		case <-timerChan(timer):
			timer = nil
			if err := s.Reload(); err != nil {
				s.log.Warn("user list reload failed, saving suspended until it is fixed", zap.Error(err))
				continue
			}
			s.log.Info("user list reloaded", zap.String("path", userList))
		}
	}
}

func shouldReloadForPath(path, userList string) bool {
	if path == "" || userList == "" {
		return false
	}
	return filepath.Clean(path) == filepath.Clean(userList)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
