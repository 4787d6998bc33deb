package sqlitestore

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// registry tracks open stores so that one signal registration serves all of
// them, however many queues the process creates.
var registry = struct {
	mu     sync.Mutex
	stores map[*Store]struct{}
	sigCh  chan os.Signal
}{
	stores: make(map[*Store]struct{}),
}

func register(s *Store) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.stores[s] = struct{}{}
	if registry.sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		registry.sigCh = ch
		go watchSignals(ch)
	}
}

func unregister(s *Store) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.stores, s)
	if len(registry.stores) == 0 && registry.sigCh != nil {
		signal.Stop(registry.sigCh)
		close(registry.sigCh)
		registry.sigCh = nil
	}
}

// registeredStores reports how many stores currently share the signal handler.
func registeredStores() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.stores)
}

// watchSignals drains every registered store on the first signal, then
// re-raises it so the process keeps its default termination behaviour.
func watchSignals(ch chan os.Signal) {
	sig, ok := <-ch
	if !ok {
		return
	}

	registry.mu.Lock()
	stores := make([]*Store, 0, len(registry.stores))
	for s := range registry.stores {
		stores = append(stores, s)
	}
	registry.mu.Unlock()

	slog.Default().Info("shutdown signal received, draining job stores",
		slog.String("signal", sig.String()),
		logger.Count(len(stores)))

	var wg sync.WaitGroup
	for _, s := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Close(); err != nil {
				s.logger.Error("failed to close store on signal", logger.Error(err))
			}
		}()
	}
	wg.Wait()

	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(sig)
	}
}
