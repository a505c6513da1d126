package client

import (
	"context"
	"errors"
	"time"

	"assessync/internal/app/client/events"
	"assessync/internal/app/client/network"
	"assessync/internal/app/client/outbox"
	"assessync/internal/app/client/reconcile"
	"assessync/internal/app/client/store"
)

// SyncReport итог полного прохода синхронизации.
type SyncReport struct {
	StartTime time.Time
	EndTime   time.Time
	Drain     outbox.DrainResult
	Reconcile *reconcile.Result
}

// Summary счётчики для событий и вывода.
func (r *SyncReport) Summary() *events.Summary {
	s := &events.Summary{
		Drained:   r.Drain.Succeeded,
		Failed:    r.Drain.Failed,
		Remaining: r.Drain.Remaining,
	}
	if r.Reconcile != nil {
		s.Added, s.Updated, s.Deleted = r.Reconcile.Totals()
	}
	return s
}

func (a *App) beginSync() bool {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	if a.isSyncing {
		return false
	}
	a.isSyncing = true
	return true
}

func (a *App) endSync() {
	a.syncMu.Lock()
	a.isSyncing = false
	a.syncMu.Unlock()
}

// IsSyncing сообщает, идёт ли полный проход синхронизации.
func (a *App) IsSyncing() bool {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	return a.isSyncing
}

// Sync отправляет очередь и затем сверяет данные с сервером.
func (a *App) Sync(ctx context.Context) (*SyncReport, error) {
	if !a.beginSync() {
		return nil, reconcile.ErrAlreadySyncing
	}
	defer a.endSync()

	report := &SyncReport{StartTime: a.now()}
	a.log.Info("Начало синхронизации", "start_time", report.StartTime)

	drained, err := a.drain(ctx)
	report.Drain = drained
	if err != nil {
		return a.failSync(report, err)
	}

	res, err := a.reconciler.Run(ctx)
	report.Reconcile = res
	if err != nil {
		return a.failSync(report, err)
	}

	report.EndTime = a.now()
	a.bus.Publish(events.Event{Type: events.TypeSyncComplete, At: report.EndTime, Summary: report.Summary()})

	if err := res.Err(); err != nil {
		a.log.Warn("Синхронизация завершена с ошибками",
			"duration", report.EndTime.Sub(report.StartTime),
			"error", err,
		)
	} else {
		a.log.Info("Синхронизация успешно завершена",
			"duration", report.EndTime.Sub(report.StartTime),
			"drained", drained.Succeeded,
		)
	}

	return report, nil
}

func (a *App) failSync(report *SyncReport, err error) (*SyncReport, error) {
	report.EndTime = a.now()
	a.log.Error("Ошибка синхронизации", "error", err)
	a.bus.Publish(events.Event{Type: events.TypeSyncError, At: report.EndTime, Summary: report.Summary(), Err: err})
	return report, err
}

// Drain отправляет очередь без сверки.
func (a *App) Drain(ctx context.Context) (outbox.DrainResult, error) {
	res, err := a.drain(ctx)
	if err != nil {
		a.bus.Publish(events.Event{Type: events.TypeSyncError, At: a.now(), Err: err})
	}
	return res, err
}

func (a *App) drain(ctx context.Context) (outbox.DrainResult, error) {
	res, err := a.outbox.Drain(ctx, a.gateway)
	if err != nil {
		return res, err
	}

	for _, ex := range res.Exhausted {
		if err := a.gateway.MarkFailed(ctx, ex.Item.EntityType, ex.Item.EntityID); err != nil {
			a.log.Error("Ошибка пометки записи", "type", ex.Item.EntityType, "id", ex.Item.EntityID, "error", err)
		}
		a.bus.Publish(events.Event{Type: events.TypeSyncError, At: a.now(), Err: ex})
	}

	if err := a.saveDrainState(ctx, res); err != nil {
		a.log.Error("Ошибка сохранения состояния синхронизации", "error", err)
	}
	return res, nil
}

func (a *App) saveDrainState(ctx context.Context, res outbox.DrainResult) error {
	state, err := store.LoadState[store.SyncState](ctx, a.store, store.KeySyncStatus)
	if err != nil {
		return err
	}
	now := a.now()
	state.LastDrain = &now
	state.PendingItems = res.Remaining
	return store.SaveState(ctx, a.store, store.KeySyncStatus, state)
}

// loop реагирует на смену сети и таймер синхронизации. Переход в online
// сразу отправляет очередь, а сверка выполняется после паузы, чтобы
// соединение успело стабилизироваться.
func (a *App) loop(ctx context.Context, transitions <-chan network.Transition, online bool) {
	if online {
		a.syncIfIdle(ctx)
	}

	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()

	var settle *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Синхронизация остановлена")
			return

		case tr, ok := <-transitions:
			if !ok {
				return
			}
			if !tr.Online {
				a.bus.Publish(events.Event{Type: events.TypeOffline, At: tr.At})
				if settle != nil {
					settle.Stop()
					settleC = nil
				}
				continue
			}

			a.bus.Publish(events.Event{Type: events.TypeOnline, At: tr.At})
			if _, err := a.Drain(ctx); err != nil && !errors.Is(err, outbox.ErrDraining) {
				a.log.Error("Ошибка отправки очереди", "error", err)
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(a.config.SettleDelay)
			settleC = settle.C

		case <-settleC:
			settleC = nil
			if a.monitor.IsOnline() {
				a.syncIfIdle(ctx)
			}

		case <-ticker.C:
			if a.monitor.IsOnline() && !a.IsSyncing() {
				a.syncIfIdle(ctx)
			}
		}
	}
}

func (a *App) syncIfIdle(ctx context.Context) {
	_, err := a.Sync(ctx)
	switch {
	case err == nil, errors.Is(err, reconcile.ErrAlreadySyncing), errors.Is(err, outbox.ErrDraining):
	case ctx.Err() != nil:
	default:
		a.log.Error("Ошибка синхронизации", "error", err)
	}
}
