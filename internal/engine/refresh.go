package engine

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

func (a *Accessory) refreshLoop() {
	defer a.wg.Done()

	a.Refresh(a.ctx)

	ticker := time.NewTicker(a.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.Refresh(a.ctx)
		}
	}
}

// refresh fetches a reading and applies it. forceRemote bypasses the local
// advertisement cache.
func (a *Accessory) refresh(ctx context.Context, forceRemote bool) {
	tok, ok := a.mirror.TryBeginRefresh()
	if !ok {
		a.logDebug("refresh skipped", "status", a.mirror.Status().String())
		return
	}
	defer a.mirror.EndRefresh(tok)

	reading, err := a.fetch(ctx, forceRemote)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.fail("refresh", err)
		return
	}
	a.apply(reading)
}

// fetch reads the device through the selected transport. A local device
// whose advertisement cache is empty falls back to the cloud.
func (a *Accessory) fetch(ctx context.Context, forceRemote bool) (device.Reading, error) {
	if !forceRemote && a.transport == device.TransportLocal && a.local != nil {
		ad, err := a.local.LastAdvertisement(a.identity.HardwareAddress())
		if err == nil {
			return ad.Reading(), nil
		}
		a.logDebug("no cached advertisement, using cloud", "error", err)
	}

	opCtx, cancel := a.opContext(ctx)
	defer cancel()

	status, err := a.remote.FetchStatus(opCtx, a.ID())
	if err != nil {
		return device.Reading{}, err
	}
	return status.Reading(), nil
}

func (a *Accessory) scanLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.opts.ScanCycle)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.guard("scan", func() { a.scanCycle(a.ctx) })
		}
	}
}

// scanCycle runs a long discovery pass. On success the state is re-derived
// from the advertisement cache; on failure it is fetched from the cloud.
func (a *Accessory) scanCycle(ctx context.Context) {
	if a.local == nil {
		a.refresh(ctx, true)
		return
	}

	address := a.identity.HardwareAddress()
	a.logInfo("start scan", "address", address, "duration", a.opts.ScanDuration.String())

	_, err := a.local.Scan(ctx, address, a.opts.ScanDuration)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		level := a.logWarn
		if !errors.Is(err, device.ErrNotFound) {
			level = a.logError
		}
		level("scan failed, refreshing from cloud", "address", address, "error", err)
		a.refresh(ctx, true)
		return
	}

	a.logInfo("stop scan", "address", address)
	a.refresh(ctx, false)
}
