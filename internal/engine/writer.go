package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/openapi"
)

func (a *Accessory) writeLoop() {
	defer a.wg.Done()

	timer := time.NewTimer(a.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	var pending <-chan time.Time
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.writeSignal:
			timer.Reset(a.opts.Debounce)
			pending = timer.C
		case <-pending:
			pending = nil
			a.guard("write", func() { a.flush(a.ctx) })
		}
	}
}

// flush reconciles desired and observed state for a bot.
func (a *Accessory) flush(ctx context.Context) {
	bot, ok := a.role.(device.BotRole)
	if !ok {
		return
	}

	result := FlushResult{
		ID:        uuid.New(),
		DeviceID:  a.ID(),
		Transport: a.transport,
	}
	start := time.Now()

	a.mirror.BeginWrite()
	desired, gen := a.mirror.DesiredIntent()
	prev := a.mirror.Observed()
	result.Desired = desired

	if st, known := prev.(device.BotState); known && st.On == desired {
		a.mirror.EndWrite()
		a.logInfo("target state has not changed", "on", desired, "flush_id", result.ID.String())
		a.push(prev, time.Now())
		result.Noop = true
		result.Duration = time.Since(start)
		a.recordFlush(result)
		return
	}

	attempts, err := a.send(ctx, bot, desired, result.ID)
	result.Attempts = attempts
	result.Duration = time.Since(start)

	if err != nil {
		a.mirror.EndWrite()
		result.Err = err
		a.recordFlush(result)
		if ctx.Err() != nil {
			return
		}
		a.logInfo("state failed to be set", "on", desired, "flush_id", result.ID.String())
		a.fail("write", err)
		if prev != nil {
			a.push(prev, time.Now())
		}
		return
	}

	power := desired
	next := bot.Derive(prev, device.Reading{Power: &power})
	now := time.Now()
	a.mirror.SetObserved(next, now)
	if bot.Mode == device.BotModePress && !a.mirror.ResetDesired(gen) {
		// A press requested while this one was in flight is flushed next.
		a.logDebug("press requested during flush", "flush_id", result.ID.String())
	}
	a.mirror.EndWrite()
	a.push(next, now)
	a.recordFlush(result)
	a.logInfo("state has been set", "on", desired, "attempts", attempts, "flush_id", result.ID.String())

	a.refresh(ctx, false)
}

// send delivers the desired state through the selected transport. Scan
// failures on the local path fall back to the cloud.
func (a *Accessory) send(ctx context.Context, bot device.BotRole, desired bool, flushID uuid.UUID) (int, error) {
	if a.transport == device.TransportLocal && a.local != nil {
		attempts, err := a.sendLocal(ctx, bot, desired)
		if err == nil {
			return attempts, nil
		}
		if !isScanError(err) {
			return attempts, device.NewError(device.KindLocal, a.ID(), "actuate", err)
		}
		a.logWarn("local scan failed, sending through cloud", "error", err, "flush_id", flushID.String())
	}

	cmd, err := openapi.BuildBotCommand(bot.Mode, desired)
	if err != nil {
		return 0, device.NewError(device.KindConfig, a.ID(), "send_command", err)
	}

	a.logInfo("sending request to cloud", "command", cmd.Command,
		"parameter", cmd.Parameter, "command_type", cmd.CommandType, "flush_id", flushID.String())

	opCtx, cancel := a.opContext(ctx)
	defer cancel()
	if _, err := a.remote.SendCommand(opCtx, a.ID(), cmd); err != nil {
		return 1, err
	}
	return 1, nil
}

// sendLocal scans for the bot and actuates it with retries. Press mode
// triggers the momentary action, which the radio exposes as turn-on.
func (a *Accessory) sendLocal(ctx context.Context, bot device.BotRole, desired bool) (int, error) {
	address := a.identity.HardwareAddress()

	scanCtx, cancel := a.scanContext(ctx, a.opts.ActuateScan)
	peers, err := a.local.Scan(scanCtx, address, a.opts.ActuateScan)
	cancel()
	if err != nil {
		return 0, err
	}

	on := desired
	if bot.Mode == device.BotModePress {
		on = true
	}
	a.logInfo("bot found, actuating", "address", peers[0].Address(), "on", on)

	policy := RetryPolicy{
		MaxRetries: a.opts.RetryMax,
		Delay:      a.opts.RetryDelay,
		OnRetry: func(attempt int, err error) {
			a.logInfo("retrying actuation", "attempt", attempt, "error", err)
		},
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		opCtx, cancel := a.opContext(ctx)
		defer cancel()
		return a.local.Actuate(opCtx, peers[0], on)
	})
}

func (a *Accessory) recordFlush(r FlushResult) {
	if a.telemetry != nil {
		a.telemetry.FlushCompleted(r)
	}
}

func isScanError(err error) bool {
	return errors.Is(err, device.ErrNotFound) || errors.Is(err, device.ErrRadioUnavailable)
}
