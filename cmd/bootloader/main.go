//go:build tinygo

// Command bootloader is the board entry point: it brings up the platform,
// flash device, CAN transport, and UDS stack, makes the boot decision, and
// otherwise runs the main loop forever.
package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/gridania/telematic-bootloader/boot"
	"github.com/gridania/telematic-bootloader/bus"
	"github.com/gridania/telematic-bootloader/config"
	"github.com/gridania/telematic-bootloader/flash"
	"github.com/gridania/telematic-bootloader/platform"
	"github.com/gridania/telematic-bootloader/uds"
	"github.com/gridania/telematic-bootloader/version"
	"github.com/gridania/telematic-bootloader/watchdog"
)

// newRawCAN must be provided by a board-specific package that implements
// bus.RawCAN over the target MCU's CAN peripheral; per spec.md section 1
// the CAN frame-level driver is an external collaborator and out of scope
// here. A board variant overrides this var in its own tinygo build.
var newRawCAN func(cfg config.Config) bus.RawCAN

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	logger.Info("init:start",
		slog.String("version", version.Version),
		slog.String("build_marker", version.BuildMarker),
	)

	cfg := config.Default()

	machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: uint32(cfg.WatchdogTimeoutMs),
	})
	machine.Watchdog.Start()
	logger.Info("init:watchdog-started", slog.Uint64("timeout_ms", uint64(cfg.WatchdogTimeoutMs)))

	plat := platform.NewMCU()
	logger.Info("init:reset-cause", slog.String("cause", plat.ResetCause().String()))

	region := flash.Region{
		AppStart:       cfg.AppStart,
		FlashEnd:       cfg.FlashEnd,
		EraseBlockSize: cfg.EraseBlockSize,
		WriteBlockSize: cfg.WriteBlockSize,
		ChecksumOffset: cfg.ChecksumOffset,
	}
	device := &flash.MCUDevice{
		ReadBlockFn:    readFlashBlock,
		ProgramBlockFn: programFlashBlock,
		EraseSectorFn:  eraseFlashSector,
	}
	engine := flash.New(region, device, logger)

	if newRawCAN == nil {
		logger.Error("init:no-can-driver", slog.String("hint", "board package must set newRawCAN"))
		for {
			machine.Watchdog.Update()
			time.Sleep(time.Second)
		}
	}
	transport := bus.NewISOTPTransport(bus.NewCANTransport(newRawCAN(cfg)))

	security := uds.NewSecurity(cfg.SecurityAttemptsCap, logger)
	transfer := uds.NewTransfer(engine, region, cfg.MaxBlockSize, cfg.MaxDownloadSize, logger)
	inactivity := watchdog.NewInactivity(cfg.InactivityTimeoutMs)
	notifier := watchdog.NewNotifier(inactivity, plat)
	session := uds.NewSession(security, transfer, plat, notifier, logger)
	hardware := watchdog.NewHardware(machineWatchdogFeeder{})

	busCfg := bus.Config{
		RequestID:   cfg.RequestID,
		ResponseID:  cfg.ResponseID,
		BitrateBps:  cfg.BitrateBps,
		TxTimeoutMs: cfg.BusTxTimeoutMs,
	}

	bl := boot.New(
		platform.Platform{Clock: plat, ResetTrigger: plat, InterruptGate: plat, Handoff: plat},
		transport, session, engine, inactivity, hardware, busCfg, logger,
	)

	jumped, err := bl.Init(cfg.AppStart)
	if err != nil {
		logger.Error("init:boot-decision-failed", slog.String("err", err.Error()))
	}
	if jumped {
		// Unreachable: Platform.Jump never returns on real hardware.
		return
	}

	logger.Info("init:complete", slog.String("mode", "resident"))
	for {
		bl.Task(plat.NowMs())
		time.Sleep(time.Millisecond)
	}
}

type machineWatchdogFeeder struct{}

func (machineWatchdogFeeder) Feed() {
	machine.Watchdog.Update()
}

// readFlashBlock, programFlashBlock, and eraseFlashSector are the flash
// controller register sequence for the target MCU family: unlock, program
// command, status polling, sector erase. Per spec.md section 1 this is an
// external collaborator's contract, implemented in a board-specific file
// compiled alongside this package (analogous to platform.jumpTo).
func readFlashBlock(addr uint32, buf []byte) error
func programFlashBlock(addr uint32, data []byte) error
func eraseFlashSector(addr uint32) error
