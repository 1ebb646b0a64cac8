package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	flagpkg "flag"

	"github.com/yoshiomiyamaegones/pkg/cartridge"
	"github.com/yoshiomiyamaegones/pkg/gui"
	"github.com/yoshiomiyamaegones/pkg/logger"
	"github.com/yoshiomiyamaegones/pkg/nes"
)

var (
	logLevel   string
	logFile    string
	cpuLog     bool
	ppuLog     bool
	apuLog     bool
	mapperLog  bool
	headless   bool
	testFrames int
)

func main() {
	root := &cobra.Command{
		Use:   "gones <rom_file>",
		Short: "GoNES - Nintendo Entertainment System Emulator",
		Long: "GoNES plays iNES/NES 2.0 ROMs through an SDL2 window, or in\n" +
			"--headless mode for scripted diagnostics.\n\n" +
			"Controls: Z=A X=B A=Select S=Start, arrow keys=D-pad, ESC=quit.",
		Args: cobra.ExactArgs(1),
		RunE: run,
	}

	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level (off, error, warn, info, debug, trace)")
	root.Flags().StringVar(&logFile, "log-file", "", "Log file path; glog writes its log files into this path's directory (empty: glog's default directory)")
	root.Flags().BoolVar(&cpuLog, "cpu-log", false, "Enable CPU instruction logging")
	root.Flags().BoolVar(&ppuLog, "ppu-log", false, "Enable PPU logging")
	root.Flags().BoolVar(&apuLog, "apu-log", false, "Enable APU logging")
	root.Flags().BoolVar(&mapperLog, "mapper-log", false, "Enable mapper logging")
	root.Flags().BoolVar(&headless, "headless", false, "Run in headless mode for testing")
	root.Flags().IntVar(&testFrames, "test-frames", 600, "Number of frames to run in headless mode")

	// glog registers its own flags (-v, -logtostderr, -log_dir, ...) on the
	// standard flag.CommandLine; fold them into the Cobra flag set so both
	// sets of flags work from the same command line.
	root.Flags().AddGoFlagSet(flagpkg.CommandLine)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	romFile := args[0]

	level := logger.GetLogLevelFromString(logLevel)
	if err := logger.Initialize(level, logFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	logger.SetCPULogging(cpuLog)
	logger.SetPPULogging(ppuLog)
	logger.SetAPULogging(apuLog)
	logger.SetMapperLogging(mapperLog)

	logger.LogInfo("GoNES Emulator starting...")
	logger.LogInfo("Log level: %s", logLevel)

	file, err := os.Open(romFile)
	if err != nil {
		return fmt.Errorf("failed to open ROM file: %w", err)
	}
	defer file.Close()

	cart, err := cartridge.LoadFromReader(file)
	if err != nil {
		return fmt.Errorf("failed to load ROM: %w", err)
	}

	logger.LogInfo("Loaded ROM: %s", filepath.Base(romFile))
	logger.LogInfo("Mapper: %d", cart.Header.MapperID())
	logger.LogInfo("PRG ROM: %d KB", len(cart.PRGROM)/1024)
	if len(cart.CHRROM) > 0 {
		logger.LogInfo("CHR ROM: %d KB", len(cart.CHRROM)/1024)
	} else {
		logger.LogInfo("CHR RAM: %d KB", len(cart.CHRRAM)/1024)
	}

	system := nes.NewSystem()
	system.LoadCartridge(cart)
	system.HardReset()

	if headless {
		runHeadless(system, testFrames)
		return nil
	}

	nesGUI, err := gui.NewNESGUI(system)
	if err != nil {
		return fmt.Errorf("failed to create GUI: %w", err)
	}
	defer nesGUI.Destroy()

	logger.LogInfo("Starting emulator...")
	nesGUI.Run()
	logger.LogInfo("Emulator stopped")
	return nil
}

func runHeadless(system *nes.System, maxFrames int) {
	logger.LogInfo("Starting headless mode for %d frames", maxFrames)

	start := time.Now()
	for frame := 0; frame < maxFrames; frame++ {
		system.ClockFrame()
	}
	logger.LogInfo("Headless execution completed in %v", time.Since(start))
}
