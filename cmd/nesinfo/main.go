package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/yoshiomiyamaegones/pkg/cartridge"
)

var debugDump bool

func main() {
	root := &cobra.Command{
		Use:   "nesinfo <rom_file>",
		Short: "Inspect an iNES/NES 2.0 ROM's header, mapper, and memory layout",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	root.Flags().BoolVar(&debugDump, "debug", false, "dump the full parsed Cartridge struct (mapper banks, registers)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	romFile := args[0]

	file, err := os.Open(romFile)
	if err != nil {
		return fmt.Errorf("failed to open ROM file: %w", err)
	}
	defer file.Close()

	cart, err := cartridge.LoadFromReader(file)
	if err != nil {
		return fmt.Errorf("failed to load ROM: %w", err)
	}

	fmt.Printf("=== ROM Analysis: %s ===\n\n", romFile)
	fmt.Printf("NES 2.0: %v\n", cart.Header.IsNES20())
	fmt.Printf("Mapper: %d\n", cart.Header.MapperID())
	fmt.Printf("PRG ROM: %d KB\n", len(cart.PRGROM)/1024)
	if len(cart.CHRROM) > 0 {
		fmt.Printf("CHR ROM: %d KB\n", len(cart.CHRROM)/1024)
	} else {
		fmt.Printf("CHR RAM: %d KB\n", len(cart.CHRRAM)/1024)
	}
	fmt.Printf("PRG RAM: %d KB\n", len(cart.PRGRAM)/1024)
	fmt.Printf("Battery backed: %v\n", cart.HasBattery)

	switch cart.Mirroring() {
	case cartridge.MirroringVertical:
		fmt.Println("Mirroring: vertical")
	case cartridge.MirroringFourScreen:
		fmt.Println("Mirroring: four-screen")
	case cartridge.MirroringSingleScreenA:
		fmt.Println("Mirroring: single-screen A")
	case cartridge.MirroringSingleScreenB:
		fmt.Println("Mirroring: single-screen B")
	default:
		fmt.Println("Mirroring: horizontal")
	}

	if debugDump {
		fmt.Println("\n=== Full cartridge dump ===")
		spew.Dump(cart)
	}

	return nil
}
