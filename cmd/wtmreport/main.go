// wtmreport runs one TSC reliability evaluation method (chosen with -method:
// "cas", the default, or "carousel") plus conversion parameter construction
// once, and prints a human-readable report.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/AndreyNevolin/wtmlib"
)

func main() {
	method := flag.String("method", "cas", "reliability evaluation method: \"cas\" or \"carousel\"")
	flag.Parse()

	cfg, err := wtmlib.ConfigFromEnv()
	if err != nil {
		log.Fatalf("wtmreport: loading config: %v", err)
	}

	var reliability wtmlib.Reliability
	switch *method {
	case "cas":
		reliability, err = wtmlib.EvaluateTSCReliabilityCAS(cfg)
	case "carousel":
		reliability, err = wtmlib.EvaluateTSCReliabilityCarousel(cfg)
	default:
		fmt.Fprintf(os.Stderr, "wtmreport: unknown -method %q, want \"cas\" or \"carousel\"\n", *method)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("wtmreport: evaluating TSC reliability: %v", err)
	}

	params, secondsBeforeWrap, err := wtmlib.BuildConversionParams(cfg)
	if err != nil {
		log.Fatalf("wtmreport: building conversion parameters: %v", err)
	}

	now := wtmlib.ReadTSC()

	fmt.Printf("method:                %s\n", *method)
	fmt.Printf("max cross-CPU shift:   %d ticks\n", reliability.MaxShiftTicks)
	fmt.Printf("monotonic:             %v\n", reliability.Monotonic)
	fmt.Printf("conversion mult/shift: %d / %d\n", params.Mult, params.Shift)
	fmt.Printf("seconds before wrap:   %d\n", secondsBeforeWrap)
	fmt.Printf("sample reading:        tsc=%d -> %d ns\n", now, params.TicksToNs(now))
}
