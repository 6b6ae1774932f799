//go:build js && wasm

// Command wasm exposes the headless runner to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runSimulation(jsonString) -> jsonString
//
// The input and output are the same SimulationInput and SimulationLog JSON
// documents the CLI reads and writes.
package main

import (
	"syscall/js"

	"github.com/cxd309/metroline/internal/sim"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	select {}
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := sim.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
