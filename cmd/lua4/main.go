// lua4 CLI - loads, inspects, runs, and manages precompiled game scripts
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/halcyon-games/lua4/hostrpc"
	"github.com/halcyon-games/lua4/manifest"
	"github.com/halcyon-games/lua4/store"
	"github.com/halcyon-games/lua4/vm"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 quiet, 2 debug)")
	checkPath := flag.String("check", "", "Validate a chunk file and exit")
	disasmPath := flag.String("disasm", "", "Disassemble a chunk file and exit")
	runPath := flag.String("run", "", "Load and run a chunk file")
	scriptName := flag.String("script", "", "Load and run a script registered in scripts.toml")
	entry := flag.String("entry", "", "Global function to call after the chunk runs")
	argList := flag.String("args", "", "Comma-separated arguments for -entry (numbers or strings)")
	globalsIn := flag.String("globals-in", "", "Restore globals from a snapshot file before running")
	globalsOut := flag.String("globals-out", "", "Save globals to a snapshot file after running")
	nativeAddr := flag.String("native-addr", "", "Game server address for native dispatch")
	nativeService := flag.String("native-service", "halcyon.scripting.v1.NativeService", "gRPC service implementing natives")
	storePath := flag.String("store", "", "Script library database path")
	putSpec := flag.String("put", "", "Store a chunk: name=path (requires -store)")
	getName := flag.String("get", "", "Print a stored chunk to stdout (requires -store)")
	deleteName := flag.String("delete", "", "Delete a stored script (requires -store)")
	listScripts := flag.Bool("list", false, "List stored scripts (requires -store)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lua4 [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs precompiled Lua 4.0 chunks for game quest and NPC scripting.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lua4 -check blacksmith.lub\n")
		fmt.Fprintf(os.Stderr, "  lua4 -disasm blacksmith.lub\n")
		fmt.Fprintf(os.Stderr, "  lua4 -run blacksmith.lub -entry OnTalk -args 7,hello\n")
		fmt.Fprintf(os.Stderr, "  lua4 -script blacksmith -entry OnTalk   # resolve via scripts.toml\n")
		fmt.Fprintf(os.Stderr, "  lua4 -run quest.lub -globals-in save.cbor -globals-out save.cbor\n")
		fmt.Fprintf(os.Stderr, "  lua4 -store scripts.db -put blacksmith=blacksmith.lub\n")
		fmt.Fprintf(os.Stderr, "  lua4 -store scripts.db -list\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	if *checkPath != "" {
		os.Exit(runCheck(*checkPath))
	}
	if *disasmPath != "" {
		os.Exit(runDisasm(*disasmPath))
	}
	if *storePath != "" {
		os.Exit(runStoreOps(*storePath, *putSpec, *getName, *deleteName, *listScripts))
	}
	if *runPath != "" || *scriptName != "" {
		os.Exit(runScript(runOptions{
			path:          *runPath,
			script:        *scriptName,
			entry:         *entry,
			args:          *argList,
			globalsIn:     *globalsIn,
			globalsOut:    *globalsOut,
			nativeAddr:    *nativeAddr,
			nativeService: *nativeService,
		}))
	}

	flag.Usage()
	os.Exit(2)
}

func fail(format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return 1
}

func loadChunkFile(path string) (*vm.FuncProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return vm.Load(data)
}

func runCheck(path string) int {
	p, err := loadChunkFile(path)
	if err != nil {
		return fail("%s: %v", path, err)
	}
	fmt.Printf("%s: ok (%d instructions, %d functions)\n", path, len(p.Code), 1+countProtos(p))
	return 0
}

func countProtos(p *vm.FuncProto) int {
	n := len(p.Protos)
	for _, nested := range p.Protos {
		n += countProtos(nested)
	}
	return n
}

func runDisasm(path string) int {
	p, err := loadChunkFile(path)
	if err != nil {
		return fail("%s: %v", path, err)
	}
	listing := vm.Disassemble(p)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		// Highlight the function headers.
		for _, line := range strings.Split(listing, "\n") {
			if strings.HasPrefix(line, "main ") || strings.HasPrefix(line, "function ") {
				fmt.Printf("\x1b[1m%s\x1b[0m\n", line)
			} else {
				fmt.Println(line)
			}
		}
	} else {
		fmt.Print(listing)
	}
	return 0
}

// ---------------------------------------------------------------------------
// Store operations
// ---------------------------------------------------------------------------

func runStoreOps(dbPath, putSpec, getName, deleteName string, list bool) int {
	s, err := store.Open(dbPath)
	if err != nil {
		return fail("%v", err)
	}
	defer s.Close()

	switch {
	case putSpec != "":
		name, file, ok := strings.Cut(putSpec, "=")
		if !ok {
			return fail("-put wants name=path, got %q", putSpec)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fail("%v", err)
		}
		id, err := s.Put(name, data)
		if err != nil {
			return fail("%v", err)
		}
		fmt.Printf("stored %s (%s)\n", name, id)

	case getName != "":
		data, err := s.Get(getName)
		if err != nil {
			return fail("%v", err)
		}
		os.Stdout.Write(data)

	case deleteName != "":
		if err := s.Delete(deleteName); err != nil {
			return fail("%v", err)
		}

	case list:
		entries, err := s.List()
		if err != nil {
			return fail("%v", err)
		}
		for _, e := range entries {
			fmt.Printf("%-24s %8d bytes  %x  %s\n",
				e.Name, e.Size, e.Hash[:8], e.CreatedAt.Format("2006-01-02 15:04:05"))
		}

	default:
		return fail("-store wants one of -put, -get, -delete, -list")
	}
	return 0
}

// ---------------------------------------------------------------------------
// Running scripts
// ---------------------------------------------------------------------------

type runOptions struct {
	path          string
	script        string
	entry         string
	args          string
	globalsIn     string
	globalsOut    string
	nativeAddr    string
	nativeService string
}

func runScript(opts runOptions) int {
	var man *manifest.Manifest
	path := opts.path
	if opts.script != "" {
		var err error
		man, err = manifest.FindAndLoad(".")
		if err != nil {
			return fail("%v", err)
		}
		if man == nil {
			return fail("no scripts.toml found for -script %q", opts.script)
		}
		path, err = man.ChunkPath(opts.script)
		if err != nil {
			return fail("%v", err)
		}
	}

	p, err := loadChunkFile(path)
	if err != nil {
		return fail("%s: %v", path, err)
	}

	m := vm.NewVM()
	if opts.globalsIn != "" {
		data, err := os.ReadFile(opts.globalsIn)
		if err != nil {
			return fail("%v", err)
		}
		if err := m.RestoreGlobals(data); err != nil {
			return fail("%v", err)
		}
	}

	host, cleanup, err := setupDispatcher(m, man, opts.nativeAddr, opts.nativeService)
	if err != nil {
		return fail("%v", err)
	}
	defer cleanup()

	// The root function registers the script's entry points.
	if _, err := m.CallFunction(p, nil, host); err != nil {
		return fail("%s: %v", path, err)
	}

	if opts.entry != "" {
		results, err := m.CallGlobal(opts.entry, parseArgs(opts.args), host)
		if err != nil {
			return fail("%s: %v", opts.entry, err)
		}
		for _, r := range results {
			fmt.Println(r)
		}
	}

	if opts.globalsOut != "" {
		data, err := m.SaveGlobals()
		if err != nil {
			return fail("%v", err)
		}
		if err := os.WriteFile(opts.globalsOut, data, 0644); err != nil {
			return fail("%v", err)
		}
	}
	return 0
}

var log = commonlog.GetLogger("lua4")

// stubDispatcher is used in offline runs: it logs each native call and
// returns no results, so scripts can be exercised without a game server.
var stubDispatcher = vm.DispatcherFunc(func(name string, args []vm.Value) ([]vm.Value, error) {
	log.Infof("native %s called with %d args (no server, returning nil)", name, len(args))
	return nil, nil
})

// setupDispatcher connects native dispatch and seeds the native-closure
// globals scripts call. With no server address, natives from the manifest
// allow list resolve to a stub that logs and returns nothing.
func setupDispatcher(m *vm.VM, man *manifest.Manifest, addr, service string) (vm.Dispatcher, func(), error) {
	if addr == "" {
		if man != nil {
			for _, name := range man.Natives.Allow {
				m.SetGlobal(name, vm.FromNativeClosure(name))
			}
		}
		return stubDispatcher, func() {}, nil
	}

	d, err := hostrpc.Dial(addr, service)
	if err != nil {
		return nil, nil, err
	}

	if man != nil {
		// Scripts use the manifest's native names; the dispatcher maps them
		// onto the service's methods.
		d.Allow = man.NativeAllowed
		for _, name := range man.Natives.Allow {
			m.SetGlobal(name, vm.FromNativeClosure(name))
		}
		return d, func() { d.Close() }, nil
	}

	names, err := d.ListNatives()
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	for _, name := range names {
		m.SetGlobal(name, vm.FromNativeClosure(name))
	}
	return d, func() { d.Close() }, nil
}

// parseArgs splits a comma-separated argument list. Values that parse as
// numbers become Numbers; everything else is a String.
func parseArgs(list string) []vm.Value {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	args := make([]vm.Value, len(parts))
	for i, part := range parts {
		if n, err := strconv.ParseFloat(part, 64); err == nil {
			args[i] = vm.FromNumber(n)
		} else {
			args[i] = vm.FromString(part)
		}
	}
	return args
}
