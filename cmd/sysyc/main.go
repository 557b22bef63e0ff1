// cmd/sysyc/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"sysyc/internal/cfg"
	"sysyc/internal/emit"
	cerrors "sysyc/internal/errors"
	"sysyc/internal/ir"
	"sysyc/internal/irgen"
	"sysyc/internal/lexer"
	"sysyc/internal/parser"
	"sysyc/internal/passes"
	"sysyc/internal/sema"
	"sysyc/internal/types"
)

const version = "1.0.0"

// ptrWidth is the pointer width in bytes of the only supported target.
const ptrWidth = 8

func main() {
	var (
		output     = flag.String("o", "", "write the LLVM IR to this file")
		emitAST    = flag.String("emit-ast", "", "write the checked AST to this file")
		emitLLVM   = flag.String("emit-llvm-ir", "", "write the LLVM IR to this file")
		emitCfgDir = flag.String("emit-cfg", "", "write one Graphviz dot file per function into this directory")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Printf("sysyc %s\n", version)
		return
	}
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	source := flag.Arg(0)

	logger := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err == nil {
			logger = dev
		}
	}
	defer logger.Sync()
	passes.SetLogger(logger)

	if err := run(source, *output, *emitAST, *emitLLVM, *emitCfgDir, logger); err != nil {
		reportError(source, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: sysyc [flags] <source.sy>\n")
	flag.PrintDefaults()
}

func run(source, output, emitAST, emitLLVM, emitCfgDir string, logger *zap.Logger) error {
	src, err := os.ReadFile(source)
	if err != nil {
		return err
	}

	reg := types.NewRegistry()

	tokens := lexer.NewScanner(string(src)).ScanTokens()
	logger.Debug("scanned", zap.Int("tokens", len(tokens)))

	ast, err := parser.NewParser(tokens, reg).ParseCompUnit()
	if err != nil {
		return err
	}

	if err := sema.NewChecker(reg).Check(ast); err != nil {
		return err
	}
	logger.Debug("checked", zap.Int("items", len(ast.Items)))

	if emitAST != "" {
		if err := os.WriteFile(emitAST, []byte(ast.Dump()), 0o644); err != nil {
			return err
		}
	}

	ctx, err := irgen.Generate(ast, reg, ptrWidth)
	if err != nil {
		return err
	}

	var dce passes.UnreachableCodeElimination
	changed, err := dce.RunOnModule(ctx)
	if err != nil {
		return err
	}
	logger.Debug("dce finished", zap.Bool("changed", changed))

	logStats(ctx, logger)

	if emitCfgDir != "" {
		if err := writeCfgs(ctx, emitCfgDir); err != nil {
			return err
		}
	}

	if emitLLVM == "" {
		emitLLVM = output
	}
	if emitLLVM != "" {
		text, err := emit.Text(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(emitLLVM, []byte(text), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func logStats(ctx *ir.Context, logger *zap.Logger) {
	var nBlocks, nInsts int
	for _, fn := range ctx.Funcs() {
		for _, b := range fn.Blocks(ctx) {
			nBlocks++
			nInsts += len(b.Insts(ctx))
		}
	}
	logger.Info("module built",
		zap.Int("functions", len(ctx.Funcs())),
		zap.Int("globals", len(ctx.Globals())),
		zap.String("blocks", humanize.Comma(int64(nBlocks))),
		zap.String("instructions", humanize.Comma(int64(nInsts))),
	)
}

func writeCfgs(ctx *ir.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, fn := range ctx.Funcs() {
		if fn.Kind(ctx) != ir.FuncDefine {
			continue
		}
		info := cfg.New(ctx, fn)
		path := filepath.Join(dir, "cfg_"+fn.Name(ctx)+".dot")
		if err := os.WriteFile(path, []byte(info.Dot(ctx)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func reportError(source string, err error) {
	red, reset := "", ""
	if isatty.IsTerminal(os.Stderr.Fd()) {
		red, reset = "\x1b[31m", "\x1b[0m"
	}
	if ce, ok := err.(*cerrors.CompileError); ok {
		ce.WithFile(source)
		fmt.Fprintf(os.Stderr, "%s%s%s\n", red, ce.Error(), reset)
		return
	}
	fmt.Fprintf(os.Stderr, "%serror:%s %v\n", red, reset, err)
}
