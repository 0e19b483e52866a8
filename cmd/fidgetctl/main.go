package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/driver/tiles"
	vm "github.com/oisee/fidget"
	"github.com/oisee/fidget/regalloc"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fidgetctl",
		Short: "Compile and evaluate implicit-surface expressions",
	}

	var regLimit int
	rootCmd.PersistentFlags().IntVar(&regLimit, "reg-limit", vm.DefaultRegLimit, "register budget (REG_LIMIT)")

	rootCmd.AddCommand(
		newCompileCmd(&regLimit),
		newEvalPointCmd(&regLimit),
		newEvalIntervalCmd(&regLimit),
		newRenderCmd(&regLimit),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func compile(expr string, regLimit int) (*vm.Tape, error) {
	ctx := dag.NewContext()
	root, err := parseExpr(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("parsing expression: %w", err)
	}
	return vm.Compile(ctx, root, vm.DefaultFamily{Limit: regLimit})
}

func newCompileCmd(regLimit *int) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [expr]",
		Short: "Compile an expression and report tape statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tape, err := compile(args[0], *regLimit)
			if err != nil {
				return err
			}
			fmt.Printf("ops=%d choices=%d slots=%d\n", tape.OpCount(), tape.ChoiceCount(), tape.SlotCount())
			return nil
		},
	}
}

func newEvalPointCmd(regLimit *int) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "eval-point [expr]",
		Short: "Evaluate an expression at a single point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, z, err := parsePoint(at)
			if err != nil {
				return err
			}
			tape, err := compile(args[0], *regLimit)
			if err != nil {
				return err
			}
			result, err := vm.NewEvaluator(tape).Point(x, y, z, nil)
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "0,0,0", "point to evaluate at, as x,y,z")
	return cmd
}

func newEvalIntervalCmd(regLimit *int) *cobra.Command {
	var box string
	cmd := &cobra.Command{
		Use:   "eval-interval [expr]",
		Short: "Evaluate an expression over a box, reporting the result and choice decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, z, err := parseBox(box)
			if err != nil {
				return err
			}
			tape, err := compile(args[0], *regLimit)
			if err != nil {
				return err
			}
			result, _, simplify, err := vm.NewEvaluator(tape).Interval(x, y, z, nil)
			if err != nil {
				return err
			}
			fmt.Printf("[%v, %v] simplify=%v\n", result.Lo, result.Hi, simplify)
			return nil
		},
	}
	cmd.Flags().StringVar(&box, "box", "0,0,0,0,0,0", "box to evaluate over, as x0,x1,y0,y1,z0,z1")
	return cmd
}

func newRenderCmd(regLimit *int) *cobra.Command {
	var job renderJob
	var jobPath string
	cmd := &cobra.Command{
		Use:   "render [expr]",
		Short: "Render an expression's zero-crossing to a PGM image, tiled across workers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobPath != "" {
				loaded, err := loadRenderJob(jobPath)
				if err != nil {
					return fmt.Errorf("loading job file: %w", err)
				}
				job = *loaded
			} else if len(args) == 1 {
				job.Expr = args[0]
			}
			if job.Expr == "" {
				return fmt.Errorf("an expression is required, either as an argument or in --job")
			}
			if job.RegLimit == 0 {
				job.RegLimit = *regLimit
			}
			if job.RegLimit < regalloc.MinRegisterLimit {
				return fmt.Errorf("%w: %d", regalloc.ErrBadRegisterLimit, job.RegLimit)
			}

			tape, err := compile(job.Expr, job.RegLimit)
			if err != nil {
				return err
			}
			grid := tiles.Grid{Width: job.Width, Height: job.Height, TileSize: job.TileSize}
			sample := tiles.Sample{
				OriginX: float32(job.OriginX), OriginY: float32(job.OriginY),
				PixelSize: float32(job.PixelSize),
			}
			values, err := tiles.Render(tape, grid, sample, job.Workers)
			if err != nil {
				return err
			}
			if err := writePGM(job.Output, job.Width, job.Height, values); err != nil {
				return fmt.Errorf("writing %s: %w", job.Output, err)
			}
			fmt.Printf("wrote %s (%dx%d)\n", job.Output, job.Width, job.Height)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "YAML job file (overrides all other flags)")
	cmd.Flags().IntVar(&job.Width, "width", 256, "image width in pixels")
	cmd.Flags().IntVar(&job.Height, "height", 256, "image height in pixels")
	cmd.Flags().IntVar(&job.TileSize, "tile-size", 32, "tile edge length in pixels")
	cmd.Flags().IntVar(&job.Workers, "workers", 0, "worker count (0 = NumCPU)")
	cmd.Flags().Float64Var(&job.OriginX, "origin-x", -1, "world-space x of pixel (0,0)")
	cmd.Flags().Float64Var(&job.OriginY, "origin-y", -1, "world-space y of pixel (0,0)")
	cmd.Flags().Float64Var(&job.PixelSize, "pixel-size", 2.0/256, "world-space edge length of one pixel")
	cmd.Flags().StringVar(&job.Output, "output", "out.pgm", "output PGM path")
	return cmd
}

func parsePoint(s string) (x, y, z float32, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("--at must be x,y,z")
	}
	vals := make([]float32, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("--at: %w", err)
		}
		vals[i] = float32(v)
	}
	return vals[0], vals[1], vals[2], nil
}

func parseBox(s string) (x, y, z vm.Interval1, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return x, y, z, fmt.Errorf("--box must be x0,x1,y0,y1,z0,z1")
	}
	vals := make([]float32, 6)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return x, y, z, fmt.Errorf("--box: %w", err)
		}
		vals[i] = float32(v)
	}
	x = vm.Interval1{Lo: vals[0], Hi: vals[1]}
	y = vm.Interval1{Lo: vals[2], Hi: vals[3]}
	z = vm.Interval1{Lo: vals[4], Hi: vals[5]}
	return x, y, z, nil
}
