/*
 * This file is part of the lasviewer distribution (https://github.com/ecopia-map/lasviewer).
 * Copyright (c) 2019 Massimo Federico Bonfigli - m.federico.bonfigli@gmail.com
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 *
 * This software also uses third party components. You can find information
 * on their credits and licensing in the file LICENSE-3RD-PARTIES.md that
 * you should have received togheter with the source code.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/internal/render"
	"github.com/ecopia-map/lasviewer/pkg"
	"github.com/ecopia-map/lasviewer/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/lasviewer/pkg/config"
	"github.com/ecopia-map/lasviewer/tools"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

const VERSION = "0.4.0"

const logo = `
  _                _
 | | __ _ ___  __ _(_) _____      _____ _ __
 | |/ _' / __| \ \ / / |/ _ \ \ /\ / / _ \ '__|
 | | (_| \__ \  \ V /| |  __/\ V  V /  __/ |
 |_|\__,_|___/   \_/ |_|\___| \_/\_/ \___|_|
  A LAS/LAZ point cloud reader and instance viewer written in golang
  Copyright YYYY
`

var errInvalidOptions = errors.New("error parsing input parameters")

func main() {
	// glog writes to stderr unless --log_dir is given
	_ = flag.Set("logtostderr", "true")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	glog.Flush()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lasviewer",
		Short:        "Reads LAS/LAZ point clouds and turns them into GPU instances",
		Version:      VERSION,
		SilenceUsage: true,
	}

	globalFlags := tools.DefineGlobalFlags(rootCmd.PersistentFlags(), tools.DefaultConfigPath())
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// set logging and timestamp logging
		if *globalFlags.Silent {
			tools.DisableLogger()
		} else if cmd.Name() != "init-config" {
			printLogo()
		}
		if !*globalFlags.LogTimestamp {
			tools.DisableLoggerTimestamp()
		}
	}

	rootCmd.AddCommand(
		newHeaderCommand(globalFlags),
		newScanCommand(globalFlags),
		newReadCommand(globalFlags),
		newViewCommand(globalFlags),
		newInitConfigCommand(globalFlags),
	)
	return rootCmd
}

func newHeaderCommand(globalFlags *tools.GlobalFlags) *cobra.Command {
	defaults := loader.DefaultLoaderOptions()
	cmd := &cobra.Command{
		Use:   tools.CommandHeader + " [input]",
		Short: "Prints the header of las/laz files",
		Args:  cobra.MaximumNArgs(1),
	}
	readerFlags := tools.DefineReaderFlags(cmd.Flags(), defaults)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(globalFlags, tools.CommandHeader)
		if err != nil {
			return err
		}
		readerFlags.Apply(cmd.Flags(), opts)
		setInput(opts, args)

		if msg, ok := validateOptions(opts); !ok {
			return invalidOptions(msg)
		}

		problems, err := pkg.NewHeaderPrinter(tools.NewStandardFileFinder()).Print(opts, cmd.OutOrStdout())
		if err != nil {
			glog.Errorln("Error while reading headers:", err)
			return err
		}
		if problems > 0 && opts.StrictHeader {
			return fmt.Errorf("%d files with header problems", problems)
		}
		return nil
	}
	return cmd
}

func newScanCommand(globalFlags *tools.GlobalFlags) *cobra.Command {
	defaults := loader.DefaultLoaderOptions()
	cmd := &cobra.Command{
		Use:   tools.CommandScan + " [input]",
		Short: "Checks the headers of many las/laz files concurrently and writes a JSON report",
		Args:  cobra.MaximumNArgs(1),
	}
	readerFlags := tools.DefineReaderFlags(cmd.Flags(), defaults)
	output := cmd.Flags().StringP("output", "o", "", "JSON report file, stdout when empty.")
	workers := cmd.Flags().IntP("workers", "w", 0, "Number of goroutines checking headers, defaults to the number of CPUs.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(globalFlags, tools.CommandScan)
		if err != nil {
			return err
		}
		readerFlags.Apply(cmd.Flags(), opts)
		setInput(opts, args)
		if cmd.Flags().Changed("output") {
			opts.ScanOptions.Output = *output
		}
		if cmd.Flags().Changed("workers") {
			opts.ScanOptions.Workers = *workers
		}

		if msg, ok := validateOptions(opts); !ok {
			return invalidOptions(msg)
		}

		defer timeTrack(time.Now(), "scan")
		_, err = pkg.NewScanner(tools.NewStandardFileFinder(), cmd.OutOrStdout()).RunScanner(opts)
		if err != nil {
			glog.Errorln("Error while scanning:", err)
		}
		return err
	}
	return cmd
}

func newReadCommand(globalFlags *tools.GlobalFlags) *cobra.Command {
	defaults := loader.DefaultLoaderOptions()
	cmd := &cobra.Command{
		Use:   tools.CommandRead + " [input]",
		Short: "Decodes, filters and uploads the points of las/laz files, optionally exporting them",
		Args:  cobra.MaximumNArgs(1),
	}
	readerFlags := tools.DefineReaderFlags(cmd.Flags(), defaults)
	pipelineFlags := tools.DefinePipelineFlags(cmd.Flags(), defaults)
	renderFlags := tools.DefineRenderFlags(cmd.Flags(), defaults)
	export := cmd.Flags().StringP("export", "o", "", "Writes the filtered points to a .las or .pcd file. Single file input only.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(globalFlags, tools.CommandRead)
		if err != nil {
			return err
		}
		readerFlags.Apply(cmd.Flags(), opts)
		pipelineFlags.Apply(cmd.Flags(), opts)
		renderFlags.Apply(cmd.Flags(), opts)
		setInput(opts, args)
		opts.ReadOptions = &loader.ReadOptions{Export: *export}
		// uploads and exits
		opts.ViewerOptions.Duration = 0

		return runViewer(cmd.Context(), opts)
	}
	return cmd
}

func newViewCommand(globalFlags *tools.GlobalFlags) *cobra.Command {
	defaults := loader.DefaultLoaderOptions()
	cmd := &cobra.Command{
		Use:   tools.CommandView + " [input]",
		Short: "Runs the frame loop over las/laz files until interrupted",
		Args:  cobra.MaximumNArgs(1),
	}
	readerFlags := tools.DefineReaderFlags(cmd.Flags(), defaults)
	pipelineFlags := tools.DefinePipelineFlags(cmd.Flags(), defaults)
	renderFlags := tools.DefineRenderFlags(cmd.Flags(), defaults)
	frameRate := cmd.Flags().Int("frame-rate", 60, "Frame loop ticks per second.")
	duration := cmd.Flags().Float64("duration", -1, "Seconds to keep viewing after the last upload, negative runs until interrupted.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(globalFlags, tools.CommandView)
		if err != nil {
			return err
		}
		readerFlags.Apply(cmd.Flags(), opts)
		pipelineFlags.Apply(cmd.Flags(), opts)
		renderFlags.Apply(cmd.Flags(), opts)
		setInput(opts, args)
		if cmd.Flags().Changed("frame-rate") {
			opts.ViewerOptions.FrameRate = *frameRate
		}
		opts.ViewerOptions.Duration = *duration

		err = runViewer(cmd.Context(), opts)
		if errors.Is(err, context.Canceled) {
			tools.LogOutput("Viewer interrupted")
			return nil
		}
		return err
	}
	return cmd
}

func newInitConfigCommand(globalFlags *tools.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Writes a configuration file holding the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := *globalFlags.Config
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists", configPath)
			}
			if err := config.CreateDefaultConfigFile(configPath); err != nil {
				return err
			}
			tools.LogOutput("Configuration written to", configPath)
			return nil
		},
	}
}

// Configuration file values, later overridden by the flags given on the command line
func loadOptions(globalFlags *tools.GlobalFlags, command string) (*loader.LoaderOptions, error) {
	cfg, err := config.LoadConfig(*globalFlags.Config)
	if err != nil {
		glog.Errorln(err)
		return nil, err
	}
	opts := cfg.ToLoaderOptions()
	opts.Command = command
	glog.V(1).Infoln("configuration", *globalFlags.Config, tools.FmtJSONString(cfg))
	return opts, nil
}

func setInput(opts *loader.LoaderOptions, args []string) {
	if opts.Input == "" && len(args) > 0 {
		opts.Input = args[0]
	}
}

func runViewer(ctx context.Context, opts *loader.LoaderOptions) error {
	if msg, ok := validateOptions(opts); !ok {
		return invalidOptions(msg)
	}
	glog.V(1).Infoln("options", tools.FmtJSONString(opts))

	viewer := pkg.NewViewer(tools.NewStandardFileFinder(), std_algorithm_manager.NewAlgorithmManager(opts), render.NewHeadlessSurface())
	defer viewer.Close()

	defer timeTrack(time.Now(), opts.Command)
	results, err := viewer.Run(ctx, opts)
	if err != nil {
		glog.Errorln("Error while reading:", err)
		return err
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read completely", failed, len(results))
	}
	tools.LogOutput("Read Completed")
	return nil
}

// Validates the input options provided to the command line tool checking
// that input and export files exist and can be produced
func validateOptions(opts *loader.LoaderOptions) (string, bool) {
	if opts.Input == "" {
		return "Input file/folder not specified", false
	}
	if _, err := os.Stat(opts.Input); os.IsNotExist(err) {
		return "Input file/folder not found", false
	}

	if msg, ok := opts.Validate(); !ok {
		return msg, false
	}

	if opts.ReadOptions != nil && opts.ReadOptions.Export != "" {
		export := opts.ReadOptions.Export
		if opts.FolderProcessing {
			return "export requires a single input file", false
		}
		ext := strings.ToLower(filepath.Ext(export))
		if ext != ".las" && ext != ".pcd" {
			return "export file must have a .las or .pcd extension", false
		}
		if ext == ".las" && opts.Srid != opts.TargetSrid {
			return "reprojected points can only be exported to .pcd", false
		}
		if filepath.Clean(export) == filepath.Clean(opts.Input) {
			return "export file cannot overwrite the input file", false
		}
	}

	return "", true
}

func invalidOptions(msg string) error {
	glog.Errorln("Error parsing input parameters: " + msg)
	return fmt.Errorf("%w: %s", errInvalidOptions, msg)
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	tools.LogOutput(fmt.Sprintf("%s took %s", name, elapsed))
}

func printLogo() {
	fmt.Println(strings.ReplaceAll(logo, "YYYY", strconv.Itoa(time.Now().Year())))
}
